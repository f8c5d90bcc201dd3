package notify

import (
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if !cfg.Enabled {
		t.Error("Expected Enabled to be true by default")
	}
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		input    string
		maxLen   int
		expected string
	}{
		{"short", 10, "short"},
		{"exactly10c", 10, "exactly10c"},
		{"this is a long string", 10, "this is..."},
		{"", 10, ""},
		{"abc", 3, "abc"},
		{"abcd", 3, "..."},
	}

	for _, tt := range tests {
		result := truncate(tt.input, tt.maxLen)
		if result != tt.expected {
			t.Errorf("truncate(%q, %d) = %q, want %q", tt.input, tt.maxLen, result, tt.expected)
		}
	}
}

func TestNewNotifier(t *testing.T) {
	// nil config should fall back to defaults
	n := NewNotifier(nil, nil)
	if n == nil {
		t.Fatal("NewNotifier returned nil")
	}
	if !n.IsEnabled() {
		t.Error("Expected notifier to be enabled by default")
	}

	n2 := NewNotifier(&Config{Enabled: false}, nil)
	if n2.IsEnabled() {
		t.Error("Expected notifier to respect disabled config")
	}

	n2.SetEnabled(true)
	if !n2.IsEnabled() {
		t.Error("SetEnabled(true) did not take effect")
	}
}
