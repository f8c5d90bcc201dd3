package providers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/lexhq/lex-desktop/internal/logging"
)

func newTestValidator(srv *httptest.Server) *Validator {
	v := NewValidator(logging.NewLogger("providers-test"))
	v.endpoints[ProviderGemini] = srv.URL
	v.endpoints[ProviderOpenRouter] = srv.URL
	return v
}

func TestValidateKey_Accepted(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer sk-good" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Write([]byte(`{"data":[]}`))
	}))
	defer srv.Close()

	v := newTestValidator(srv)
	if err := v.ValidateKey(context.Background(), ProviderOpenRouter, "sk-good"); err != nil {
		t.Fatalf("Expected key to validate, got %v", err)
	}
}

func TestValidateKey_Rejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	v := newTestValidator(srv)
	err := v.ValidateKey(context.Background(), ProviderGemini, "bad-key")
	if !errors.Is(err, ErrInvalidKey) {
		t.Fatalf("Expected ErrInvalidKey, got %v", err)
	}
}

func TestValidateKey_GeminiHeader(t *testing.T) {
	var gotKey string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("x-goog-api-key")
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	v := newTestValidator(srv)
	if err := v.ValidateKey(context.Background(), ProviderGemini, "AIza-test"); err != nil {
		t.Fatalf("Validation failed: %v", err)
	}
	if gotKey != "AIza-test" {
		t.Errorf("Gemini key must travel in x-goog-api-key, got %q", gotKey)
	}
}

func TestValidateKey_UnknownProvider(t *testing.T) {
	v := NewValidator(logging.NewLogger("providers-test"))
	err := v.ValidateKey(context.Background(), "anthropic", "key")
	if !errors.Is(err, ErrInvalidProvider) {
		t.Fatalf("Expected ErrInvalidProvider, got %v", err)
	}
}

func TestValidateKey_EmptyKey(t *testing.T) {
	v := NewValidator(logging.NewLogger("providers-test"))
	err := v.ValidateKey(context.Background(), ProviderGemini, "")
	if !errors.Is(err, ErrInvalidKey) {
		t.Fatalf("Expected ErrInvalidKey for empty key, got %v", err)
	}
}
