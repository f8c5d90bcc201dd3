package grid

import "sync"

// ColumnState holds user-adjusted column widths. Widths survive row
// re-fetches and reset only when the dataset identity changes.
type ColumnState struct {
	mu     sync.Mutex
	widths map[string]float64
}

// NewColumnState creates an empty width table.
func NewColumnState() *ColumnState {
	return &ColumnState{widths: make(map[string]float64)}
}

// SetWidth records a width override for one column.
func (c *ColumnState) SetWidth(column string, width float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.widths[column] = width
}

// Width returns the override for a column, if one exists.
func (c *ColumnState) Width(column string) (float64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	w, ok := c.widths[column]
	return w, ok
}

// Reset drops all overrides. Called on dataset change, never on re-fetch.
func (c *ColumnState) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.widths = make(map[string]float64)
}
