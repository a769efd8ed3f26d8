package recorder

import (
	"strings"
	"sync"

	"github.com/bosley/dictate/session"
)

// Transcript aggregates streaming results: at most one provisional partial,
// plus the growing list of finalized segments. The space-joined segments are
// the authoritative transcript for the session.
type Transcript struct {
	mu       sync.Mutex
	partial  string
	segments []string
}

// Apply folds one result into the transcript. A final result is appended and
// clears the partial; a non-final result replaces the previous partial.
func (t *Transcript) Apply(r session.Result) {
	if r.Text == "" {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if r.IsFinal {
		t.segments = append(t.segments, r.Text)
		t.partial = ""
		return
	}
	t.partial = r.Text
}

// Partial returns the current provisional text, if any.
func (t *Transcript) Partial() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.partial
}

// Segments returns a copy of the finalized segments in arrival order.
func (t *Transcript) Segments() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]string, len(t.segments))
	copy(out, t.segments)
	return out
}

// Text returns the authoritative transcript: finalized segments joined by
// single spaces, in arrival order.
func (t *Transcript) Text() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return strings.Join(t.segments, " ")
}

// Reset discards all accumulated state.
func (t *Transcript) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.partial = ""
	t.segments = nil
}
