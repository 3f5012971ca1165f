package call

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/zhouzirui/prepx/backend/internal/model/call"
)

var (
	ErrUnknownRole  = errors.New("unknown transcript role")
	ErrEmptySegment = errors.New("empty transcript segment")
)

// Transcript accumulates finalized speech-to-text segments in arrival order.
// It never removes or reorders entries. Callers provide synchronisation.
type Transcript struct {
	entries []call.Entry
}

// Append records one segment.
func (t *Transcript) Append(role call.Role, content string, at time.Time) (call.Entry, error) {
	if !role.Valid() {
		return call.Entry{}, fmt.Errorf("%w: %q", ErrUnknownRole, role)
	}
	if strings.TrimSpace(content) == "" {
		return call.Entry{}, ErrEmptySegment
	}

	entry := call.Entry{Role: role, Content: content, CreatedAt: at}
	t.entries = append(t.entries, entry)
	return entry, nil
}

// Len returns the number of recorded segments.
func (t *Transcript) Len() int {
	return len(t.entries)
}

// Latest returns the most recent segment, which is what the call view shows.
func (t *Transcript) Latest() (call.Entry, bool) {
	if len(t.entries) == 0 {
		return call.Entry{}, false
	}
	return t.entries[len(t.entries)-1], true
}

// Entries returns a copy of all segments.
func (t *Transcript) Entries() []call.Entry {
	copied := make([]call.Entry, len(t.entries))
	copy(copied, t.entries)
	return copied
}
