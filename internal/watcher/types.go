package watcher

import (
	"time"

	"github.com/Aman-CERP/amanvis/internal/scanner"
)

// Operation is the kind of change seen for a path.
type Operation int

const (
	OpCreate Operation = iota
	OpModify
	OpDelete
	OpRename
)

// String returns a human-readable representation of the operation.
func (op Operation) String() string {
	switch op {
	case OpCreate:
		return "CREATE"
	case OpModify:
		return "MODIFY"
	case OpDelete:
		return "DELETE"
	case OpRename:
		return "RENAME"
	default:
		return "UNKNOWN"
	}
}

// Event is a change to one candidate image.
type Event struct {
	// Path is absolute and symlink-resolved at the root.
	Path      string
	Operation Operation
	Timestamp time.Time
}

// Options configures a Watcher.
type Options struct {
	// Walk supplies the root and the candidate filter.
	Walk scanner.WalkOptions

	// Debounce is the quiet period before a batch is emitted. Default 500ms.
	Debounce time.Duration

	// PollInterval is used when fsnotify is unavailable. Default 5s.
	PollInterval time.Duration

	// BufferSize bounds queued batches. Default 64.
	BufferSize int

	// ForcePolling skips fsnotify.
	ForcePolling bool
}

// WithDefaults fills zero values.
func (o Options) WithDefaults() Options {
	if o.Debounce <= 0 {
		o.Debounce = 500 * time.Millisecond
	}
	if o.PollInterval <= 0 {
		o.PollInterval = 5 * time.Second
	}
	if o.BufferSize <= 0 {
		o.BufferSize = 64
	}
	return o
}

// Split separates a batch into paths to (re)index and paths that are gone.
// Renames count as gone: fsnotify reports the old name, the new one arrives
// as a create.
func Split(batch []Event) (changed, removed []string) {
	for _, ev := range batch {
		switch ev.Operation {
		case OpCreate, OpModify:
			changed = append(changed, ev.Path)
		case OpDelete, OpRename:
			removed = append(removed, ev.Path)
		}
	}
	return changed, removed
}
