package watcher

import "time"

// Operation is the kind of change a source observed.
type Operation int

const (
	OpCreate Operation = iota + 1
	OpModify
	OpDelete
	OpMove
)

func (op Operation) String() string {
	switch op {
	case OpCreate:
		return "CREATE"
	case OpModify:
		return "MODIFY"
	case OpDelete:
		return "DELETE"
	case OpMove:
		return "MOVE"
	default:
		return "UNKNOWN"
	}
}

// Event is a normalized notification with absolute paths.
type Event struct {
	Op   Operation
	Path string
	// OldPath is the source path of an OpMove.
	OldPath string
	IsDir   bool
	Time    time.Time
}
