// Package queue defines pipeline jobs and the bounded queue that carries them
// from producers (event translator, initial scanner) to workers.
package queue

import "fmt"

// Kind is the type of change a Job applies to the index.
type Kind int

const (
	Created Kind = iota + 1
	Modified
	Deleted
	Moved
)

func (k Kind) String() string {
	switch k {
	case Created:
		return "created"
	case Modified:
		return "modified"
	case Deleted:
		return "deleted"
	case Moved:
		return "moved"
	default:
		return "unknown"
	}
}

// Job is an immutable unit of pipeline work. For Moved jobs Path equals Dst.
type Job struct {
	Kind Kind
	Path string
	Src  string
	Dst  string
}

// NewJob builds a created, modified or deleted job.
func NewJob(kind Kind, path string) Job {
	return Job{Kind: kind, Path: path}
}

// NewMove builds a moved job from src to dst.
func NewMove(src, dst string) Job {
	return Job{Kind: Moved, Path: dst, Src: src, Dst: dst}
}

// Key is the path whose history a job continues: the source for moves.
func (j Job) Key() string {
	if j.Kind == Moved {
		return j.Src
	}
	return j.Path
}

func (j Job) String() string {
	if j.Kind == Moved {
		return fmt.Sprintf("moved %s -> %s", j.Src, j.Dst)
	}
	return fmt.Sprintf("%s %s", j.Kind, j.Path)
}
