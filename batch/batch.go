package batch

import (
	"math"
	"time"
)

type Status string

const (
	StatusProcessing Status = "processing"
	StatusComplete   Status = "complete"
	StatusError      Status = "error"
	StatusFailed     Status = "failed"
	StatusCancelled  Status = "cancelled"
)

// Terminal reports whether no further transition can happen without
// external action (download or cleanup).
func (s Status) Terminal() bool {
	return s != StatusProcessing
}

// SourceFile describes one uploaded original. Immutable after upload.
type SourceFile struct {
	Name string // original file name as uploaded
	Path string // stored location in the intake area
	Size int64
}

// Batch is one compression request. Registry hands out value copies;
// the canonical record is only mutated through worker signals.
type Batch struct {
	ID         string
	Status     Status
	Total      int
	Completed  int
	InputFiles []SourceFile
	OutputName string // logical archive name, set when the worker reports completion
	OutputPath string // on-disk archive location, set with OutputName
	Error      string
	CreatedAt  time.Time
	FinishedAt time.Time
}

// Progress returns the completion percentage, rounded.
func (b Batch) Progress() int {
	if b.Total == 0 {
		return 0
	}
	return int(math.Round(float64(b.Completed) / float64(b.Total) * 100))
}

type SignalKind int

const (
	SignalProgress SignalKind = iota
	SignalComplete
	SignalError
	SignalFailed
)

// Signal is a one-way message from a worker to the orchestrator. Progress
// carries Completed; Complete carries OutputName/OutputPath; Error and
// Failed carry Message.
type Signal struct {
	Kind       SignalKind
	Completed  int
	OutputName string
	OutputPath string
	Message    string
}
