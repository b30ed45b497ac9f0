package batch

import (
	"fmt"
	"sync"
	"time"
)

// Registry is the process-wide table of active batches. Each entry has
// its own mutex, so reads and writes to one batch serialize while
// different batches never contend. Terminal statuses are sticky: a stale
// progress signal arriving after complete/error/cancel is dropped.
type Registry struct {
	entries sync.Map // batch id -> *entry
}

type entry struct {
	mu sync.Mutex
	b  Batch
}

func NewRegistry() *Registry {
	return &Registry{}
}

// Create registers a new batch. An id collision should never happen and
// is reported as an error so submission can fail loudly.
func (r *Registry) Create(b Batch) error {
	if _, loaded := r.entries.LoadOrStore(b.ID, &entry{b: b}); loaded {
		return fmt.Errorf("batch id collision: %s", b.ID)
	}
	return nil
}

// RecordProgress raises the completed count. Counts never go backward
// and terminal entries are left untouched.
func (r *Registry) RecordProgress(id string, completed int) {
	r.mutate(id, func(b *Batch) {
		if b.Status.Terminal() {
			return
		}
		if completed > b.Completed {
			b.Completed = completed
		}
		if b.Completed > b.Total {
			b.Completed = b.Total
		}
	})
}

// RecordComplete marks the batch complete and publishes the archive
// location. Returns false if the batch is unknown or already terminal,
// in which case the caller owns disposing of the produced archive.
func (r *Registry) RecordComplete(id, outputName, outputPath string) bool {
	applied := false
	r.mutate(id, func(b *Batch) {
		if b.Status.Terminal() {
			return
		}
		b.Status = StatusComplete
		b.Completed = b.Total
		b.OutputName = outputName
		b.OutputPath = outputPath
		b.FinishedAt = time.Now()
		applied = true
	})
	return applied
}

// RecordError marks the batch as explicitly failed by its worker.
func (r *Registry) RecordError(id, msg string) {
	r.terminate(id, StatusError, msg)
}

// RecordFailed marks an abnormal worker exit. Distinct from RecordError;
// a previously recorded terminal status wins.
func (r *Registry) RecordFailed(id, msg string) {
	r.terminate(id, StatusFailed, msg)
}

func (r *Registry) terminate(id string, s Status, msg string) {
	r.mutate(id, func(b *Batch) {
		if b.Status.Terminal() {
			return
		}
		b.Status = s
		b.Error = msg
		b.FinishedAt = time.Now()
	})
}

// Get returns a snapshot of the batch.
func (r *Registry) Get(id string) (Batch, bool) {
	v, ok := r.entries.Load(id)
	if !ok {
		return Batch{}, false
	}
	e := v.(*entry)
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.b, true
}

// Remove deletes the entry and returns its final snapshot.
func (r *Registry) Remove(id string) (Batch, bool) {
	v, ok := r.entries.LoadAndDelete(id)
	if !ok {
		return Batch{}, false
	}
	e := v.(*entry)
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.b, true
}

// Range calls fn with a snapshot of every batch until fn returns false.
func (r *Registry) Range(fn func(Batch) bool) {
	r.entries.Range(func(_, v interface{}) bool {
		e := v.(*entry)
		e.mu.Lock()
		b := e.b
		e.mu.Unlock()
		return fn(b)
	})
}

func (r *Registry) mutate(id string, fn func(*Batch)) {
	v, ok := r.entries.Load(id)
	if !ok {
		return
	}
	e := v.(*entry)
	e.mu.Lock()
	defer e.mu.Unlock()
	fn(&e.b)
}
