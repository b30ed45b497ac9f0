package batch

import (
	"context"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/avinashw50w/batch-image-compressor-webp/archive"
	"github.com/avinashw50w/batch-image-compressor-webp/transform"
)

// Worker drives one batch: transform each file in submission order,
// stream it into the archive, delete the consumed source, and report
// progress. It communicates with the orchestrator only through one-way
// signals on a channel sized so sends never block.
type Worker struct {
	batchID     string
	files       []SourceFile
	settings    transform.Settings
	archivePath string
	outputName  string
	signals     chan Signal
	preflight   func() error
	log         *zap.Logger
}

// Run executes the batch until completion, fatal error, or context
// cancellation. On cancellation it removes the partial archive and
// returns without signalling; the orchestrator owns the rest of the
// cleanup. A panic is reported as a failed signal so one broken batch
// never takes the process down.
func (w *Worker) Run(ctx context.Context) {
	defer func() {
		if rec := recover(); rec != nil {
			w.log.Error("worker panic", zap.String("batch", w.batchID), zap.Any("panic", rec))
			os.Remove(w.archivePath)
			w.signals <- Signal{Kind: SignalFailed, Message: fmt.Sprintf("worker crashed: %v", rec)}
		}
	}()

	if w.preflight != nil {
		if err := w.preflight(); err != nil {
			w.log.Warn("preflight check failed", zap.String("batch", w.batchID), zap.Error(err))
			w.signals <- Signal{Kind: SignalError, Message: fmt.Sprintf("insufficient system resources: %v", err)}
			return
		}
	}

	if ctx.Err() != nil {
		return
	}

	zw, err := archive.Create(w.archivePath)
	if err != nil {
		w.log.Error("cannot create archive", zap.String("batch", w.batchID), zap.Error(err))
		w.signals <- Signal{Kind: SignalError, Message: err.Error()}
		return
	}

	completed := 0
	for _, f := range w.files {
		if ctx.Err() != nil {
			w.abort(zw)
			return
		}

		w.addEntry(zw, f)

		// Source is consumed regardless of per-file outcome.
		if err := os.Remove(f.Path); err != nil {
			w.log.Warn("cannot delete consumed source",
				zap.String("batch", w.batchID), zap.String("path", f.Path), zap.Error(err))
		}

		completed++
		w.signals <- Signal{Kind: SignalProgress, Completed: completed}
	}

	if ctx.Err() != nil {
		w.abort(zw)
		return
	}

	if err := zw.Close(); err != nil {
		w.log.Error("cannot finalize archive", zap.String("batch", w.batchID), zap.Error(err))
		os.Remove(w.archivePath)
		w.signals <- Signal{Kind: SignalError, Message: err.Error()}
		return
	}

	w.signals <- Signal{Kind: SignalComplete, OutputName: w.outputName, OutputPath: w.archivePath}
}

// addEntry applies the per-file state machine: transform if eligible,
// fall back to the original bytes on transform failure, and skip the
// entry entirely only when the source itself is unreadable. Per-file
// errors are logged, never fatal to the batch.
func (w *Worker) addEntry(zw *archive.Writer, f SourceFile) {
	if transform.Eligible(f.Name) {
		data, err := transform.Image(f.Path, w.settings)
		if err == nil {
			if err := zw.AppendBytes(transform.OutputName(f.Name), data); err == nil {
				return
			}
			w.log.Warn("cannot append transformed entry",
				zap.String("batch", w.batchID), zap.String("file", f.Name), zap.Error(err))
		} else {
			w.log.Warn("transform failed, including original",
				zap.String("batch", w.batchID), zap.String("file", f.Name), zap.Error(err))
		}
	}

	if err := zw.AppendFile(f.Name, f.Path); err != nil {
		// Unreadable source: the entry is skipped but still counts.
		w.log.Warn("skipping unreadable source",
			zap.String("batch", w.batchID), zap.String("file", f.Name), zap.Error(err))
	}
}

// abort discards the partial archive after a cancellation.
func (w *Worker) abort(zw *archive.Writer) {
	zw.Close()
	os.Remove(w.archivePath)
	w.log.Info("worker cancelled", zap.String("batch", w.batchID))
}
