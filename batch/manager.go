package batch

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sync"
	"time"

	"github.com/lithammer/shortuuid/v4"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/mem"
	"go.uber.org/zap"

	"github.com/avinashw50w/batch-image-compressor-webp/config"
	"github.com/avinashw50w/batch-image-compressor-webp/storage"
	"github.com/avinashw50w/batch-image-compressor-webp/transform"
)

var ErrNotFound = errors.New("batch not found")

// Manager creates batches, launches one worker goroutine per batch,
// wires worker signals into the registry, and owns cancel and download
// release semantics. The request path never blocks on batch work: the
// concurrency slot is acquired inside the worker goroutine.
type Manager struct {
	cfg            *config.Config
	log            *zap.Logger
	registry       *Registry
	concurrencySem chan struct{}
	workersMu      sync.Mutex
	workers        map[string]context.CancelFunc
	preflight      func() error
	baseCtx        context.Context
}

func NewManager(cfg *config.Config, log *zap.Logger) *Manager {
	m := &Manager{
		cfg:            cfg,
		log:            log,
		registry:       NewRegistry(),
		concurrencySem: make(chan struct{}, cfg.MaxConcurrency),
		workers:        make(map[string]context.CancelFunc),
		baseCtx:        context.Background(),
	}
	m.preflight = m.checkResources
	return m
}

// Start hooks the manager to the process lifetime context and begins the
// periodic age sweep over both storage areas and stale registry entries.
func (m *Manager) Start(ctx context.Context) {
	m.baseCtx = ctx
	go m.sweepLoop(ctx)
	m.log.Info("batch manager started", zap.Int("max_concurrency", m.cfg.MaxConcurrency))
}

// Submit registers the batch and launches its worker. Returns the batch
// id immediately; progress is observed through Get.
func (m *Manager) Submit(files []SourceFile, settings transform.Settings, outputLabel string) (string, error) {
	if len(files) == 0 {
		return "", errors.New("no input files")
	}

	id := fmt.Sprintf("%s_%d", shortuuid.New(), time.Now().Unix())
	outputName := archiveName(outputLabel, id)

	b := Batch{
		ID:         id,
		Status:     StatusProcessing,
		Total:      len(files),
		InputFiles: files,
		CreatedAt:  time.Now(),
	}
	if err := m.registry.Create(b); err != nil {
		return "", err
	}

	wctx, cancel := context.WithCancel(m.baseCtx)
	m.workersMu.Lock()
	m.workers[id] = cancel
	m.workersMu.Unlock()

	// Archives are stored under the batch id; the logical name is only
	// used for the download attachment, so two batches with the same
	// label never collide on disk.
	w := &Worker{
		batchID:     id,
		files:       files,
		settings:    settings.Normalize(),
		archivePath: m.archivePath(id),
		outputName:  outputName,
		signals:     make(chan Signal, len(files)+4),
		preflight:   m.preflight,
		log:         m.log,
	}

	go func() {
		defer close(w.signals)
		select {
		case m.concurrencySem <- struct{}{}:
		case <-wctx.Done():
			return
		}
		defer func() { <-m.concurrencySem }()
		w.Run(wctx)
	}()
	go m.pump(id, w.signals)

	m.log.Info("batch submitted",
		zap.String("batch", id), zap.Int("files", len(files)), zap.String("output", outputName))
	return id, nil
}

// Get returns a snapshot of the batch state.
func (m *Manager) Get(id string) (Batch, bool) {
	return m.registry.Get(id)
}

// Cancel terminates any running worker and discards everything the batch
// owns: remaining sources, partial or complete archive, registry entry.
// A complete signal racing the cancel loses; the archive is deleted
// either way.
func (m *Manager) Cancel(id string) error {
	b, ok := m.registry.Remove(id)
	if !ok {
		return ErrNotFound
	}

	m.workersMu.Lock()
	if cancel, running := m.workers[id]; running {
		cancel()
	}
	m.workersMu.Unlock()

	m.removeSources(b)
	os.Remove(m.archivePath(id))
	m.log.Info("batch cancelled", zap.String("batch", id))
	return nil
}

// Release drops the batch after a successful download and deletes the
// archive, making a second download a not-found.
func (m *Manager) Release(id string) {
	if b, ok := m.registry.Remove(id); ok && b.OutputPath != "" {
		os.Remove(b.OutputPath)
	}
}

// pump drains one worker's signal channel into the registry. It is the
// only writer of this batch's status, so signal order is preserved.
func (m *Manager) pump(id string, signals <-chan Signal) {
	for sig := range signals {
		switch sig.Kind {
		case SignalProgress:
			m.registry.RecordProgress(id, sig.Completed)
		case SignalComplete:
			if !m.registry.RecordComplete(id, sig.OutputName, sig.OutputPath) {
				// Batch was cancelled while the signal was in flight;
				// the produced archive must not survive.
				os.Remove(sig.OutputPath)
			}
		case SignalError:
			m.registry.RecordError(id, sig.Message)
			m.cleanupResidual(id)
		case SignalFailed:
			m.registry.RecordFailed(id, sig.Message)
			m.cleanupResidual(id)
		}
	}

	m.workersMu.Lock()
	delete(m.workers, id)
	m.workersMu.Unlock()
}

// cleanupResidual removes whatever a dead worker left behind: sources it
// never consumed and any partial archive. The registry entry stays so
// the client can observe the terminal status.
func (m *Manager) cleanupResidual(id string) {
	if b, ok := m.registry.Get(id); ok {
		m.removeSources(b)
	}
	os.Remove(m.archivePath(id))
}

func (m *Manager) removeSources(b Batch) {
	for _, f := range b.InputFiles {
		if err := os.Remove(f.Path); err != nil && !os.IsNotExist(err) {
			m.log.Warn("cannot remove source file",
				zap.String("batch", b.ID), zap.String("path", f.Path), zap.Error(err))
		}
	}
}

func (m *Manager) archivePath(id string) string {
	return filepath.Join(m.cfg.OutputDir, id+".zip")
}

// sweepLoop is the backstop for abandoned batches: age-sweeps both
// storage areas and reaps terminal registry entries nobody collected.
func (m *Manager) sweepLoop(ctx context.Context) {
	ticker := time.NewTicker(m.cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			m.log.Info("sweep loop shutting down")
			return
		case <-ticker.C:
			storage.AgeSweep(m.cfg.UploadDir, m.cfg.MaxFileAge, m.log)
			storage.AgeSweep(m.cfg.OutputDir, m.cfg.MaxFileAge, m.log)
			m.reapStaleEntries()
		}
	}
}

func (m *Manager) reapStaleEntries() {
	cutoff := time.Now().Add(-m.cfg.MaxFileAge)
	m.registry.Range(func(b Batch) bool {
		if b.Status.Terminal() && b.FinishedAt.Before(cutoff) {
			m.log.Info("reaping stale batch entry",
				zap.String("batch", b.ID), zap.String("status", string(b.Status)))
			m.registry.Remove(b.ID)
		}
		return true
	})
}

// checkResources refuses to start a batch when the host is starved.
// A threshold of zero disables the corresponding check.
func (m *Manager) checkResources() error {
	if m.cfg.ThrottleCPU > 0 {
		p, err := cpu.Percent(time.Second, false)
		if err != nil {
			m.log.Warn("cannot get CPU usage", zap.Error(err))
		} else if len(p) > 0 && p[0] > (100.0-m.cfg.ThrottleCPU) {
			return fmt.Errorf("not enough idle CPU: usage %.2f%%, idle threshold %.2f%%", p[0], m.cfg.ThrottleCPU)
		}
	}

	if m.cfg.ThrottleFreeMem > 0 {
		vm, err := mem.VirtualMemory()
		if err != nil {
			m.log.Warn("cannot get memory usage", zap.Error(err))
		} else if vm.Available < uint64(m.cfg.ThrottleFreeMem) {
			return fmt.Errorf("not enough free memory: available %d, required %d", vm.Available, m.cfg.ThrottleFreeMem)
		}
	}

	if m.cfg.ThrottleFreeDisk > 0 {
		d, err := disk.Usage(m.cfg.OutputDir)
		if err != nil {
			m.log.Warn("cannot get disk usage", zap.String("dir", m.cfg.OutputDir), zap.Error(err))
		} else if d.Free < uint64(m.cfg.ThrottleFreeDisk) {
			return fmt.Errorf("not enough free disk space: available %d, required %d", d.Free, m.cfg.ThrottleFreeDisk)
		}
	}
	return nil
}

var labelSanitizer = regexp.MustCompile(`[^a-zA-Z0-9._-]+`)

// archiveName derives the logical archive name from the caller-supplied
// label, or from the batch id when no usable label is given.
func archiveName(label, id string) string {
	label = filepath.Base(label)
	label = labelSanitizer.ReplaceAllString(label, "_")
	label = trimDots(label)
	if label == "" {
		return "compressed_images_" + id + ".zip"
	}
	return label + ".zip"
}

func trimDots(s string) string {
	for len(s) > 0 && (s[0] == '.' || s[0] == '_') {
		s = s[1:]
	}
	for len(s) > 0 && s[len(s)-1] == '.' {
		s = s[:len(s)-1]
	}
	return s
}
