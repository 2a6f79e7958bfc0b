package snapshot

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"RedScrip/internal/logger"
	"RedScrip/internal/storage"
)

const (
	// defaultInterval is the default period between exports.
	defaultInterval = 10 * time.Minute

	// retainCount is how many snapshot files are kept on disk.
	retainCount = 5

	// filePrefix names snapshot files; the nanosecond stamp after it
	// makes names sort oldest first.
	filePrefix = "snapshot-"
)

// Exporter produces compressed on-demand exports.
type Exporter struct {
	db *storage.Storage
}

// NewExporter creates an exporter over the given store.
func NewExporter(db *storage.Storage) *Exporter {
	return &Exporter{db: db}
}

// Snapshot creates and compresses a fresh export.
func (e *Exporter) Snapshot() ([]byte, error) {
	data, err := Create(e.db)
	if err != nil {
		return nil, err
	}

	return Compress(data)
}

// Manager writes periodic compressed snapshots into a directory and
// keeps only the newest few.
type Manager struct {
	db       *storage.Storage
	dir      string
	interval time.Duration

	mu     sync.RWMutex
	latest string // path of the newest written snapshot

	stop chan struct{}
	wg   sync.WaitGroup
}

// NewManager creates a manager writing into dir every interval. A
// non-positive interval falls back to the default.
func NewManager(db *storage.Storage, dir string, interval time.Duration) *Manager {
	if interval <= 0 {
		interval = defaultInterval
	}

	return &Manager{
		db:       db,
		dir:      dir,
		interval: interval,
		stop:     make(chan struct{}),
	}
}

// Start creates the snapshot directory and begins the export loop.
func (m *Manager) Start() error {
	if err := os.MkdirAll(m.dir, 0o755); err != nil {
		return fmt.Errorf("create snapshot dir:\n%w", err)
	}

	m.wg.Add(1)
	go m.loop()

	return nil
}

// Stop stops the export loop and waits for it to finish.
func (m *Manager) Stop() {
	close(m.stop)
	m.wg.Wait()
}

// Latest returns the path of the newest written snapshot, empty when
// none has been written yet.
func (m *Manager) Latest() string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.latest
}

// loop writes one snapshot right away, then one per interval.
func (m *Manager) loop() {
	defer m.wg.Done()

	m.writeSnapshot()

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-m.stop:
			return
		case <-ticker.C:
			m.writeSnapshot()
		}
	}
}

// writeSnapshot exports the current state into a timestamped file and
// prunes old ones.
func (m *Manager) writeSnapshot() {
	data, err := Create(m.db)
	if err != nil {
		logger.Error("create snapshot", "error", err)
		return
	}

	compressed, err := Compress(data)
	if err != nil {
		logger.Error("compress snapshot", "error", err)
		return
	}

	name := fmt.Sprintf("%s%d.zst", filePrefix, time.Now().UnixNano())
	path := filepath.Join(m.dir, name)

	if err := os.WriteFile(path, compressed, 0o644); err != nil {
		logger.Error("write snapshot", "error", err)
		return
	}

	m.mu.Lock()
	m.latest = path
	m.mu.Unlock()

	if err := m.prune(); err != nil {
		logger.Error("prune snapshots", "error", err)
	}

	logger.Debug("snapshot written",
		"path", path,
		"size", len(data),
		"compressed", len(compressed),
	)
}

// prune removes all but the newest retainCount snapshot files.
func (m *Manager) prune() error {
	dirents, err := os.ReadDir(m.dir)
	if err != nil {
		return err
	}

	var names []string
	for _, d := range dirents {
		if !d.IsDir() && strings.HasPrefix(d.Name(), filePrefix) {
			names = append(names, d.Name())
		}
	}

	sort.Strings(names)

	for len(names) > retainCount {
		if err := os.Remove(filepath.Join(m.dir, names[0])); err != nil {
			return err
		}
		names = names[1:]
	}

	return nil
}
