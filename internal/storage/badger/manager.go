package badger

import (
	"sync"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/reperio/internal/common"
	"github.com/ternarybob/reperio/internal/interfaces"
)

// gcInterval is how often the value-log garbage collector runs
const gcInterval = 10 * time.Minute

// Manager owns the database connection and the typed stores built on it
type Manager struct {
	db     *BadgerDB
	jobs   interfaces.JobStore
	logger arbor.ILogger

	stopGC   chan struct{}
	stopOnce sync.Once
}

// NewManager opens the database, wires up the job store and starts the
// periodic value-log GC loop
func NewManager(logger arbor.ILogger, config *common.Config) (*Manager, error) {
	db, err := NewBadgerDB(logger, &config.Storage.Badger)
	if err != nil {
		return nil, err
	}

	manager := &Manager{
		db:     db,
		jobs:   NewJobStorage(db, logger, config.Analysis.PhaseWeights),
		logger: logger,
		stopGC: make(chan struct{}),
	}
	common.SafeGo(logger, "badger:gc", manager.gcLoop)

	logger.Info().Msg("Badger storage manager initialized")

	return manager, nil
}

func (m *Manager) gcLoop() {
	ticker := time.NewTicker(gcInterval)
	defer ticker.Stop()
	for {
		select {
		case <-m.stopGC:
			return
		case <-ticker.C:
			if err := m.db.RunValueLogGC(); err != nil {
				m.logger.Warn().Err(err).Msg("Badger value log GC failed")
			}
		}
	}
}

// JobStore returns the job store
func (m *Manager) JobStore() interfaces.JobStore {
	return m.jobs
}

// Close stops the GC loop and closes the database connection
func (m *Manager) Close() error {
	m.stopOnce.Do(func() { close(m.stopGC) })
	if m.db != nil {
		return m.db.Close()
	}
	return nil
}
