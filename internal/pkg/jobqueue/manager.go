package jobqueue

import (
	"context"
	"sync"

	"github.com/gofiber/fiber/v2/log"
	"github.com/robfig/cron/v3"

	"github.com/streamvault/streamvault/internal/pkg/env"
	"github.com/streamvault/streamvault/internal/pkg/provisioning"
	"github.com/streamvault/streamvault/internal/pkg/resellerbalance"
)

// balanceSnapshotSchedule runs the scheduled reseller balance sweep every 6h.
const balanceSnapshotSchedule = "0 */6 * * *"

// Manager manages the global job queue and background tasks
type Manager struct {
	queue   *Queue
	tracker *resellerbalance.Tracker
	cron    *cron.Cron
	mu      sync.Mutex
	running bool
}

var (
	globalManager *Manager
	managerOnce   sync.Once
)

// Setup wires the global manager. Must be called once during bootstrap,
// before GetManager.
func Setup(engine *provisioning.Engine, planChanges PlanChangeCompleter, tracker *resellerbalance.Tracker) *Manager {
	managerOnce.Do(func() {
		workers := env.GetInt("JOB_WORKERS", 3)
		globalManager = &Manager{
			queue:   NewQueue(workers, engine, planChanges),
			tracker: tracker,
		}
	})
	return globalManager
}

// GetManager returns the global job queue manager (singleton)
func GetManager() *Manager {
	return globalManager
}

// GetQueue returns the managed job queue
func (m *Manager) GetQueue() *Queue {
	return m.queue
}

// Start starts the job queue and background tasks
func (m *Manager) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		return
	}
	m.running = true
	log.Info("[JobQueue Manager] Starting job queue and background tasks")

	// Start the job queue
	m.queue.Start()

	// Scheduled reseller balance snapshot
	m.cron = cron.New()
	if m.tracker != nil {
		if _, err := m.cron.AddFunc(balanceSnapshotSchedule, m.runBalanceSnapshot); err != nil {
			log.Errorf("[JobQueue Manager] Could not schedule balance snapshot: %v", err)
		}
	}
	m.cron.Start()

	log.Info("[JobQueue Manager] Started successfully")
}

// Stop stops the job queue and background tasks
func (m *Manager) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.running {
		return
	}

	log.Info("[JobQueue Manager] Stopping job queue and background tasks...")

	if m.cron != nil {
		// Wait for an in-flight snapshot to finish
		<-m.cron.Stop().Done()
	}
	m.queue.Stop()
	m.running = false

	log.Info("[JobQueue Manager] Stopped successfully")
}

// IsRunning returns whether the manager is currently running
func (m *Manager) IsRunning() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

// RunBalanceSnapshotOnce exposes a manual trigger for a single balance
// snapshot (admin use).
func (m *Manager) RunBalanceSnapshotOnce() error {
	_, err := m.tracker.Snapshot(context.Background(), resellerbalance.ReasonScheduled, nil)
	return err
}

func (m *Manager) runBalanceSnapshot() {
	log.Debug("[JobQueue Manager] Running scheduled balance snapshot")
	if err := m.RunBalanceSnapshotOnce(); err != nil {
		log.Errorf("[JobQueue Manager] Scheduled balance snapshot failed: %v", err)
	}
}
