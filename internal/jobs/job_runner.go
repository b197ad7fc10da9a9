package jobs

import (
	"kioskops-backend/internal/config"
	"kioskops-backend/internal/external"
	"kioskops-backend/internal/logger"
	"kioskops-backend/internal/queue"
	"kioskops-backend/internal/repository"
)

// JobRunner coordinates the scheduled safety-net sweeps. The sweeps exist
// because side-effect messages are published after the owning transaction
// commits; a crash in that window loses the message but leaves the entity's
// processing ledger pending, which is exactly what the sweeps look for.
type JobRunner struct {
	store    repository.Store
	pub      queue.Publisher
	notifier external.Notifier
	config   *config.Config
}

// NewJobRunner creates a new job runner with all dependencies
func NewJobRunner(store repository.Store, pub queue.Publisher, notifier external.Notifier, cfg *config.Config) *JobRunner {
	return &JobRunner{
		store:    store,
		pub:      pub,
		notifier: notifier,
		config:   cfg,
	}
}

// Config exposes the configuration for schedule registration
func (jr *JobRunner) Config() *config.Config {
	return jr.config
}

// runWithRecovery wraps job execution with panic recovery
func (jr *JobRunner) runWithRecovery(jobName string, jobFunc func()) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("Job panicked", "job", jobName, "panic", r)
		}
	}()

	logger.Info("Starting job", "job", jobName)
	jobFunc()
	logger.Info("Job completed", "job", jobName)
}

// RunAllSweeps runs every sweep once (for manual execution)
func (jr *JobRunner) RunAllSweeps() {
	jr.SweepCancelledOrders()
	jr.SweepReturnedBookings()
	jr.SweepOverdueBookings()
}
