package background

import (
	"context"
	"sort"
	"sync"
	"time"

	"galapa/internal/services"

	"github.com/go-co-op/gocron/v2"
	"github.com/rs/zerolog/log"
)

const jobTimeout = time.Minute

// Options selects which jobs run. Zero values disable a job.
type Options struct {
	CacheRefreshInterval time.Duration
	AuditRetention       time.Duration
}

// JobScheduler runs periodic maintenance for the provider directory
type JobScheduler struct {
	scheduler   gocron.Scheduler
	providerSvc services.ProviderService
	auditSvc    services.AuditLogsService
	opts        Options
	jobs        map[string]gocron.Job
	mu          sync.RWMutex
}

// NewJobScheduler creates a scheduler and registers the enabled jobs
func NewJobScheduler(providerSvc services.ProviderService, auditSvc services.AuditLogsService, opts Options) (*JobScheduler, error) {
	scheduler, err := gocron.NewScheduler()
	if err != nil {
		return nil, err
	}

	js := &JobScheduler{
		scheduler:   scheduler,
		providerSvc: providerSvc,
		auditSvc:    auditSvc,
		opts:        opts,
		jobs:        make(map[string]gocron.Job),
	}

	if err := js.registerJobs(); err != nil {
		_ = scheduler.Shutdown()
		return nil, err
	}
	return js, nil
}

// Start starts the job scheduler
func (js *JobScheduler) Start() {
	log.Info().Int("jobs", len(js.JobNames())).Msg("starting background job scheduler")
	js.scheduler.Start()
}

// Stop waits for running jobs and stops the scheduler
func (js *JobScheduler) Stop() error {
	log.Info().Msg("stopping background job scheduler")
	return js.scheduler.Shutdown()
}

func (js *JobScheduler) registerJobs() error {
	if js.opts.CacheRefreshInterval > 0 {
		if err := js.addJob("provider-cache-refresh", gocron.DurationJob(js.opts.CacheRefreshInterval), js.RefreshProviderCache); err != nil {
			return err
		}
	}

	if js.opts.AuditRetention > 0 {
		daily := gocron.DailyJob(1, gocron.NewAtTimes(gocron.NewAtTime(3, 0, 0)))
		if err := js.addJob("audit-log-retention", daily, js.PurgeAuditLogs); err != nil {
			return err
		}
	}

	return nil
}

func (js *JobScheduler) addJob(name string, definition gocron.JobDefinition, task func(context.Context) error) error {
	js.mu.Lock()
	defer js.mu.Unlock()

	job, err := js.scheduler.NewJob(
		definition,
		gocron.NewTask(func() {
			ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
			defer cancel()
			if err := task(ctx); err != nil {
				log.Error().Err(err).Str("job", name).Msg("background job failed")
			}
		}),
		gocron.WithName(name),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return err
	}

	js.jobs[name] = job
	return nil
}

// RefreshProviderCache reloads the provider listing into the cache
func (js *JobScheduler) RefreshProviderCache(ctx context.Context) error {
	start := time.Now()
	if err := js.providerSvc.WarmCache(ctx); err != nil {
		return err
	}
	log.Debug().Dur("took", time.Since(start)).Msg("provider cache refreshed")
	return nil
}

// PurgeAuditLogs deletes audit entries older than the retention window
func (js *JobScheduler) PurgeAuditLogs(ctx context.Context) error {
	purged, err := js.auditSvc.PurgeExpired(ctx, js.opts.AuditRetention)
	if err != nil {
		return err
	}
	log.Info().Int64("purged", purged).Msg("audit log retention applied")
	return nil
}

// JobNames returns the registered job names, sorted
func (js *JobScheduler) JobNames() []string {
	js.mu.RLock()
	defer js.mu.RUnlock()

	names := make([]string, 0, len(js.jobs))
	for name := range js.jobs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
