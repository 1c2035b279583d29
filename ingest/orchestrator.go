package ingest

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/rs/xid"
	"github.com/sig-0/iq"

	"github.com/sig-0/cnbrates/metrics"
)

var (
	errInvalidJob      = errors.New("invalid job")
	errInvalidInterval = errors.New("invalid interval")
)

// Orchestrator is the main scheduler for registered background jobs
type Orchestrator struct {
	logger  *slog.Logger
	metrics *metrics.Metrics

	registeredJobs sync.Map

	q             iq.Queue[scheduledRun]
	queryInterval time.Duration
	retryDelay    time.Duration
	qMux          sync.Mutex
}

// New creates a new Orchestrator instance
func New(opts ...Option) *Orchestrator {
	o := &Orchestrator{
		logger:        slog.New(slog.NewTextHandler(io.Discard, nil)),
		metrics:       metrics.New(),
		q:             iq.NewQueue[scheduledRun](),
		queryInterval: time.Second, // every second
		retryDelay:    time.Second * 10,
	}

	// Apply the options
	for _, opt := range opts {
		opt(o)
	}

	return o
}

// Register registers a new job with the orchestrator.
// The job is immediately queued up for execution
func (o *Orchestrator) Register(j Job) error {
	if j == nil || j.Name() == "" {
		return errInvalidJob
	}

	if j.Interval() <= 0 {
		return errInvalidInterval
	}

	// Register the job
	id := xid.New()
	o.registeredJobs.Store(id, j)

	o.logger.Info(
		"registered new job",
		"name", j.Name(),
		"interval", j.Interval().String(),
	)

	// Schedule the first run
	o.scheduleRun(
		time.Now().UTC(),
		id,
		j,
	)

	return nil
}

// Start starts the job orchestration service loop [BLOCKING]
func (o *Orchestrator) Start(ctx context.Context) error {
	collectorCh := make(chan *workerResponse, 100)

	// Start a listener for monitoring jobs
	ticker := time.NewTicker(o.queryInterval)
	defer ticker.Stop()

	// handleDue starts all jobs that are executable (due)
	handleDue := func() {
		for {
			select {
			case <-ctx.Done():
				return
			default:
				next := o.nextRun()
				if next == nil {
					return // nothing to run anymore
				}

				o.logger.Debug(
					"running job",
					"name", next.job.Name(),
				)

				// Spawn worker
				info := &workerInfo{
					job:   next.job,
					jobID: next.jobID,
					resCh: collectorCh,
				}

				go handleJob(ctx, info)
			}
		}
	}

	// Start the first set of due jobs (on boot)
	handleDue()

	for {
		select {
		case <-ctx.Done():
			o.logger.Info("orchestrator service shut down")

			return nil
		case <-ticker.C:
			handleDue()
		case response := <-collectorCh:
			now := time.Now().UTC()

			jobRaw, ok := o.registeredJobs.Load(response.jobID)
			if !ok {
				o.logger.Error(
					"unable to load registered job",
					"id", response.jobID.String(),
				)

				continue
			}

			job, _ := jobRaw.(Job)

			o.metrics.ObserveJob(job.Name(), response.error)

			if response.error != nil {
				o.logger.Error(
					"error encountered during job run",
					"name", job.Name(),
					"id", response.jobID.String(),
					"err", response.error.Error(),
				)

				// Retry the job soon
				o.scheduleRun(
					now.Add(o.retryDelay),
					response.jobID,
					job,
				)

				continue
			}

			o.logger.Info(
				"job completed",
				"name", job.Name(),
				"duration", response.duration.String(),
			)

			// Schedule the next run for this job
			o.scheduleRun(
				now.Add(job.Interval()),
				response.jobID,
				job,
			)
		}
	}
}

// scheduleRun schedules a new job run
func (o *Orchestrator) scheduleRun(
	at time.Time,
	jobID xid.ID,
	job Job,
) {
	o.qMux.Lock()
	defer o.qMux.Unlock()

	o.q.Push(scheduledRun{
		at:    at,
		jobID: jobID,
		job:   job,
	})
}

// nextRun fetches the next due run, as of the moment of calling
func (o *Orchestrator) nextRun() *scheduledRun {
	o.qMux.Lock()
	defer o.qMux.Unlock()

	now := time.Now().UTC()

	// Check if anything needs to be run
	if o.q.Len() == 0 {
		return nil // nothing to run, all jobs are running
	}

	// Check if the top element is due
	if o.q.Index(0).at.After(now) {
		return nil // nothing to run, earliest run is in the future
	}

	return o.q.PopFront()
}
