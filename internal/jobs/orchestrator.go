package jobs

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"tradeanalytics/internal/metrics"
	"tradeanalytics/internal/models"
	"tradeanalytics/internal/service"
)

const (
	JobSuperadminAnalysis = "superadmin-analysis"
	JobAdminAnalysis      = "admin-analysis"
	JobMasterAnalysis     = "master-analysis"
	JobUserSnapshots      = "user-snapshots"
	JobCombined           = "combined"
)

const (
	StatusSucceeded = "succeeded"
	StatusFailed    = "failed"
	StatusPartial   = "partial"
)

const (
	TriggerManual = "manual"
	TriggerAPI    = "api"
	TriggerCron   = "cron"
)

var (
	ErrAlreadyRunning = errors.New("job already running")
	ErrUnknownJob     = fmt.Errorf("%w: unknown job", service.ErrInput)
)

// combinedSequence is the order in which the combined job runs its parts.
var combinedSequence = []string{
	JobSuperadminAnalysis,
	JobAdminAnalysis,
	JobMasterAnalysis,
	JobUserSnapshots,
}

func AllJobs() []string {
	return append(append([]string(nil), combinedSequence...), JobCombined)
}

// Materializer is the work behind every job; *service.Materializer implements it.
type Materializer interface {
	MaterializeOwners(ctx context.Context, scope string) (service.BatchResult, error)
	MaterializeUserSnapshots(ctx context.Context) (service.BatchResult, error)
}

type Result struct {
	Job        string                `json:"job"`
	RunID      string                `json:"run_id"`
	Trigger    string                `json:"trigger"`
	OK         bool                  `json:"ok"`
	Status     string                `json:"status"`
	Skipped    bool                  `json:"skipped,omitempty"`
	StartedAt  time.Time             `json:"started_at"`
	FinishedAt time.Time             `json:"finished_at"`
	Batches    []service.BatchResult `json:"batches,omitempty"`
	SubResults []Result              `json:"sub_results,omitempty"`
	Error      string                `json:"error,omitempty"`
}

type RunResponse struct {
	Started bool    `json:"started"`
	RunID   string  `json:"run_id"`
	Result  *Result `json:"result,omitempty"`
}

type Status struct {
	Jobs map[string]State `json:"jobs"`
}

type Orchestrator struct {
	Registry     *Registry
	Materializer Materializer
	Switches     service.FeatureSwitches
	Logger       *zap.Logger
	Metrics      *metrics.Metrics
	// BaseCtx outlives single requests; async runs use it when set.
	BaseCtx context.Context
	Now     func() time.Time

	wg sync.WaitGroup
}

func NewOrchestrator(m Materializer, logger *zap.Logger) *Orchestrator {
	return &Orchestrator{
		Registry:     NewRegistry(AllJobs()...),
		Materializer: m,
		Logger:       logger,
	}
}

func (o *Orchestrator) logger() *zap.Logger {
	if o.Logger == nil {
		return zap.NewNop()
	}
	return o.Logger
}

func (o *Orchestrator) now() time.Time {
	if o.Now != nil {
		return o.Now()
	}
	return time.Now().UTC()
}

// RunJob starts one named job. A busy job returns ErrAlreadyRunning and is
// not queued. Async runs return as soon as the lock is held.
func (o *Orchestrator) RunJob(ctx context.Context, name, trigger string, async bool) (RunResponse, error) {
	if o == nil || o.Registry == nil || !o.Registry.Has(name) {
		return RunResponse{}, fmt.Errorf("%w %q", ErrUnknownJob, name)
	}
	if trigger == "" {
		trigger = TriggerManual
	}
	runID := uuid.NewString()
	release, ok := o.Registry.TryStart(name, runID, o.now())
	if !ok {
		o.logger().Info("job busy, trigger rejected", zap.String("job", name), zap.String("trigger", trigger))
		return RunResponse{RunID: runID}, fmt.Errorf("%w: %s", ErrAlreadyRunning, name)
	}

	if !async {
		res := o.execute(ctx, name, runID, trigger)
		release(res)
		return RunResponse{RunID: runID, Result: &res}, nil
	}

	runCtx := o.BaseCtx
	if runCtx == nil {
		runCtx = context.WithoutCancel(ctx)
	}
	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		res := o.execute(runCtx, name, runID, trigger)
		release(res)
	}()
	return RunResponse{Started: true, RunID: runID}, nil
}

func (o *Orchestrator) Status() Status {
	if o == nil || o.Registry == nil {
		return Status{Jobs: map[string]State{}}
	}
	return Status{Jobs: o.Registry.Snapshot()}
}

// Wait blocks until every async run has finished.
func (o *Orchestrator) Wait() {
	o.wg.Wait()
}

// execute never panics; a panicking body becomes a failed result.
func (o *Orchestrator) execute(ctx context.Context, name, runID, trigger string) (res Result) {
	started := o.now()
	res = Result{Job: name, RunID: runID, Trigger: trigger, StartedAt: started}
	log := o.logger().With(zap.String("job", name), zap.String("run_id", runID), zap.String("trigger", trigger))
	log.Info("job started")
	defer func() {
		if r := recover(); r != nil {
			res.OK = false
			res.Status = StatusFailed
			res.Error = fmt.Sprintf("panic: %v", r)
			log.Error("job panicked", zap.Any("panic", r), zap.ByteString("stack", debug.Stack()))
		}
		res.FinishedAt = o.now()
		o.Metrics.ObserveJob(name, res.Status, res.FinishedAt.Sub(started))
		log.Info("job finished",
			zap.String("status", res.Status),
			zap.Duration("elapsed", res.FinishedAt.Sub(started)),
		)
	}()

	if name == JobCombined {
		o.runCombined(ctx, runID, trigger, &res)
		return res
	}
	o.runSingle(ctx, name, &res)
	return res
}

func (o *Orchestrator) runSingle(ctx context.Context, name string, res *Result) {
	if o.Materializer == nil {
		res.Status = StatusFailed
		res.Error = "materializer not configured"
		return
	}
	var (
		batch service.BatchResult
		err   error
	)
	switch name {
	case JobSuperadminAnalysis:
		batch, err = o.Materializer.MaterializeOwners(ctx, models.RoleSuperadmin)
	case JobAdminAnalysis:
		batch, err = o.Materializer.MaterializeOwners(ctx, models.RoleAdmin)
	case JobMasterAnalysis:
		batch, err = o.Materializer.MaterializeOwners(ctx, models.RoleMaster)
	case JobUserSnapshots:
		if o.Switches != nil && !o.Switches.IsEnabled(ctx, service.FeatureUserSnapshots, true) {
			res.OK = true
			res.Status = StatusSucceeded
			res.Skipped = true
			return
		}
		batch, err = o.Materializer.MaterializeUserSnapshots(ctx)
	default:
		err = fmt.Errorf("%w %q", ErrUnknownJob, name)
	}
	if err != nil {
		res.Status = StatusFailed
		res.Error = err.Error()
		return
	}
	res.Batches = []service.BatchResult{batch}
	res.OK = true
	res.Status = StatusSucceeded
	if batch.Partial {
		res.Status = StatusPartial
	}
}

// runCombined runs each part under its own lock so a part that is already
// running elsewhere is skipped and reported, not run twice.
func (o *Orchestrator) runCombined(ctx context.Context, runID, trigger string, res *Result) {
	failed := 0
	partial := false
	for _, name := range combinedSequence {
		release, ok := o.Registry.TryStart(name, runID, o.now())
		if !ok {
			now := o.now()
			res.SubResults = append(res.SubResults, Result{
				Job:        name,
				RunID:      runID,
				Trigger:    trigger,
				Status:     StatusFailed,
				StartedAt:  now,
				FinishedAt: now,
				Error:      ErrAlreadyRunning.Error(),
			})
			failed++
			continue
		}
		sub := o.execute(ctx, name, runID, trigger)
		release(sub)
		res.SubResults = append(res.SubResults, sub)
		res.Batches = append(res.Batches, sub.Batches...)
		switch sub.Status {
		case StatusFailed:
			failed++
		case StatusPartial:
			partial = true
		}
	}
	switch {
	case failed == len(combinedSequence):
		res.Status = StatusFailed
		res.Error = "every part of the combined job failed"
	case failed > 0 || partial:
		res.OK = true
		res.Status = StatusPartial
	default:
		res.OK = true
		res.Status = StatusSucceeded
	}
}
