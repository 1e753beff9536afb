package tasks

import (
	"context"
	"errors"
	"time"

	"github.com/charmbracelet/log"

	"github.com/desertthunder/spotstats/internal/models"
	"github.com/desertthunder/spotstats/internal/shared"
)

// Loader persists a transformed batch.
type Loader interface {
	Load(ctx context.Context, batch *models.TransformedBatch) (*models.LoadResult, error)
}

// RunRecorder stores the audit trail of pipeline runs.
type RunRecorder interface {
	Start(ctx context.Context, run *models.Run) error
	Finish(ctx context.Context, run *models.Run) error
}

// Pipeline runs extract, transform and load in sequence.
type Pipeline struct {
	extractor   *Extractor
	transformer *Transformer
	loader      Loader
	runs        RunRecorder
	logger      *log.Logger
	now         func() time.Time
	report      Reporter
}

// NewPipeline wires the three stages. runs may be nil to skip run bookkeeping.
func NewPipeline(e *Extractor, t *Transformer, l Loader, runs RunRecorder, logger *log.Logger) *Pipeline {
	if logger == nil {
		logger = shared.NopLogger()
	}
	return &Pipeline{extractor: e, transformer: t, loader: l, runs: runs, logger: logger, now: time.Now}
}

// WithReporter sets the reporter on the pipeline and its stages, and returns p.
func (p *Pipeline) WithReporter(r Reporter) *Pipeline {
	p.report = r
	p.extractor.WithReporter(r)
	p.transformer.WithReporter(r)
	return p
}

// Run executes one pipeline run. window labels ungrouped snapshot rows.
//
// The returned run is always non-nil once bookkeeping has started, and carries
// the per-group counts that were committed even when a later group failed.
func (p *Pipeline) Run(ctx context.Context, window string) (*models.Run, error) {
	run := &models.Run{
		ID:        shared.GenerateID(),
		Status:    models.RunRunning,
		TimeRange: window,
		StartedAt: p.now().UTC().Truncate(time.Second),
	}
	logger := shared.WithLogger(p.logger, "run", run.ID)

	if p.runs != nil {
		if err := p.runs.Start(ctx, run); err != nil {
			return nil, err
		}
	}

	err := p.execute(ctx, logger, run, window)
	return run, p.finish(ctx, logger, run, err)
}

func (p *Pipeline) execute(ctx context.Context, logger *log.Logger, run *models.Run, window string) error {
	logger.Info("extracting")
	raw, err := p.extractor.ExtractAll(ctx)
	if err != nil {
		return err
	}

	logger.Info("transforming", "window", window)
	batch, err := p.transformer.Transform(raw, window)
	if err != nil {
		return err
	}

	logger.Info("loading")
	res, err := p.loader.Load(ctx, batch)
	if res != nil {
		run.Result = *res
		p.report.send(loadedUpdate(res))
	}
	return err
}

func (p *Pipeline) finish(ctx context.Context, logger *log.Logger, run *models.Run, runErr error) error {
	finished := p.now().UTC().Truncate(time.Second)
	run.FinishedAt = &finished
	run.Status = models.RunSucceeded
	if runErr != nil {
		run.Status = models.RunFailed
		msg := runErr.Error()
		run.Error = &msg
		logger.Error("run failed", "err", runErr, "committed", run.Result.Committed)
	} else {
		logger.Info("run succeeded", "rows", run.Result.Total(), "elapsed", run.Duration())
	}

	if p.runs == nil {
		return runErr
	}

	// The run is recorded even when ctx is already cancelled.
	recordCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if err := p.runs.Finish(recordCtx, run); err != nil {
		logger.Warn("failed to record run", "err", err)
		return errors.Join(runErr, err)
	}
	return runErr
}
