package batch

import (
	"context"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/zoomtier/internal/config"
	"github.com/sells-group/zoomtier/internal/decimate"
	"github.com/sells-group/zoomtier/internal/metrics"
	"github.com/sells-group/zoomtier/internal/model"
	"github.com/sells-group/zoomtier/internal/pointio"
	"github.com/sells-group/zoomtier/internal/resilience"
	"github.com/sells-group/zoomtier/internal/store"
)

// Summary reports the outcome of one job.
type Summary struct {
	Layer    string        `json:"layer"`
	RunID    uuid.UUID     `json:"run_id"`
	Input    string        `json:"input"`
	Output   string        `json:"output,omitempty"`
	Points   int           `json:"points"`
	Counts   map[int]int   `json:"counts"`
	Stored   bool          `json:"stored"`
	Duration time.Duration `json:"duration"`
	Err      error         `json:"-"`
}

// Runner executes jobs against the configured defaults. A nil store skips
// persistence.
type Runner struct {
	cfg         *config.Config
	store       store.Store
	concurrency int
	retry       resilience.RetryConfig
}

// NewRunner creates a Runner. Concurrency comes from cfg.Batch and may be
// overridden with SetConcurrency.
func NewRunner(cfg *config.Config, st store.Store) *Runner {
	retry := resilience.DefaultRetryConfig()
	retry.OnRetry = resilience.RetryLogger("save layer")
	return &Runner{cfg: cfg, store: st, concurrency: cfg.Batch.Concurrency, retry: retry}
}

// SetConcurrency overrides the number of jobs run at once. Values below 1
// are treated as 1.
func (r *Runner) SetConcurrency(n int) {
	r.concurrency = max(n, 1)
}

// Run executes every job of m, at most concurrency at a time. A failing job
// does not stop the others; summaries are returned in manifest order and
// the error reports how many jobs failed.
func (r *Runner) Run(ctx context.Context, m *Manifest) ([]Summary, error) {
	summaries := make([]Summary, len(m.Layers))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(r.concurrency, 1))

	for i, job := range m.Layers {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				summaries[i] = Summary{Layer: job.Name, Input: job.Input, Err: err}
				return err
			}
			sum, err := r.RunJob(gctx, job)
			if err != nil {
				zap.L().Warn("batch: job failed", zap.String("layer", job.Name), zap.Error(err))
				metrics.BatchJobsTotal.WithLabelValues("failed").Inc()
				summaries[i] = Summary{Layer: job.Name, Input: job.Input, Err: err}
				return nil
			}
			metrics.BatchJobsTotal.WithLabelValues("ok").Inc()
			summaries[i] = *sum
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return summaries, eris.Wrap(err, "batch: run")
	}

	failed := 0
	for _, s := range summaries {
		if s.Err != nil {
			failed++
		}
	}
	if failed > 0 {
		return summaries, eris.Errorf("batch: %d of %d jobs failed", failed, len(summaries))
	}
	return summaries, nil
}

// RunJob reads, labels, writes and stores a single job.
func (r *Runner) RunJob(ctx context.Context, job Job) (*Summary, error) {
	start := time.Now()
	job = r.withConfigDefaults(job)
	log := zap.L().With(zap.String("layer", job.Name), zap.String("input", job.Input))

	carry, err := decimate.ParseCarryPolicy(job.Carry)
	if err != nil {
		return nil, eris.Wrapf(err, "batch: layer %s", job.Name)
	}
	opts, err := r.cfg.DecimateOptions()
	if err != nil {
		return nil, err
	}
	opts = append(opts, decimate.WithCarry(carry), decimate.WithLogger(log))

	assigner, err := decimate.NewAssigner(job.Tiers, opts...)
	if err != nil {
		return nil, eris.Wrapf(err, "batch: layer %s", job.Name)
	}

	cols := pointio.Columns{X: job.XColumn, Y: job.YColumn}
	table, err := pointio.Read(ctx, job.Input, pointio.Options{
		Columns:   cols,
		Delimiter: r.cfg.Input.DelimiterRune(),
		Encoding:  r.cfg.Input.Encoding,
		Sheet:     r.cfg.Input.Sheet,
	})
	if err != nil {
		return nil, eris.Wrapf(err, "batch: layer %s: read", job.Name)
	}

	points, err := table.Points(cols)
	if err != nil {
		return nil, eris.Wrapf(err, "batch: layer %s", job.Name)
	}
	ps, err := decimate.Load(points)
	if err != nil {
		return nil, eris.Wrapf(err, "batch: layer %s", job.Name)
	}

	assignStart := time.Now()
	res := assigner.Assign(ps)
	metrics.ObserveResult(res, time.Since(assignStart))

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	sum := &Summary{
		Layer:  job.Name,
		RunID:  uuid.New(),
		Input:  job.Input,
		Output: job.Output,
		Points: len(res.Labels),
		Counts: res.Counts(),
	}

	if job.Output != "" {
		labeled, err := table.WithLabels(job.Column, res.Labels)
		if err != nil {
			return nil, eris.Wrapf(err, "batch: layer %s", job.Name)
		}
		if err := pointio.Write(job.Output, labeled, pointio.Options{
			Columns:     cols,
			LabelColumn: job.Column,
		}); err != nil {
			return nil, eris.Wrapf(err, "batch: layer %s: write", job.Name)
		}
	}

	if r.store != nil {
		layer := model.NewLayer(job.Name, job.Input, carry.String(), job.Tiers, res)
		layer.RunID = sum.RunID
		lps, err := table.LayerPoints(cols, res.Labels)
		if err != nil {
			return nil, eris.Wrapf(err, "batch: layer %s", job.Name)
		}
		err = resilience.Do(ctx, r.retry, func(ctx context.Context) error {
			return r.store.SaveLayer(ctx, layer, lps)
		})
		if err != nil {
			return nil, eris.Wrapf(err, "batch: layer %s: save", job.Name)
		}
		sum.Stored = true
	}

	sum.Duration = time.Since(start)
	log.Info("batch: job complete",
		zap.String("run_id", sum.RunID.String()),
		zap.Int("points", sum.Points),
		zap.Int("unassigned", sum.Counts[0]),
		zap.Bool("stored", sum.Stored),
		zap.Duration("duration", sum.Duration),
	)
	return sum, nil
}

// withConfigDefaults fills fields the manifest left empty from cfg.
func (r *Runner) withConfigDefaults(j Job) Job {
	if j.XColumn == "" {
		j.XColumn = r.cfg.Input.XColumn
	}
	if j.YColumn == "" {
		j.YColumn = r.cfg.Input.YColumn
	}
	if j.Column == "" {
		j.Column = r.cfg.Output.Column
	}
	if j.Carry == "" {
		j.Carry = r.cfg.Decimate.Carry
	}
	if j.Tiers == nil {
		j.Tiers = slices.Clone(r.cfg.Tiers)
	}
	return j
}
