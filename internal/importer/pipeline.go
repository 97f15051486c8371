package importer

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/shopspring/decimal"

	"github.com/JonMunkholm/salesimport/internal/logging"
	"github.com/JonMunkholm/salesimport/internal/sheet"
)

// Options tune a run. The zero value is usable.
type Options struct {
	// DefaultTaxRate applies to sales without a parseable TaxRate.
	// Nil means the package DefaultTaxRate (0.19); a configured zero is kept.
	DefaultTaxRate *decimal.Decimal

	// Now returns the time used for defaulted sale dates. Defaults to
	// time.Now.
	Now func() time.Time

	// DescribeError turns a store failure into the message recorded for
	// the row. Defaults to err.Error().
	DescribeError func(error) string
}

// Importer runs the import pipeline against one store.
type Importer struct {
	store Store
	opts  Options
}

// New creates an Importer.
func New(store Store, opts Options) *Importer {
	if opts.DefaultTaxRate == nil {
		rate := DefaultTaxRate
		opts.DefaultTaxRate = &rate
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.DescribeError == nil {
		opts.DescribeError = func(err error) string { return err.Error() }
	}
	return &Importer{store: store, opts: opts}
}

// Import reads the spreadsheet from r and runs it. A sheet that cannot be
// read yields a result holding a single System error.
func (im *Importer) Import(ctx context.Context, r io.Reader) ImportResult {
	sh, err := sheet.Read(r)
	if err != nil {
		logging.FromContext(ctx).Warn("spreadsheet unreadable", "error", err)
		agg := NewAggregator(0)
		agg.Fail(SystemError(fmt.Sprintf("could not read spreadsheet: %v", err)))
		return agg.Finalize()
	}
	return im.Run(ctx, sh.Rows)
}

// Run classifies rows once, then runs the phases in dependency order. The
// store is flushed at the end of every phase that had rows.
//
// Cancellation is honoured between rows: the rows already written in the
// current phase are flushed and the run stops with a System error.
func (im *Importer) Run(ctx context.Context, rows []sheet.Row) ImportResult {
	logger := logging.FromContext(ctx)
	start := time.Now()

	agg := NewAggregator(len(rows))
	batches := make(map[EntityType][]sheet.Row, len(phases))
	for _, cr := range ClassifyAll(rows) {
		if cr.Entity == EntityUnknown {
			agg.Fail(detectionError(cr.Number))
			continue
		}
		batches[cr.Entity] = append(batches[cr.Entity], cr.Row)
	}

	env := &runEnv{
		resolver:       resolver{store: im.store, rc: NewResolutionContext()},
		defaultTaxRate: *im.opts.DefaultTaxRate,
		now:            im.opts.Now(),
		describe:       im.opts.DescribeError,
	}

	for _, p := range phases {
		batch := batches[p.Entity()]
		if len(batch) == 0 {
			continue
		}
		if !im.runPhase(ctx, env, agg, p, batch) {
			break
		}
	}

	res := agg.Finalize()
	logger.Info("import finished",
		"rows", res.TotalRows,
		"inserted", res.Inserted,
		"updated", res.Updated,
		"errors", res.ErrorCount,
		"duration", time.Since(start),
	)
	return res
}

// runPhase processes one batch and flushes it. It returns false when the
// run must stop.
func (im *Importer) runPhase(ctx context.Context, env *runEnv, agg *Aggregator, p phase, batch []sheet.Row) bool {
	logger := logging.WithFields(ctx, "phase", p.Entity())

	cancelled := false
	for _, row := range batch {
		if ctx.Err() != nil {
			cancelled = true
			break
		}
		out := p.Process(ctx, env, row)
		if out.Action == ActionFailed {
			logger.Debug("row rejected", "row", row.Number, "errors", len(out.Errors))
		}
		agg.Record(out)
	}

	flushCtx := ctx
	if cancelled {
		flushCtx = context.WithoutCancel(ctx)
	}
	if err := im.store.Flush(flushCtx); err != nil {
		logger.Error("phase flush failed", "error", err)
		agg.Withdraw(p.Entity())
		agg.Fail(SystemError(fmt.Sprintf("saving %s rows failed: %s", p.Entity(), env.describe(err))))
		return false
	}

	if cancelled {
		logger.Warn("import cancelled", "error", ctx.Err())
		agg.Fail(SystemError(fmt.Sprintf("import cancelled: %v", context.Cause(ctx))))
		return false
	}

	logger.Debug("phase completed", "rows", len(batch))
	return true
}
