package core

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/JonMunkholm/salesimport/internal/importer"
	"github.com/JonMunkholm/salesimport/internal/logging"
)

// DefaultImportTimeout is the maximum duration of one run.
const DefaultImportTimeout = 10 * time.Minute

// ErrFileTooLarge is returned when an upload exceeds Options.MaxFileSize.
var ErrFileTooLarge = errors.New("file too large")

// Session is a store connection scoped to one run.
type Session interface {
	importer.Store
	// Close releases the session. Writes not yet flushed are discarded.
	Close(ctx context.Context) error
}

// Backend opens store sessions and reports store health.
type Backend interface {
	NewSession(ctx context.Context) (Session, error)
	Ping(ctx context.Context) error
}

// Options configure a Service. Zero values fall back to defaults; a nil
// DefaultTaxRate means the importer's default.
type Options struct {
	MaxFileSize    int64
	Timeout        time.Duration
	DefaultTaxRate *decimal.Decimal
}

// Service runs imports and keeps their history.
type Service struct {
	backend Backend
	history History
	limiter *ImportLimiter
	opts    Options
	now     func() time.Time
}

// NewService creates a Service.
func NewService(backend Backend, history History, limiter *ImportLimiter, opts Options) *Service {
	if limiter == nil {
		limiter = NewImportLimiter(DefaultMaxConcurrentImports, DefaultMaxWaitTime)
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultImportTimeout
	}
	return &Service{
		backend: backend,
		history: history,
		limiter: limiter,
		opts:    opts,
		now:     time.Now,
	}
}

// Limiter exposes the admission limiter, for shutdown draining and status.
func (s *Service) Limiter() *ImportLimiter {
	return s.limiter
}

// Ping checks that the store is reachable.
func (s *Service) Ping(ctx context.Context) error {
	return s.backend.Ping(ctx)
}

// Import runs the spreadsheet read from r as a new tracked run.
//
// An error is returned only when the run could not be admitted (limiter
// busy or caller gone). Every admitted run produces a Run, even when the
// store is unreachable or the sheet unreadable; those failures are reported
// as a System error in the run's result.
func (s *Service) Import(ctx context.Context, fileName string, r io.Reader) (*Run, error) {
	if err := s.limiter.Acquire(ctx); err != nil {
		return nil, err
	}
	defer s.limiter.Release()

	client := ClientFromContext(ctx)
	run := &Run{
		ID:        uuid.New(),
		FileName:  fileName,
		StartedAt: s.now(),
		IPAddress: client.IPAddress,
		UserAgent: client.UserAgent,
	}

	ctx = logging.WithRunID(ctx, run.ID.String())
	ctx, cancel := context.WithTimeout(ctx, s.opts.Timeout)
	defer cancel()

	logger := logging.FromContext(ctx)
	logger.Info("import started", "file", fileName)

	run.Result = s.execute(ctx, s.limitReader(r))
	run.FinishedAt = s.now()

	if s.history != nil {
		// The run happened even if the caller went away; record it regardless.
		if err := s.history.SaveRun(context.WithoutCancel(ctx), run); err != nil {
			logger.Error("failed to save import run", "error", err)
		}
	}

	return run, nil
}

func (s *Service) execute(ctx context.Context, r io.Reader) importer.ImportResult {
	logger := logging.FromContext(ctx)

	session, err := s.backend.NewSession(ctx)
	if err != nil {
		logger.Error("failed to open store session", "error", err)
		return systemResult(err)
	}
	defer func() {
		if err := session.Close(context.WithoutCancel(ctx)); err != nil {
			logger.Warn("failed to close store session", "error", err)
		}
	}()

	im := importer.New(session, importer.Options{
		DefaultTaxRate: s.opts.DefaultTaxRate,
		DescribeError:  FormatUserError,
	})
	return im.Import(ctx, r)
}

// Runs lists recent runs, newest first.
func (s *Service) Runs(ctx context.Context, limit int) ([]Run, error) {
	if s.history == nil {
		return []Run{}, nil
	}
	return s.history.ListRuns(ctx, ClampHistoryLimit(limit))
}

// Run fetches one run by ID.
func (s *Service) Run(ctx context.Context, id uuid.UUID) (*Run, error) {
	if s.history == nil {
		return nil, ErrRunNotFound
	}
	return s.history.GetRun(ctx, id)
}

func (s *Service) limitReader(r io.Reader) io.Reader {
	if s.opts.MaxFileSize <= 0 {
		return r
	}
	return &maxSizeReader{r: r, remaining: s.opts.MaxFileSize}
}

// maxSizeReader fails with ErrFileTooLarge once more than the allowed
// number of bytes has been read.
type maxSizeReader struct {
	r         io.Reader
	remaining int64
}

func (m *maxSizeReader) Read(p []byte) (int, error) {
	if m.remaining < 0 {
		return 0, ErrFileTooLarge
	}
	if int64(len(p)) > m.remaining+1 {
		p = p[:m.remaining+1]
	}
	n, err := m.r.Read(p)
	m.remaining -= int64(n)
	if m.remaining < 0 {
		return 0, fmt.Errorf("%w: limit exceeded", ErrFileTooLarge)
	}
	return n, err
}

func systemResult(err error) importer.ImportResult {
	agg := importer.NewAggregator(0)
	agg.Fail(importer.SystemError(FormatUserError(err)))
	return agg.Finalize()
}
