package core

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/JonMunkholm/salesimport/internal/importer"
)

// ErrRunNotFound is returned by History when no run has the requested ID.
var ErrRunNotFound = errors.New("import run not found")

// DefaultHistoryLimit caps ListRuns when the caller passes no limit.
const DefaultHistoryLimit = 20

// MaxHistoryLimit caps ListRuns regardless of what the caller asks for.
const MaxHistoryLimit = 200

// Run is one completed pass of the pipeline over an uploaded file.
type Run struct {
	ID         uuid.UUID             `json:"runId"`
	FileName   string                `json:"fileName"`
	StartedAt  time.Time             `json:"startedAt"`
	FinishedAt time.Time             `json:"finishedAt"`
	IPAddress  string                `json:"ipAddress,omitempty"`
	UserAgent  string                `json:"userAgent,omitempty"`
	Result     importer.ImportResult `json:"result"`
}

// Duration is how long the run took.
func (r *Run) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// History stores completed runs.
type History interface {
	SaveRun(ctx context.Context, run *Run) error
	// ListRuns returns up to limit runs, newest first.
	ListRuns(ctx context.Context, limit int) ([]Run, error)
	// GetRun returns ErrRunNotFound for an unknown ID.
	GetRun(ctx context.Context, id uuid.UUID) (*Run, error)
}

// ClampHistoryLimit applies the default and maximum to a requested limit.
func ClampHistoryLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultHistoryLimit
	case limit > MaxHistoryLimit:
		return MaxHistoryLimit
	default:
		return limit
	}
}

// errorsCSVHeader matches the field names of the JSON error list.
var errorsCSVHeader = []string{"rowNumber", "field", "message"}

// WriteErrorsCSV writes a run's error list so users can fix the failing
// rows in a spreadsheet and re-submit just those.
func WriteErrorsCSV(w io.Writer, errs []importer.ImportError) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(errorsCSVHeader); err != nil {
		return fmt.Errorf("write errors header: %w", err)
	}
	for _, e := range errs {
		if err := cw.Write([]string{strconv.Itoa(e.RowNumber), e.Field, e.Message}); err != nil {
			return fmt.Errorf("write error row %d: %w", e.RowNumber, err)
		}
	}
	cw.Flush()
	return cw.Error()
}
