package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/JonMunkholm/salesimport/internal/core"
)

var _ core.History = (*History)(nil)

// History stores import runs in the import_runs table. The full result is
// kept as JSONB; the counts are duplicated into columns for querying.
type History struct {
	db DBTX
}

// History returns the run history backed by this database.
func (db *DB) History() *History {
	return &History{db: db.pool}
}

func (h *History) SaveRun(ctx context.Context, run *core.Run) error {
	result, err := json.Marshal(run.Result)
	if err != nil {
		return fmt.Errorf("encode run result: %w", err)
	}
	_, err = h.db.Exec(ctx, insertRun,
		run.ID, run.FileName, run.StartedAt, run.FinishedAt, run.IPAddress, run.UserAgent,
		run.Result.TotalRows, run.Result.Inserted, run.Result.Updated, run.Result.ErrorCount,
		result,
	)
	if err != nil {
		return fmt.Errorf("save run %s: %w", run.ID, err)
	}
	return nil
}

func (h *History) ListRuns(ctx context.Context, limit int) ([]core.Run, error) {
	rows, err := h.db.Query(ctx, selectRun+` ORDER BY started_at DESC LIMIT $1`, core.ClampHistoryLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	runs := []core.Run{}
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	return runs, nil
}

func (h *History) GetRun(ctx context.Context, id uuid.UUID) (*core.Run, error) {
	run, err := scanRun(h.db.QueryRow(ctx, selectRun+` WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, core.ErrRunNotFound
	}
	return run, err
}

func scanRun(row pgx.Row) (*core.Run, error) {
	var (
		run    core.Run
		result []byte
	)
	if err := row.Scan(&run.ID, &run.FileName, &run.StartedAt, &run.FinishedAt,
		&run.IPAddress, &run.UserAgent, &result); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(result, &run.Result); err != nil {
		return nil, fmt.Errorf("decode run %s result: %w", run.ID, err)
	}
	return &run, nil
}
