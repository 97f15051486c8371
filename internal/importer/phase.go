package importer

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/JonMunkholm/salesimport/internal/schema"
	"github.com/JonMunkholm/salesimport/internal/sheet"
)

// runEnv is the state shared by all phases of one run.
type runEnv struct {
	resolver
	defaultTaxRate decimal.Decimal
	now            time.Time
	describe       func(error) string
}

// phase processes the rows of one record type.
type phase interface {
	Entity() EntityType
	// Matches reports whether the row carries this record type's
	// signature columns.
	Matches(row sheet.Row) bool
	// Validate runs the field checks that need no store access.
	Validate(row sheet.Row) []ImportError
	Process(ctx context.Context, env *runEnv, row sheet.Row) Outcome
}

// entityPhase drives the validate, resolve, match, write and remember steps
// for one record type. The per-type behaviour lives in the function fields;
// the sequence is the same for every type.
type entityPhase[T any] struct {
	entity  EntityType
	matches func(row sheet.Row) bool

	// parse validates and converts the row's own fields into a draft.
	parse func(env *runEnv, row sheet.Row) (*T, []ImportError)
	// link fills the draft's foreign keys. Nil for types without any.
	link func(ctx context.Context, env *runEnv, row sheet.Row, draft *T) ([]ImportError, error)

	find   func(ctx context.Context, st Store, draft *T) (*T, error)
	merge  func(existing, draft *T, row sheet.Row)
	insert func(ctx context.Context, st Store, rec *T) error
	update func(ctx context.Context, st Store, rec *T) error

	remember func(rc *ResolutionContext, rec *T)
	id       func(rec *T) int64
}

func (p *entityPhase[T]) Entity() EntityType { return p.entity }

func (p *entityPhase[T]) Matches(row sheet.Row) bool { return p.matches(row) }

func (p *entityPhase[T]) Validate(row sheet.Row) []ImportError {
	env := &runEnv{defaultTaxRate: DefaultTaxRate, now: time.Now()}
	_, errs := p.parse(env, row)
	return errs
}

func (p *entityPhase[T]) Process(ctx context.Context, env *runEnv, row sheet.Row) Outcome {
	out := Outcome{Entity: p.entity, RowNumber: row.Number, Action: ActionFailed}
	fail := func(err error) Outcome {
		out.Errors = append(out.Errors, generalError(row.Number, env.describe(err)))
		return out
	}

	draft, errs := p.parse(env, row)
	if p.link != nil {
		refErrs, err := p.link(ctx, env, row, draft)
		if err != nil {
			out.Errors = errs
			return fail(err)
		}
		errs = append(errs, refErrs...)
	}
	if len(errs) > 0 {
		out.Errors = errs
		return out
	}

	existing, err := p.find(ctx, env.store, draft)
	switch {
	case err == nil:
	case errors.Is(err, schema.ErrNotFound):
		existing = nil
	default:
		return fail(err)
	}

	rec := draft
	if existing != nil {
		p.merge(existing, draft, row)
		if err := p.update(ctx, env.store, existing); err != nil {
			return fail(err)
		}
		rec = existing
		out.Action = ActionUpdated
	} else {
		if err := p.insert(ctx, env.store, draft); err != nil {
			return fail(err)
		}
		out.Action = ActionInserted
	}

	p.remember(env.rc, rec)
	out.ID = p.id(rec)
	return out
}
