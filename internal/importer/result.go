package importer

// ImportResult is the outcome of one run.
type ImportResult struct {
	TotalRows  int            `json:"totalRows"`
	Inserted   int            `json:"inserted"`
	Updated    int            `json:"updated"`
	ErrorCount int            `json:"errors"`
	Errors     []ImportError  `json:"errorList"`
	Phases     []PhaseSummary `json:"phases,omitempty"`
}

// PhaseSummary breaks the counters down by record type.
type PhaseSummary struct {
	Entity   EntityType `json:"entity"`
	Rows     int        `json:"rows"`
	Inserted int        `json:"inserted"`
	Updated  int        `json:"updated"`
	Failed   int        `json:"failed"`
}

// HasSystemError reports whether the run ended early.
func (r ImportResult) HasSystemError() bool {
	for _, e := range r.Errors {
		if e.Kind == KindSystem {
			return true
		}
	}
	return false
}

// Action is what happened to a single row.
type Action int

const (
	ActionFailed Action = iota
	ActionInserted
	ActionUpdated
)

func (a Action) String() string {
	switch a {
	case ActionInserted:
		return "inserted"
	case ActionUpdated:
		return "updated"
	default:
		return "failed"
	}
}

// Outcome is the per-row result handed to the Aggregator.
type Outcome struct {
	Entity    EntityType
	RowNumber int
	Action    Action
	ID        int64
	Errors    []ImportError
}

// Aggregator accumulates outcomes into an ImportResult. Errors keep the
// order they were recorded in.
type Aggregator struct {
	result ImportResult
	phases map[EntityType]int
}

// NewAggregator starts a result for a sheet with totalRows data rows.
func NewAggregator(totalRows int) *Aggregator {
	return &Aggregator{
		result: ImportResult{TotalRows: totalRows, Errors: []ImportError{}},
		phases: make(map[EntityType]int),
	}
}

func (a *Aggregator) phase(entity EntityType) *PhaseSummary {
	i, ok := a.phases[entity]
	if !ok {
		i = len(a.result.Phases)
		a.phases[entity] = i
		a.result.Phases = append(a.result.Phases, PhaseSummary{Entity: entity})
	}
	return &a.result.Phases[i]
}

// Record folds one row outcome into the totals.
func (a *Aggregator) Record(o Outcome) {
	ps := a.phase(o.Entity)
	ps.Rows++
	switch o.Action {
	case ActionInserted:
		a.result.Inserted++
		ps.Inserted++
	case ActionUpdated:
		a.result.Updated++
		ps.Updated++
	default:
		ps.Failed++
	}
	a.result.Errors = append(a.result.Errors, o.Errors...)
}

// Fail records an error that is not part of a row outcome, such as a
// detection or system error.
func (a *Aggregator) Fail(err ImportError) {
	a.result.Errors = append(a.result.Errors, err)
}

// Withdraw removes the inserted and updated counts of a phase whose writes
// were discarded.
func (a *Aggregator) Withdraw(entity EntityType) {
	i, ok := a.phases[entity]
	if !ok {
		return
	}
	ps := &a.result.Phases[i]
	a.result.Inserted -= ps.Inserted
	a.result.Updated -= ps.Updated
	ps.Failed += ps.Inserted + ps.Updated
	ps.Inserted, ps.Updated = 0, 0
}

// Finalize returns the accumulated result.
func (a *Aggregator) Finalize() ImportResult {
	res := a.result
	res.ErrorCount = len(res.Errors)
	res.Errors = append(make([]ImportError, 0, len(res.Errors)), res.Errors...)
	res.Phases = append([]PhaseSummary(nil), res.Phases...)
	return res
}
