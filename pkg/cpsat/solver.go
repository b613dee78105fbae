package cpsat

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/crillab/gophersat/solver"
)

// Status is the outcome of a solve.
type Status int

const (
	StatusUnknown Status = iota
	StatusModelInvalid
	StatusInfeasible
	StatusOptimal
)

func (s Status) String() string {
	switch s {
	case StatusModelInvalid:
		return "MODEL_INVALID"
	case StatusInfeasible:
		return "INFEASIBLE"
	case StatusOptimal:
		return "OPTIMAL"
	default:
		return "UNKNOWN"
	}
}

// HasSolution reports whether the status carries an assignment.
func (s Status) HasSolution() bool {
	return s == StatusOptimal
}

func (s Status) decided() bool {
	return s == StatusOptimal || s == StatusInfeasible
}

// Parameters tune a solve.
type Parameters struct {
	// MaxTime bounds the wall-clock time of the search.
	MaxTime time.Duration
	// Workers is the number of diversified searches run in parallel.
	Workers int
	// Seed drives the variable ordering of the diversified workers.
	Seed int64
}

// DefaultParameters bounds a solve to 30 seconds on one worker.
func DefaultParameters() Parameters {
	return Parameters{MaxTime: 30 * time.Second, Workers: 1, Seed: 1}
}

// Response carries the solve outcome and, on success, the assignment.
type Response struct {
	Status    Status
	WallTime  time.Duration
	Branches  int64
	Conflicts int64
	Worker    int
	// Reason explains an infeasibility detected before search.
	Reason string

	values []bool
}

// Value returns the value of v in the solution. It is false when no solution exists.
func (r *Response) Value(v BoolVar) bool {
	if r == nil || int(v) < 0 || int(v) >= len(r.values) {
		return false
	}
	return r.values[v]
}

// Solver runs searches over a Model.
type Solver struct {
	params Parameters
}

// NewSolver builds a solver, filling zero parameters with defaults.
func NewSolver(params Parameters) *Solver {
	defaults := DefaultParameters()
	if params.MaxTime <= 0 {
		params.MaxTime = defaults.MaxTime
	}
	if params.Workers <= 0 {
		params.Workers = defaults.Workers
	}
	if params.Seed == 0 {
		params.Seed = defaults.Seed
	}
	return &Solver{params: params}
}

// Parameters returns the effective parameters.
func (s *Solver) Parameters() Parameters {
	return s.params
}

// Solve searches for any assignment satisfying every constraint of m. The model
// has no objective, so a found assignment is reported as StatusOptimal.
//
// A search still running when the time limit or ctx expires is abandoned: its
// result is discarded once it returns.
func (s *Solver) Solve(ctx context.Context, m *Model) (*Response, error) {
	start := time.Now()
	if err := m.Validate(); err != nil {
		return &Response{Status: StatusModelInvalid, Reason: err.Error()}, err
	}
	if ctx.Err() != nil {
		return &Response{Status: StatusUnknown, WallTime: time.Since(start)}, nil
	}

	identity := make([]int, m.NumVars())
	for i := range identity {
		identity[i] = i
	}
	first, reason := encode(m, identity)
	if reason == "" {
		reason = overload(m)
	}
	if reason != "" {
		return &Response{Status: StatusInfeasible, Reason: reason, WallTime: time.Since(start)}, nil
	}
	if len(first) == 0 {
		return &Response{Status: StatusOptimal, values: fixedValues(m), WallTime: time.Since(start)}, nil
	}

	ctx, cancel := context.WithTimeout(ctx, s.params.MaxTime)
	defer cancel()

	results := make(chan *Response, s.params.Workers)
	for i := 0; i < s.params.Workers; i++ {
		worker := i
		constrs, perm := first, identity
		if worker > 0 {
			perm = rand.New(rand.NewSource(s.params.Seed + int64(worker))).Perm(m.NumVars())
			constrs, _ = encode(m, perm)
		}
		go func() {
			results <- run(constrs, perm, worker)
		}()
	}

	var (
		winner *Response
		total  Response
	)
	for pending := s.params.Workers; pending > 0 && winner == nil; pending-- {
		select {
		case resp := <-results:
			total.Branches += resp.Branches
			total.Conflicts += resp.Conflicts
			if resp.Status.decided() {
				winner = resp
			}
		case <-ctx.Done():
			pending = 0
		}
	}

	if winner == nil {
		winner = &Response{Status: StatusUnknown}
	}
	winner.Branches = total.Branches
	winner.Conflicts = total.Conflicts
	winner.WallTime = time.Since(start)
	return winner, nil
}

// run solves one encoding. perm maps model variables to solver variables.
func run(constrs []solver.PBConstr, perm []int, worker int) *Response {
	s := solver.New(solver.ParsePBConstrs(constrs))
	status := s.Solve()
	resp := &Response{
		Worker:    worker,
		Branches:  int64(s.Stats.NbDecisions),
		Conflicts: int64(s.Stats.NbConflicts),
	}
	switch status {
	case solver.Sat:
		resp.Status = StatusOptimal
		model := s.Model()
		resp.values = make([]bool, len(perm))
		for v, sv := range perm {
			if sv < len(model) {
				resp.values[v] = model[sv]
			}
		}
	case solver.Unsat:
		resp.Status = StatusInfeasible
	default:
		resp.Status = StatusUnknown
	}
	return resp
}

// encode translates m into pseudo-boolean constraints with variable v numbered
// perm[v]+1. Constraints that cannot bind are dropped. A non-empty reason
// reports an infeasibility visible without search.
func encode(m *Model, perm []int) ([]solver.PBConstr, string) {
	lit := func(v BoolVar) int { return perm[v] + 1 }
	var out []solver.PBConstr

	for i, f := range m.fixed {
		switch f {
		case valTrue:
			out = append(out, solver.PropClause(lit(BoolVar(i))))
		case valFalse:
			out = append(out, solver.PropClause(-lit(BoolVar(i))))
		case conflicting:
			return nil, fmt.Sprintf("variable %s fixed to both values", m.names[i])
		}
	}

	for _, c := range m.constraints {
		if c.Bound > len(c.Vars) {
			if c.Sense == SenseAtMost {
				continue
			}
			return nil, fmt.Sprintf("%s: needs %d of %d variables", c.Name, c.Bound, len(c.Vars))
		}
		lits := make([]int, len(c.Vars))
		for i, v := range c.Vars {
			lits[i] = lit(v)
		}
		switch {
		case c.Bound == 0:
			for _, l := range lits {
				out = append(out, solver.PropClause(-l))
			}
		case c.Sense == SenseAtMost && c.Bound == len(lits):
		case c.Sense == SenseAtMost:
			out = append(out, solver.AtMost(lits, c.Bound))
		case c.Bound == len(lits):
			for _, l := range lits {
				out = append(out, solver.PropClause(l))
			}
		default:
			ones := make([]int, len(lits))
			for i := range ones {
				ones[i] = 1
			}
			out = append(out, solver.Eq(lits, ones, c.Bound)...)
		}
	}
	return out, ""
}

func fixedValues(m *Model) []bool {
	values := make([]bool, m.NumVars())
	for i, f := range m.fixed {
		values[i] = f == valTrue
	}
	return values
}
