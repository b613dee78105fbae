// Package cpsat builds boolean models of unit-coefficient linear constraints
// (sum of literals == k, sum <= k) and solves them with the gophersat
// pseudo-boolean CDCL solver.
package cpsat

import "fmt"

// BoolVar references a boolean decision variable inside a Model.
type BoolVar int32

// Sense describes how a constraint bounds its sum.
type Sense uint8

const (
	SenseExactly Sense = iota
	SenseAtMost
)

func (s Sense) String() string {
	switch s {
	case SenseExactly:
		return "=="
	case SenseAtMost:
		return "<="
	default:
		return "?"
	}
}

// Constraint is a linear constraint over boolean variables with unit coefficients.
type Constraint struct {
	Name  string
	Vars  []BoolVar
	Sense Sense
	Bound int
}

// Model collects variables and constraints. It is not safe for concurrent mutation.
type Model struct {
	names       []string
	fixed       []int8
	constraints []Constraint
	invalid     []string
}

// NewModel returns an empty model.
func NewModel() *Model {
	return &Model{}
}

// NewBoolVar registers a fresh variable.
func (m *Model) NewBoolVar(name string) BoolVar {
	m.names = append(m.names, name)
	m.fixed = append(m.fixed, unassigned)
	return BoolVar(len(m.names) - 1)
}

// Fix forces the variable to the given value. Fixing the same variable to both
// values makes the model infeasible.
func (m *Model) Fix(v BoolVar, value bool) {
	if !m.valid(v) {
		m.invalid = append(m.invalid, fmt.Sprintf("fix references unknown variable %d", v))
		return
	}
	want := boolToVal(value)
	switch m.fixed[v] {
	case unassigned:
		m.fixed[v] = want
	case want:
	default:
		m.fixed[v] = conflicting
	}
}

// AddExactly adds sum(vars) == k.
func (m *Model) AddExactly(name string, vars []BoolVar, k int) {
	m.add(Constraint{Name: name, Vars: vars, Sense: SenseExactly, Bound: k})
}

// AddAtMost adds sum(vars) <= k.
func (m *Model) AddAtMost(name string, vars []BoolVar, k int) {
	m.add(Constraint{Name: name, Vars: vars, Sense: SenseAtMost, Bound: k})
}

func (m *Model) add(c Constraint) {
	if c.Bound < 0 {
		m.invalid = append(m.invalid, fmt.Sprintf("constraint %q has negative bound %d", c.Name, c.Bound))
		return
	}
	seen := make(map[BoolVar]struct{}, len(c.Vars))
	vars := make([]BoolVar, 0, len(c.Vars))
	for _, v := range c.Vars {
		if !m.valid(v) {
			m.invalid = append(m.invalid, fmt.Sprintf("constraint %q references unknown variable %d", c.Name, v))
			return
		}
		if _, dup := seen[v]; dup {
			m.invalid = append(m.invalid, fmt.Sprintf("constraint %q repeats variable %d", c.Name, v))
			return
		}
		seen[v] = struct{}{}
		vars = append(vars, v)
	}
	c.Vars = vars
	m.constraints = append(m.constraints, c)
}

func (m *Model) valid(v BoolVar) bool {
	return v >= 0 && int(v) < len(m.names)
}

// NumVars reports the number of variables.
func (m *Model) NumVars() int { return len(m.names) }

// NumConstraints reports the number of linear constraints (fixings excluded).
func (m *Model) NumConstraints() int { return len(m.constraints) }

// NumFixed reports how many variables carry a fixing.
func (m *Model) NumFixed() int {
	count := 0
	for _, f := range m.fixed {
		if f != unassigned {
			count++
		}
	}
	return count
}

// Name returns the debug name of a variable.
func (m *Model) Name(v BoolVar) string {
	if !m.valid(v) {
		return ""
	}
	return m.names[v]
}

// Constraints exposes the constraint list for inspection.
func (m *Model) Constraints() []Constraint {
	return m.constraints
}

// Validate reports structural problems recorded while building.
func (m *Model) Validate() error {
	if len(m.invalid) == 0 {
		return nil
	}
	return fmt.Errorf("invalid model: %s", m.invalid[0])
}

const (
	unassigned  int8 = -1
	valFalse    int8 = 0
	valTrue     int8 = 1
	conflicting int8 = 2
)

func boolToVal(b bool) int8 {
	if b {
		return valTrue
	}
	return valFalse
}
