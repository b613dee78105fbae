package cpsat

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSolverExactlyAndAtMost(t *testing.T) {
	m := NewModel()
	vars := make([]BoolVar, 5)
	for i := range vars {
		vars[i] = m.NewBoolVar(fmt.Sprintf("x%d", i))
	}
	m.AddExactly("pick-three", vars, 3)
	m.AddAtMost("first-two", vars[:2], 1)

	resp, err := NewSolver(Parameters{MaxTime: time.Second}).Solve(context.Background(), m)
	require.NoError(t, err)
	require.Equal(t, StatusOptimal, resp.Status)

	total := 0
	for _, v := range vars {
		if resp.Value(v) {
			total++
		}
	}
	assert.Equal(t, 3, total)
	assert.False(t, resp.Value(vars[0]) && resp.Value(vars[1]))
}

func TestSolverHonoursFixings(t *testing.T) {
	m := NewModel()
	a := m.NewBoolVar("a")
	b := m.NewBoolVar("b")
	c := m.NewBoolVar("c")
	m.AddExactly("one", []BoolVar{a, b, c}, 1)
	m.Fix(c, true)

	resp, err := NewSolver(Parameters{}).Solve(context.Background(), m)
	require.NoError(t, err)
	require.True(t, resp.Status.HasSolution())
	assert.True(t, resp.Value(c))
	assert.False(t, resp.Value(a))
	assert.False(t, resp.Value(b))
}

func TestSolverConflictingFixingsInfeasible(t *testing.T) {
	m := NewModel()
	a := m.NewBoolVar("a")
	m.Fix(a, true)
	m.Fix(a, false)

	resp, err := NewSolver(Parameters{}).Solve(context.Background(), m)
	require.NoError(t, err)
	assert.Equal(t, StatusInfeasible, resp.Status)
	assert.Contains(t, resp.Reason, "fixed to both values")
}

func TestSolverPigeonholeProvedAtRoot(t *testing.T) {
	// Four demands of one unit each over three shared slots.
	m := NewModel()
	const slots = 3
	grid := make([][]BoolVar, 4)
	var all []BoolVar
	for i := range grid {
		grid[i] = make([]BoolVar, slots)
		for j := 0; j < slots; j++ {
			grid[i][j] = m.NewBoolVar(fmt.Sprintf("d%d_s%d", i, j))
			all = append(all, grid[i][j])
		}
		m.AddExactly(fmt.Sprintf("demand-%d", i), grid[i], 1)
	}
	for j := 0; j < slots; j++ {
		col := make([]BoolVar, 0, len(grid))
		for i := range grid {
			col = append(col, grid[i][j])
		}
		m.AddAtMost(fmt.Sprintf("slot-%d", j), col, 1)
	}
	m.AddAtMost("capacity", all, slots)

	resp, err := NewSolver(Parameters{MaxTime: time.Second}).Solve(context.Background(), m)
	require.NoError(t, err)
	assert.Equal(t, StatusInfeasible, resp.Status)
	assert.Contains(t, resp.Reason, "capacity")
	assert.Zero(t, resp.Branches)
}

func TestSolverExhaustsSmallInfeasibleModel(t *testing.T) {
	m := NewModel()
	a := m.NewBoolVar("a")
	b := m.NewBoolVar("b")
	m.AddExactly("both", []BoolVar{a, b}, 2)
	m.AddAtMost("not-both", []BoolVar{a, b}, 1)

	resp, err := NewSolver(Parameters{}).Solve(context.Background(), m)
	require.NoError(t, err)
	assert.Equal(t, StatusInfeasible, resp.Status)
	assert.False(t, resp.Value(a))
}

func TestSolverRejectsUnreachableEquality(t *testing.T) {
	m := NewModel()
	a := m.NewBoolVar("a")
	b := m.NewBoolVar("b")
	m.AddExactly("three-of-two", []BoolVar{a, b}, 3)

	resp, err := NewSolver(Parameters{}).Solve(context.Background(), m)
	require.NoError(t, err)
	assert.Equal(t, StatusInfeasible, resp.Status)
	assert.Contains(t, resp.Reason, "three-of-two")
}

func TestSolverNoBindingConstraints(t *testing.T) {
	m := NewModel()
	a := m.NewBoolVar("a")
	b := m.NewBoolVar("b")
	m.AddAtMost("loose", []BoolVar{a, b}, 2)

	resp, err := NewSolver(Parameters{}).Solve(context.Background(), m)
	require.NoError(t, err)
	assert.Equal(t, StatusOptimal, resp.Status)
	assert.False(t, resp.Value(a))
	assert.False(t, resp.Value(b))
}

func TestSolverTightLatinSquare(t *testing.T) {
	m := latinSquare(9)

	resp, err := NewSolver(Parameters{MaxTime: 20 * time.Second}).Solve(context.Background(), m)
	require.NoError(t, err)
	require.Equal(t, StatusOptimal, resp.Status)
	assertSatisfied(t, m, resp)
}

func TestSolverInvalidModel(t *testing.T) {
	m := NewModel()
	a := m.NewBoolVar("a")
	m.AddExactly("dup", []BoolVar{a, a}, 1)

	resp, err := NewSolver(Parameters{}).Solve(context.Background(), m)
	require.Error(t, err)
	assert.Equal(t, StatusModelInvalid, resp.Status)
}

func TestSolverPortfolioFindsSolution(t *testing.T) {
	m := latinSquare(5)

	resp, err := NewSolver(Parameters{MaxTime: 5 * time.Second, Workers: 3, Seed: 7}).Solve(context.Background(), m)
	require.NoError(t, err)
	require.True(t, resp.Status.HasSolution())
	assertSatisfied(t, m, resp)
}

func TestSolverCancelledContextReturnsUnknown(t *testing.T) {
	m := latinSquare(6)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	resp, err := NewSolver(Parameters{MaxTime: time.Second}).Solve(ctx, m)
	require.NoError(t, err)
	assert.Equal(t, StatusUnknown, resp.Status)
}

func TestNewSolverDefaults(t *testing.T) {
	params := NewSolver(Parameters{}).Parameters()
	assert.Equal(t, 30*time.Second, params.MaxTime)
	assert.Equal(t, 1, params.Workers)
}

func assertSatisfied(t *testing.T, m *Model, resp *Response) {
	t.Helper()
	for _, c := range m.Constraints() {
		sum := 0
		for _, v := range c.Vars {
			if resp.Value(v) {
				sum++
			}
		}
		if c.Sense == SenseExactly {
			assert.Equal(t, c.Bound, sum, c.Name)
		} else {
			assert.LessOrEqual(t, sum, c.Bound, c.Name)
		}
	}
}

// latinSquare builds an n×n latin square model: one value per cell, each value
// once per row and once per column.
func latinSquare(n int) *Model {
	m := NewModel()
	x := make([][][]BoolVar, n)
	for r := 0; r < n; r++ {
		x[r] = make([][]BoolVar, n)
		for c := 0; c < n; c++ {
			x[r][c] = make([]BoolVar, n)
			for v := 0; v < n; v++ {
				x[r][c][v] = m.NewBoolVar(fmt.Sprintf("r%dc%dv%d", r, c, v))
			}
			m.AddExactly(fmt.Sprintf("cell-%d-%d", r, c), x[r][c], 1)
		}
	}
	for v := 0; v < n; v++ {
		for r := 0; r < n; r++ {
			row := make([]BoolVar, 0, n)
			col := make([]BoolVar, 0, n)
			for c := 0; c < n; c++ {
				row = append(row, x[r][c][v])
				col = append(col, x[c][r][v])
			}
			m.AddAtMost(fmt.Sprintf("row-%d-%d", r, v), row, 1)
			m.AddAtMost(fmt.Sprintf("col-%d-%d", r, v), col, 1)
		}
	}
	return m
}

func TestStatusString(t *testing.T) {
	assert.Equal(t, "UNKNOWN", StatusUnknown.String())
	assert.Equal(t, "MODEL_INVALID", StatusModelInvalid.String())
	assert.Equal(t, "INFEASIBLE", StatusInfeasible.String())
	assert.Equal(t, "OPTIMAL", StatusOptimal.String())
	assert.False(t, StatusUnknown.HasSolution())
	assert.True(t, StatusOptimal.HasSolution())
}
