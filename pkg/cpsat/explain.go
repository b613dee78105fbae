package cpsat

import "fmt"

// overload looks for an at-most constraint that fully contains disjoint
// equality constraints whose demands already exceed its bound. It returns a
// readable reason for the first one found.
func overload(m *Model) string {
	n := m.NumVars()
	varCons := make([][]int32, n)
	for ci, c := range m.constraints {
		if c.Sense != SenseExactly || c.Bound == 0 {
			continue
		}
		for _, v := range c.Vars {
			varCons[v] = append(varCons[v], int32(ci))
		}
	}

	stamp := make([]int32, n)
	taken := make([]int32, n)
	seen := make([]int32, len(m.constraints))
	for ci, c := range m.constraints {
		if c.Sense != SenseAtMost {
			continue
		}
		mark := int32(ci + 1)
		for _, v := range c.Vars {
			stamp[v] = mark
		}
		demand := 0
		for _, v := range c.Vars {
			for _, ei := range varCons[v] {
				if seen[ei] == mark {
					continue
				}
				seen[ei] = mark
				exact := m.constraints[ei]
				if !containedIn(exact.Vars, stamp, taken, mark) {
					continue
				}
				for _, ev := range exact.Vars {
					taken[ev] = mark
				}
				demand += exact.Bound
			}
		}
		if demand > c.Bound {
			return fmt.Sprintf("%s: demand %d exceeds capacity %d", c.Name, demand, c.Bound)
		}
	}
	return ""
}

func containedIn(vars []BoolVar, stamp, taken []int32, mark int32) bool {
	for _, v := range vars {
		if stamp[v] != mark || taken[v] == mark {
			return false
		}
	}
	return true
}
