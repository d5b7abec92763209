// Package solver provides the backends that solve binary assignment programs.
package solver

import (
	"context"
	"errors"
	"fmt"
	"sort"
)

// Status is the outcome of a solve
type Status int

const (
	StatusOptimal    Status = iota // proven optimal assignment
	StatusFeasible                 // search stopped early, best incumbent returned
	StatusInfeasible               // no assignment satisfies the constraints
	StatusUnbounded                // objective unbounded below
	StatusTimeout                  // search stopped early without an incumbent
)

// String returns the label used in results and logs
func (s Status) String() string {
	switch s {
	case StatusOptimal:
		return "OPTIMAL"
	case StatusFeasible:
		return "FEASIBLE"
	case StatusInfeasible:
		return "INFEASIBLE"
	case StatusUnbounded:
		return "UNBOUNDED"
	case StatusTimeout:
		return "TIMEOUT"
	default:
		return fmt.Sprintf("Status(%d)", int(s))
	}
}

var (
	// ErrUnknownBackend is returned by New for an unregistered backend name
	ErrUnknownBackend = errors.New("unknown solver backend")

	// ErrFractional is returned when a backend without integrality handling
	// produces a non-integral assignment
	ErrFractional = errors.New("relaxation produced a fractional assignment")
)

// Row bounds a weighted sum of variables: sum(Coefs[i] * x[Vars[i]]) <= Limit.
// Coefficients must be non-negative.
type Row struct {
	Vars  []int
	Coefs []float64
	Limit float64
}

// Program is a binary program in assignment form.
// Every variable belongs to exactly one group and exactly one variable of
// each group must be set to one. Fixed variables are forced to zero.
type Program struct {
	Cost     []float64 // objective coefficient per variable, minimized
	Group    []int     // group index per variable
	Groups   int
	Fixed    []bool
	Capacity []Row
}

// Validate checks the program shape
func (p *Program) Validate() error {
	n := len(p.Cost)
	if len(p.Group) != n || len(p.Fixed) != n {
		return fmt.Errorf("program has %d costs, %d groups and %d fixed flags", n, len(p.Group), len(p.Fixed))
	}
	for i, g := range p.Group {
		if g < 0 || g >= p.Groups {
			return fmt.Errorf("variable %d has group %d outside [0,%d)", i, g, p.Groups)
		}
	}
	for r, row := range p.Capacity {
		if len(row.Vars) != len(row.Coefs) {
			return fmt.Errorf("capacity row %d has %d vars and %d coefficients", r, len(row.Vars), len(row.Coefs))
		}
		for k, v := range row.Vars {
			if v < 0 || v >= n {
				return fmt.Errorf("capacity row %d references variable %d outside [0,%d)", r, v, n)
			}
			if row.Coefs[k] < 0 {
				return fmt.Errorf("capacity row %d has negative coefficient for variable %d", r, v)
			}
		}
	}
	return nil
}

// FreeVariables returns the number of variables not fixed to zero
func (p *Program) FreeVariables() int {
	free := 0
	for _, f := range p.Fixed {
		if !f {
			free++
		}
	}
	return free
}

// Solution is the result of a solve
type Solution struct {
	Status    Status
	Values    []float64 // one value per variable, nil unless an assignment was found
	Objective float64
	Nodes     int // relaxations solved
}

// Solver solves binary assignment programs.
// Implementations are used by a single solve and must not share state.
type Solver interface {
	Solve(ctx context.Context, p *Program) (*Solution, error)
}

// Options tunes the registered backends
type Options struct {
	MaxNodes int // 0 means unlimited
}

// Factory constructs a solver backend
type Factory func(opts Options) (Solver, error)

var registry = map[string]Factory{
	"branch-and-bound": func(opts Options) (Solver, error) {
		return &BranchAndBound{MaxNodes: opts.MaxNodes}, nil
	},
	"lp-relaxation": func(opts Options) (Solver, error) {
		return &BranchAndBound{RelaxationOnly: true}, nil
	},
}

// DefaultBackend is used when no backend name is configured
const DefaultBackend = "branch-and-bound"

// New constructs the named backend
func New(name string, opts Options) (Solver, error) {
	if name == "" {
		name = DefaultBackend
	}
	factory, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, name)
	}
	return factory(opts)
}

// Backends returns the registered backend names in sorted order
func Backends() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
