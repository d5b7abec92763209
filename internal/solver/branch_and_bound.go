package solver

import (
	"context"
	"errors"
	"fmt"
	"math"
	"runtime"
	"sort"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize/convex/lp"
)

const (
	simplexTol     = 1e-10
	integralityTol = 1e-6
	feasibilityTol = 1e-9
	pruneTol       = 1e-9
)

type bound uint8

const (
	boundFree bound = iota
	boundZero
	boundOne
)

type relaxationStatus int

const (
	relaxationSolved relaxationStatus = iota
	relaxationInfeasible
	relaxationUnbounded
)

type relaxation struct {
	status    relaxationStatus
	values    []float64
	objective float64
	branch    int // most promising fractional variable, -1 when integral
}

// BranchAndBound solves assignment programs to integrality by depth-first
// branch and bound over LP relaxations solved with the simplex method.
// A greedy assignment seeds the incumbent. The search stops at the context
// deadline, even in the middle of a relaxation, or after MaxNodes
// relaxations, returning the best incumbent found so far.
type BranchAndBound struct {
	MaxNodes int

	// RelaxationOnly solves the root relaxation and rejects fractional results
	RelaxationOnly bool
}

// Solve implements Solver
func (b *BranchAndBound) Solve(ctx context.Context, p *Program) (*Solution, error) {
	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("invalid program: %w", err)
	}
	if ctx.Err() != nil {
		return &Solution{Status: StatusTimeout}, nil
	}

	root := make([]bound, len(p.Cost))
	for i, fixed := range p.Fixed {
		if fixed {
			root[i] = boundZero
		}
	}

	var (
		best    *relaxation
		nodes   int
		stopped bool
		stack   = [][]bound{root}
	)

	if !b.RelaxationOnly {
		best = greedy(p)
	}

	for len(stack) > 0 {
		if ctx.Err() != nil || (b.MaxNodes > 0 && nodes >= b.MaxNodes) {
			stopped = true
			break
		}

		bounds := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		rel, err := relaxWithin(ctx, p, bounds)
		if errors.Is(err, errInterrupted) {
			stopped = true
			break
		}
		nodes++
		if err != nil {
			return nil, err
		}

		switch rel.status {
		case relaxationInfeasible:
			continue
		case relaxationUnbounded:
			return &Solution{Status: StatusUnbounded, Nodes: nodes}, nil
		}

		if best != nil && rel.objective >= best.objective-pruneTol {
			continue
		}

		if rel.branch < 0 {
			best = rel
			continue
		}

		if b.RelaxationOnly {
			return nil, fmt.Errorf("%w: variable %d = %.4f", ErrFractional, rel.branch, rel.values[rel.branch])
		}

		zero := append([]bound(nil), bounds...)
		zero[rel.branch] = boundZero
		one := append([]bound(nil), bounds...)
		one[rel.branch] = boundOne

		// the "one" branch is popped first to reach an incumbent quickly
		stack = append(stack, zero, one)
	}

	switch {
	case best == nil && stopped:
		return &Solution{Status: StatusTimeout, Nodes: nodes}, nil
	case best == nil:
		return &Solution{Status: StatusInfeasible, Nodes: nodes}, nil
	case stopped:
		return &Solution{Status: StatusFeasible, Values: best.values, Objective: best.objective, Nodes: nodes}, nil
	default:
		return &Solution{Status: StatusOptimal, Values: best.values, Objective: best.objective, Nodes: nodes}, nil
	}
}

// greedy assigns each group, in order, its cheapest free variable that still
// fits every capacity row. It returns nil when some group cannot be placed.
func greedy(p *Program) *relaxation {
	type use struct {
		row  int
		coef float64
	}
	uses := make([][]use, len(p.Cost))
	remaining := make([]float64, len(p.Capacity))
	for r, row := range p.Capacity {
		remaining[r] = row.Limit
		for k, v := range row.Vars {
			uses[v] = append(uses[v], use{row: r, coef: row.Coefs[k]})
		}
	}

	members := make([][]int, p.Groups)
	for i, g := range p.Group {
		if !p.Fixed[i] {
			members[g] = append(members[g], i)
		}
	}

	values := make([]float64, len(p.Cost))
	objective := 0.0
	for g := 0; g < p.Groups; g++ {
		candidates := members[g]
		sort.SliceStable(candidates, func(a, b int) bool {
			return p.Cost[candidates[a]] < p.Cost[candidates[b]]
		})

		chosen := -1
		for _, v := range candidates {
			fits := true
			for _, u := range uses[v] {
				if remaining[u.row]-u.coef < -feasibilityTol {
					fits = false
					break
				}
			}
			if fits {
				chosen = v
				break
			}
		}
		if chosen < 0 {
			return nil
		}

		for _, u := range uses[chosen] {
			remaining[u.row] -= u.coef
		}
		values[chosen] = 1
		objective += p.Cost[chosen]
	}

	return &relaxation{status: relaxationSolved, values: values, objective: objective, branch: -1}
}

// errInterrupted reports a relaxation abandoned at the context deadline
var errInterrupted = errors.New("relaxation interrupted")

// relaxSlots bounds simplex runs process wide. lp.Simplex cannot be
// cancelled, so a relaxation abandoned at a deadline keeps its slot until it
// returns on its own.
var relaxSlots = make(chan struct{}, max(4, runtime.GOMAXPROCS(0)))

// relaxWithin runs relax in a worker and stops waiting for it once ctx is
// done. Without a deadline it runs inline.
func relaxWithin(ctx context.Context, p *Program, bounds []bound) (*relaxation, error) {
	if ctx.Done() == nil {
		return relax(p, bounds)
	}
	if ctx.Err() != nil {
		return nil, errInterrupted
	}

	select {
	case relaxSlots <- struct{}{}:
	case <-ctx.Done():
		return nil, errInterrupted
	}

	type outcome struct {
		rel *relaxation
		err error
	}
	done := make(chan outcome, 1)

	go func() {
		defer func() { <-relaxSlots }()
		defer func() {
			if r := recover(); r != nil {
				done <- outcome{err: fmt.Errorf("relaxation panicked: %v", r)}
			}
		}()
		rel, err := relax(p, bounds)
		done <- outcome{rel: rel, err: err}
	}()

	select {
	case o := <-done:
		return o.rel, o.err
	case <-ctx.Done():
		return nil, errInterrupted
	}
}

type denseRow struct {
	cols  []int
	coefs []float64
	rhs   float64
	slack bool
}

// relax solves the LP relaxation of p under the given variable bounds.
// Groups holding a variable fixed to one are satisfied and drop out together
// with their remaining variables; capacity consumed by those variables is
// moved to the right-hand side.
func relax(p *Program, bounds []bound) (*relaxation, error) {
	n := len(p.Cost)

	chosen := make([]int, p.Groups)
	for g := range chosen {
		chosen[g] = -1
	}
	for i, bd := range bounds {
		if bd != boundOne {
			continue
		}
		g := p.Group[i]
		if chosen[g] >= 0 {
			return &relaxation{status: relaxationInfeasible}, nil
		}
		chosen[g] = i
	}

	fixedObjective := 0.0
	for _, i := range chosen {
		if i >= 0 {
			fixedObjective += p.Cost[i]
		}
	}

	col := make([]int, n)
	cols := make([]int, 0, n)
	groupCols := make([][]int, p.Groups)
	for i := 0; i < n; i++ {
		col[i] = -1
		g := p.Group[i]
		if bounds[i] != boundFree || chosen[g] >= 0 {
			continue
		}
		col[i] = len(cols)
		cols = append(cols, i)
		groupCols[g] = append(groupCols[g], col[i])
	}

	rows := make([]denseRow, 0, p.Groups+len(p.Capacity))
	for g := 0; g < p.Groups; g++ {
		if chosen[g] >= 0 {
			continue
		}
		if len(groupCols[g]) == 0 {
			return &relaxation{status: relaxationInfeasible}, nil
		}
		coefs := make([]float64, len(groupCols[g]))
		for k := range coefs {
			coefs[k] = 1
		}
		rows = append(rows, denseRow{cols: groupCols[g], coefs: coefs, rhs: 1})
	}

	for _, row := range p.Capacity {
		limit := row.Limit
		var (
			rowCols  []int
			rowCoefs []float64
			total    float64
		)
		for k, v := range row.Vars {
			switch {
			case bounds[v] == boundOne:
				limit -= row.Coefs[k]
			case col[v] >= 0 && row.Coefs[k] > 0:
				rowCols = append(rowCols, col[v])
				rowCoefs = append(rowCoefs, row.Coefs[k])
				total += row.Coefs[k]
			}
		}
		if limit < -feasibilityTol {
			return &relaxation{status: relaxationInfeasible}, nil
		}
		// every variable is at most one, so a row whose full sum fits never binds
		if len(rowCols) == 0 || total <= limit+feasibilityTol {
			continue
		}
		rows = append(rows, denseRow{cols: rowCols, coefs: rowCoefs, rhs: math.Max(limit, 0), slack: true})
	}

	values := make([]float64, n)
	for _, i := range chosen {
		if i >= 0 {
			values[i] = 1
		}
	}

	if len(rows) == 0 {
		return &relaxation{status: relaxationSolved, values: values, objective: fixedObjective, branch: -1}, nil
	}

	slacks := 0
	for _, row := range rows {
		if row.slack {
			slacks++
		}
	}

	m, width := len(rows), len(cols)+slacks
	c := make([]float64, width)
	for k, i := range cols {
		c[k] = p.Cost[i]
	}
	A := mat.NewDense(m, width, nil)
	rhs := make([]float64, m)
	next := len(cols)
	for r, row := range rows {
		for k, cc := range row.cols {
			A.Set(r, cc, row.coefs[k])
		}
		if row.slack {
			A.Set(r, next, 1)
			next++
		}
		rhs[r] = row.rhs
	}

	optF, optX, err := lp.Simplex(c, A, rhs, simplexTol, nil)
	switch {
	case errors.Is(err, lp.ErrInfeasible):
		return &relaxation{status: relaxationInfeasible}, nil
	case errors.Is(err, lp.ErrUnbounded):
		return &relaxation{status: relaxationUnbounded}, nil
	case err != nil:
		return nil, fmt.Errorf("failed to solve relaxation: %w", err)
	}

	branch, branchValue := -1, 0.0
	for k, i := range cols {
		v := optX[k]
		if math.Abs(v-math.Round(v)) <= integralityTol {
			v = math.Round(v)
		} else if v > branchValue {
			branch, branchValue = i, v
		}
		values[i] = v
	}

	return &relaxation{
		status:    relaxationSolved,
		values:    values,
		objective: optF + fixedObjective,
		branch:    branch,
	}, nil
}
