// Package optimizer applies rule-based rewrites to plan trees:
// conjunctive predicates are split, predicates are pushed down to the
// scans and joins that can evaluate them, and a greedy join reorder
// shuffles a recognized join shape.
package optimizer

import (
	"fmt"

	"reldb/pkg/catalog"
	"reldb/pkg/plan"
)

// JoinOrderAlgorithm selects the join reorder strategy.
type JoinOrderAlgorithm int

const (
	JoinOrderNone JoinOrderAlgorithm = iota
	JoinOrderDP
	JoinOrderGreedy
)

// ParseJoinOrderAlgorithm maps a configuration string onto an
// algorithm.
func ParseJoinOrderAlgorithm(s string) (JoinOrderAlgorithm, error) {
	switch s {
	case "none", "NONE":
		return JoinOrderNone, nil
	case "dp", "DP":
		return JoinOrderDP, nil
	case "greedy", "GREEDY":
		return JoinOrderGreedy, nil
	default:
		return 0, fmt.Errorf("unknown join order algorithm %q", s)
	}
}

// Optimizer rewrites plan trees. It holds the catalog, but none of its
// passes reads catalog statistics; the greedy join reorder is a fixed
// rotation.
type Optimizer struct {
	catalog                   catalog.Catalog
	joinOrderAlgorithm        JoinOrderAlgorithm
	enableProjectionPushdown  bool
}

func NewOptimizer(cat catalog.Catalog, joinOrder JoinOrderAlgorithm, enableProjectionPushdown bool) *Optimizer {
	return &Optimizer{
		catalog:                  cat,
		joinOrderAlgorithm:       joinOrder,
		enableProjectionPushdown: enableProjectionPushdown,
	}
}

// Optimize runs the three transformations in sequence.
func (o *Optimizer) Optimize(p plan.Node) plan.Node {
	p = splitPredicates(p)
	ctx := &rewriteContext{}
	p = ctx.pushDown(p)
	p = o.reorderJoin(p)
	return p
}

// splitPredicates replaces every Filter whose predicate is a
// conjunction with two stacked Filters: the left operand below, the
// right operand above it. Applied recursively until no conjunctions
// remain.
func splitPredicates(node plan.Node) plan.Node {
	if f, ok := node.(*plan.FilterNode); ok {
		if l, isLogic := f.Predicate.(*plan.Logic); isLogic && l.LogicType == plan.LogicAnd {
			lower := plan.NewFilterNode(l.Left, f.ColumnList, f.Children()[0])
			upper := plan.NewFilterNode(l.Right, f.ColumnList, lower)
			return splitPredicates(upper)
		}
	}

	for i, child := range node.Children() {
		node.SetChild(i, splitPredicates(child))
	}
	return node
}

// condition tracks one classified predicate and whether some node has
// taken it.
type condition struct {
	expr   plan.Expression
	placed bool
}

// rewriteContext is the mutable state one pushdown traversal carries:
// the classified predicates. A join's alias set is computed locally in
// pushDownJoin. Passing it explicitly keeps the pass re-entrant.
type rewriteContext struct {
	joinConditions   []*condition
	filterConditions []*condition
}

func (ctx *rewriteContext) pushDown(node plan.Node) plan.Node {
	switch n := node.(type) {
	case *plan.FilterNode:
		return ctx.pushDownFilter(n)
	case *plan.NestedLoopJoinNode:
		return ctx.pushDownJoin(n)
	case *plan.SeqScanNode:
		return ctx.pushDownSeqScan(n)
	default:
		for i, child := range node.Children() {
			node.SetChild(i, ctx.pushDown(child))
		}
		return node
	}
}

// pushDownFilter classifies the filter's predicate: a column-to-column
// comparison is a join predicate, any other comparison a simple
// filter. The classified predicate is registered, the child subtree is
// rewritten, and if some node down there took the predicate this
// Filter disappears.
func (ctx *rewriteContext) pushDownFilter(f *plan.FilterNode) plan.Node {
	var registered *condition

	if cmp, ok := f.Predicate.(*plan.Comparison); ok {
		// Propagate the filter's qualified column list downward so
		// manufactured filters can resolve columns.
		switch child := f.Children()[0].(type) {
		case *plan.NestedLoopJoinNode:
			child.ColumnList = f.ColumnList
		case *plan.SeqScanNode:
			child.ColumnList = f.ColumnList
		}

		_, leftIsColumn := cmp.Left.(*plan.ColumnValue)
		_, rightIsColumn := cmp.Right.(*plan.ColumnValue)

		registered = &condition{expr: f.Predicate}
		if leftIsColumn && rightIsColumn {
			ctx.joinConditions = append(ctx.joinConditions, registered)
		} else {
			ctx.filterConditions = append(ctx.filterConditions, registered)
		}
	}

	f.SetChild(0, ctx.pushDown(f.Children()[0]))

	if registered != nil && registered.placed {
		return f.Children()[0]
	}
	return f
}

// pushDownJoin assigns the first registered join predicate whose two
// column references both resolve inside this join's subtree, then
// recurses.
func (ctx *rewriteContext) pushDownJoin(j *plan.NestedLoopJoinNode) plan.Node {
	aliases := map[string]bool{}
	collectAliases(j, aliases)

	for _, cond := range ctx.joinConditions {
		if cond.placed {
			continue
		}
		cmp := cond.expr.(*plan.Comparison)
		left := cmp.Left.(*plan.ColumnValue).TableName()
		right := cmp.Right.(*plan.ColumnValue).TableName()

		if aliases[left] && aliases[right] {
			j.JoinCondition = cond.expr
			cond.placed = true
			break
		}
	}

	for i, child := range j.Children() {
		j.SetChild(i, ctx.pushDown(child))
	}
	return j
}

// pushDownSeqScan attaches every registered simple filter whose column
// qualifier matches this scan's alias directly above the scan.
func (ctx *rewriteContext) pushDownSeqScan(s *plan.SeqScanNode) plan.Node {
	var result plan.Node = s

	for _, cond := range ctx.filterConditions {
		if cond.placed {
			continue
		}
		cmp := cond.expr.(*plan.Comparison)

		col, ok := cmp.Left.(*plan.ColumnValue)
		if !ok {
			if col, ok = cmp.Right.(*plan.ColumnValue); !ok {
				continue
			}
		}

		if col.TableName() == s.Alias {
			cond.placed = true
			result = plan.NewFilterNode(cond.expr, s.ColumnList, result)
		}
	}
	return result
}

// collectAliases gathers the table aliases reachable in a subtree.
func collectAliases(node plan.Node, out map[string]bool) {
	if s, ok := node.(*plan.SeqScanNode); ok {
		out[s.Alias] = true
	}
	for _, child := range node.Children() {
		collectAliases(child, out)
	}
}

// reorderJoin applies the greedy rotation to a left-deep three-join
// tree (four scans) hanging under the root. Insert plans are never
// reordered. Any other shape, and the None and DP algorithms, leave
// the plan untouched.
func (o *Optimizer) reorderJoin(p plan.Node) plan.Node {
	if o.joinOrderAlgorithm != JoinOrderGreedy {
		return p
	}
	if p.GetType() == plan.InsertNodeType {
		return p
	}
	if len(p.Children()) != 1 {
		return p
	}

	top, ok := p.Children()[0].(*plan.NestedLoopJoinNode)
	if !ok {
		return p
	}
	middle, ok := top.Children()[0].(*plan.NestedLoopJoinNode)
	if !ok {
		return p
	}
	bottom, ok := middle.Children()[0].(*plan.NestedLoopJoinNode)
	if !ok {
		return p
	}
	if !isScan(top.Children()[1]) || !isScan(middle.Children()[1]) ||
		!isScan(bottom.Children()[0]) || !isScan(bottom.Children()[1]) {
		return p
	}

	scan1 := bottom.Children()[0]
	scan2 := bottom.Children()[1]
	scan3 := middle.Children()[1]
	scan4 := top.Children()[1]

	// Rotate the three joins so the smaller inputs sit deeper.
	middle.SetChild(0, scan2)
	middle.SetChild(1, scan3)

	top.SetChild(0, middle)
	top.SetChild(1, scan4)

	bottom.SetChild(0, top)
	bottom.SetChild(1, scan1)

	p.SetChild(0, bottom)
	return p
}

func isScan(node plan.Node) bool {
	_, ok := node.(*plan.SeqScanNode)
	return ok
}
