package optimizer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reldb/pkg/plan"
	"reldb/pkg/tuple"
	"reldb/pkg/types"
)

var scanDesc = tuple.MustTupleDesc(
	[]types.Type{types.IntType, types.IntType},
	[]string{"a.x", "a.y"},
)

func scanNode(alias string) *plan.SeqScanNode {
	return plan.NewSeqScanNode(1, alias, scanDesc)
}

func colCmp(left, right string) *plan.Comparison {
	return plan.NewComparison(types.Equals,
		plan.NewColumnValue(0, left),
		plan.NewColumnValue(2, right))
}

func constCmp(col string, v int64) *plan.Comparison {
	return plan.NewComparison(types.GreaterThan,
		plan.NewColumnValue(0, col),
		plan.NewConst(types.NewIntField(v)))
}

func TestSplitPredicatesStacksConjunctions(t *testing.T) {
	scan := scanNode("a")
	pred := plan.NewLogic(plan.LogicAnd, constCmp("a.x", 1), constCmp("a.y", 2))
	root := plan.NewFilterNode(pred, scanDesc, scan)

	got := splitPredicates(root)

	// The upper filter carries the right operand, the lower the left.
	upper, ok := got.(*plan.FilterNode)
	require.True(t, ok)
	assert.Equal(t, "(a.y > 2)", upper.Predicate.String())

	lower, ok := upper.Children()[0].(*plan.FilterNode)
	require.True(t, ok)
	assert.Equal(t, "(a.x > 1)", lower.Predicate.String())
	assert.Same(t, scan, lower.Children()[0])
}

func TestSplitPredicatesRecursesNestedAnds(t *testing.T) {
	scan := scanNode("a")
	pred := plan.NewLogic(plan.LogicAnd,
		plan.NewLogic(plan.LogicAnd, constCmp("a.x", 1), constCmp("a.x", 2)),
		constCmp("a.y", 3))
	root := plan.NewFilterNode(pred, scanDesc, scan)

	got := splitPredicates(root)

	depth := 0
	for node := got; ; {
		f, ok := node.(*plan.FilterNode)
		if !ok {
			break
		}
		_, isLogic := f.Predicate.(*plan.Logic)
		assert.False(t, isLogic, "no conjunction survives the split")
		depth++
		node = f.Children()[0]
	}
	assert.Equal(t, 3, depth)
}

func TestPushDownSimpleFilterLandsAboveScan(t *testing.T) {
	scan := scanNode("a")
	root := plan.NewFilterNode(constCmp("a.x", 5), scanDesc, scan)

	ctx := &rewriteContext{}
	got := ctx.pushDown(plan.Node(root))

	// The original filter dissolved; a new one sits directly above the
	// scan with the same predicate.
	f, ok := got.(*plan.FilterNode)
	require.True(t, ok)
	assert.Same(t, scan, f.Children()[0])
	assert.Equal(t, "(a.x > 5)", f.Predicate.String())
}

func TestPushDownLeavesForeignFilterInPlace(t *testing.T) {
	scan := scanNode("a")
	root := plan.NewFilterNode(constCmp("b.x", 5), scanDesc, scan)

	ctx := &rewriteContext{}
	got := ctx.pushDown(plan.Node(root))

	f, ok := got.(*plan.FilterNode)
	require.True(t, ok)
	assert.Same(t, scan, f.Children()[0], "unmatched predicate keeps its Filter node")
	assert.False(t, ctx.filterConditions[0].placed)
}

func TestPushDownJoinConditionAttachesToJoin(t *testing.T) {
	left := scanNode("a")
	right := scanNode("b")
	join := plan.NewNestedLoopJoinNode(plan.InnerJoin, nil, left, right)
	root := plan.NewFilterNode(colCmp("a.x", "b.x"), scanDesc, join)

	ctx := &rewriteContext{}
	got := ctx.pushDown(plan.Node(root))

	// The filter dissolved into the join's condition.
	j, ok := got.(*plan.NestedLoopJoinNode)
	require.True(t, ok)
	require.NotNil(t, j.JoinCondition)
	assert.Equal(t, "(a.x = b.x)", j.JoinCondition.String())
}

func TestPushDownJoinConditionNeedsBothSides(t *testing.T) {
	join := plan.NewNestedLoopJoinNode(plan.InnerJoin, nil, scanNode("a"), scanNode("b"))
	root := plan.NewFilterNode(colCmp("a.x", "c.x"), scanDesc, join)

	ctx := &rewriteContext{}
	got := ctx.pushDown(plan.Node(root))

	f, ok := got.(*plan.FilterNode)
	require.True(t, ok, "a predicate over a table outside the join stays put")
	j := f.Children()[0].(*plan.NestedLoopJoinNode)
	assert.Nil(t, j.JoinCondition)
}

// wrapperNode stands in for whatever root (projection, limit) hangs
// above the join pyramid.
type wrapperNode struct {
	child plan.Node
}

func (w *wrapperNode) GetType() plan.NodeType          { return plan.LimitNodeType }
func (w *wrapperNode) Children() []plan.Node           { return []plan.Node{w.child} }
func (w *wrapperNode) SetChild(i int, child plan.Node) { w.child = child }

func TestGreedyReorderRotatesThreeJoinTree(t *testing.T) {
	s1, s2, s3, s4 := scanNode("t1"), scanNode("t2"), scanNode("t3"), scanNode("t4")
	bottom := plan.NewNestedLoopJoinNode(plan.InnerJoin, nil, s1, s2)
	middle := plan.NewNestedLoopJoinNode(plan.InnerJoin, nil, bottom, s3)
	top := plan.NewNestedLoopJoinNode(plan.InnerJoin, nil, middle, s4)
	root := &wrapperNode{child: top}

	o := NewOptimizer(nil, JoinOrderGreedy, false)
	got := o.reorderJoin(root)

	// bottom is now the root join, holding (top, s1); top holds
	// (middle, s4); middle holds (s2, s3).
	newRoot := got.Children()[0].(*plan.NestedLoopJoinNode)
	assert.Same(t, bottom, newRoot)
	assert.Same(t, top, newRoot.Children()[0])
	assert.Same(t, s1, newRoot.Children()[1])
	assert.Same(t, middle, top.Children()[0])
	assert.Same(t, s4, top.Children()[1])
	assert.Same(t, s2, middle.Children()[0])
	assert.Same(t, s3, middle.Children()[1])
}

func TestGreedyReorderSkipsInsertPlans(t *testing.T) {
	// INSERT ... SELECT over a matching three-join pyramid: the
	// rotation must not touch it.
	s1, s2, s3, s4 := scanNode("t1"), scanNode("t2"), scanNode("t3"), scanNode("t4")
	bottom := plan.NewNestedLoopJoinNode(plan.InnerJoin, nil, s1, s2)
	middle := plan.NewNestedLoopJoinNode(plan.InnerJoin, nil, bottom, s3)
	top := plan.NewNestedLoopJoinNode(plan.InnerJoin, nil, middle, s4)
	root := plan.NewInsertNode(1, nil, top)

	o := NewOptimizer(nil, JoinOrderGreedy, false)
	got := o.reorderJoin(root)

	assert.Same(t, top, got.Children()[0])
	assert.Same(t, middle, top.Children()[0])
	assert.Same(t, s1, bottom.Children()[0])
	assert.Same(t, s2, bottom.Children()[1])
}

func TestGreedyReorderIgnoresOtherShapes(t *testing.T) {
	join := plan.NewNestedLoopJoinNode(plan.InnerJoin, nil, scanNode("a"), scanNode("b"))
	root := &wrapperNode{child: join}

	o := NewOptimizer(nil, JoinOrderGreedy, false)
	got := o.reorderJoin(root)
	assert.Same(t, join, got.Children()[0], "non-matching shapes are left untouched")
}

func TestReorderNoneAndDPAreNoops(t *testing.T) {
	join := plan.NewNestedLoopJoinNode(plan.InnerJoin, nil, scanNode("a"), scanNode("b"))
	root := &wrapperNode{child: join}

	for _, alg := range []JoinOrderAlgorithm{JoinOrderNone, JoinOrderDP} {
		o := NewOptimizer(nil, alg, false)
		assert.Same(t, join, o.reorderJoin(root).Children()[0])
	}
}

func TestOptimizeEndToEnd(t *testing.T) {
	// filter(a.x>1 AND a.x=b.x) over join(a, b): the conjunction is
	// split, the simple half lands above scan a, the join half becomes
	// the join condition.
	scanA := scanNode("a")
	scanB := scanNode("b")
	join := plan.NewNestedLoopJoinNode(plan.InnerJoin, nil, scanA, scanB)
	pred := plan.NewLogic(plan.LogicAnd, constCmp("a.x", 1), colCmp("a.x", "b.x"))
	root := plan.NewFilterNode(pred, scanDesc, join)

	o := NewOptimizer(nil, JoinOrderNone, false)
	got := o.Optimize(root)

	j, ok := got.(*plan.NestedLoopJoinNode)
	require.True(t, ok, "both filters dissolve")
	require.NotNil(t, j.JoinCondition)

	f, ok := j.Children()[0].(*plan.FilterNode)
	require.True(t, ok, "simple predicate sits above the left scan")
	assert.Same(t, scanA, f.Children()[0])
}
