// Package plan defines the operator tree the engine consumes. Plan
// construction (parsing, binding) happens upstream; the optimizer
// rewrites these trees and the executor builder walks them.
package plan

import (
	"reldb/pkg/primitives"
	"reldb/pkg/tuple"
)

// NodeType tags the plan node kinds.
type NodeType int

const (
	SeqScanNodeType NodeType = iota
	FilterNodeType
	InsertNodeType
	DeleteNodeType
	UpdateNodeType
	LimitNodeType
	OrderByNodeType
	NestedLoopJoinNodeType
	MergeJoinNodeType
	ValuesNodeType
)

// Node is one operator of the plan tree. Children are exposed
// mutably; the optimizer rewrites trees in place.
type Node interface {
	GetType() NodeType
	Children() []Node
	SetChild(i int, child Node)
}

// baseNode carries the child list shared by all nodes.
type baseNode struct {
	children []Node
}

func (b *baseNode) Children() []Node { return b.children }

func (b *baseNode) SetChild(i int, child Node) { b.children[i] = child }

// SeqScanNode scans one table under an alias.
type SeqScanNode struct {
	baseNode
	TableOid primitives.TableID
	Alias    string

	// ColumnList is the scan's output schema with qualified names;
	// the optimizer propagates it into manufactured Filter nodes.
	ColumnList *tuple.TupleDescription
}

func NewSeqScanNode(tableOid primitives.TableID, alias string, columnList *tuple.TupleDescription) *SeqScanNode {
	return &SeqScanNode{TableOid: tableOid, Alias: alias, ColumnList: columnList}
}

func (n *SeqScanNode) GetType() NodeType { return SeqScanNodeType }

// FilterNode keeps only records its predicate accepts.
type FilterNode struct {
	baseNode
	Predicate  Expression
	ColumnList *tuple.TupleDescription
}

func NewFilterNode(predicate Expression, columnList *tuple.TupleDescription, child Node) *FilterNode {
	n := &FilterNode{Predicate: predicate, ColumnList: columnList}
	n.children = []Node{child}
	return n
}

func (n *FilterNode) GetType() NodeType { return FilterNodeType }

// InsertNode inserts its child's records into a table. InsertColumns
// names the target column of each child record position.
type InsertNode struct {
	baseNode
	TableOid      primitives.TableID
	InsertColumns []string
}

func NewInsertNode(tableOid primitives.TableID, insertColumns []string, child Node) *InsertNode {
	n := &InsertNode{TableOid: tableOid, InsertColumns: insertColumns}
	n.children = []Node{child}
	return n
}

func (n *InsertNode) GetType() NodeType { return InsertNodeType }

// DeleteNode deletes every record its child produces.
type DeleteNode struct {
	baseNode
	TableOid primitives.TableID
}

func NewDeleteNode(tableOid primitives.TableID, child Node) *DeleteNode {
	n := &DeleteNode{TableOid: tableOid}
	n.children = []Node{child}
	return n
}

func (n *DeleteNode) GetType() NodeType { return DeleteNodeType }

// UpdateNode rewrites every record its child produces; UpdateExprs
// computes the new value of each column from the old record.
type UpdateNode struct {
	baseNode
	TableOid    primitives.TableID
	UpdateExprs []Expression
}

func NewUpdateNode(tableOid primitives.TableID, updateExprs []Expression, child Node) *UpdateNode {
	n := &UpdateNode{TableOid: tableOid, UpdateExprs: updateExprs}
	n.children = []Node{child}
	return n
}

func (n *UpdateNode) GetType() NodeType { return UpdateNodeType }

// LimitNode discards Offset records and passes through at most Count.
// A nil Count means unlimited; a nil Offset means zero.
type LimitNode struct {
	baseNode
	Offset *uint64
	Count  *uint64
}

func NewLimitNode(offset, count *uint64, child Node) *LimitNode {
	n := &LimitNode{Offset: offset, Count: count}
	n.children = []Node{child}
	return n
}

func (n *LimitNode) GetType() NodeType { return LimitNodeType }

// ValuesNode is the leaf feeding literal rows into an Insert.
type ValuesNode struct {
	baseNode
	Rows []*tuple.Record
}

func NewValuesNode(rows []*tuple.Record) *ValuesNode {
	return &ValuesNode{Rows: rows}
}

func (n *ValuesNode) GetType() NodeType { return ValuesNodeType }

// OrderDirection is the sort direction of one ORDER BY key.
type OrderDirection int

const (
	OrderDefault OrderDirection = iota
	OrderAsc
	OrderDesc
)

// OrderBy is one sort key with its direction.
type OrderBy struct {
	Direction OrderDirection
	Expr      Expression
}

// OrderByNode sorts its input by the keys in order.
type OrderByNode struct {
	baseNode
	OrderBys []OrderBy
}

func NewOrderByNode(orderBys []OrderBy, child Node) *OrderByNode {
	n := &OrderByNode{OrderBys: orderBys}
	n.children = []Node{child}
	return n
}

func (n *OrderByNode) GetType() NodeType { return OrderByNodeType }

// JoinType selects inner or one of the outer join variants.
type JoinType int

const (
	InnerJoin JoinType = iota
	LeftJoin
	RightJoin
	FullJoin
)

func (t JoinType) String() string {
	switch t {
	case InnerJoin:
		return "INNER"
	case LeftJoin:
		return "LEFT"
	case RightJoin:
		return "RIGHT"
	case FullJoin:
		return "FULL"
	default:
		return "UNKNOWN"
	}
}

// NestedLoopJoinNode joins its two children pairwise on JoinCondition.
// The optimizer's pushdown pass fills JoinCondition in from predicates
// it classified as join predicates.
type NestedLoopJoinNode struct {
	baseNode
	JoinType      JoinType
	JoinCondition Expression
	ColumnList    *tuple.TupleDescription
}

func NewNestedLoopJoinNode(joinType JoinType, condition Expression, left, right Node) *NestedLoopJoinNode {
	n := &NestedLoopJoinNode{JoinType: joinType, JoinCondition: condition}
	n.children = []Node{left, right}
	return n
}

func (n *NestedLoopJoinNode) GetType() NodeType { return NestedLoopJoinNodeType }

// MergeJoinNode equi-joins two inputs already sorted on its keys.
type MergeJoinNode struct {
	baseNode
	LeftKey  Expression
	RightKey Expression
}

func NewMergeJoinNode(leftKey, rightKey Expression, left, right Node) *MergeJoinNode {
	n := &MergeJoinNode{LeftKey: leftKey, RightKey: rightKey}
	n.children = []Node{left, right}
	return n
}

func (n *MergeJoinNode) GetType() NodeType { return MergeJoinNodeType }
