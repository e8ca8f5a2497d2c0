package database

import (
	"fmt"
	"strings"
)

type FilterOp string

const (
	OpEq  FilterOp = "eq"
	OpGte FilterOp = "gte"
	OpLt  FilterOp = "lt"
)

type Filter struct {
	Field string
	Op    FilterOp
	Value any
}

type SortOrder string

const (
	SortAsc  SortOrder = "ASC"
	SortDesc SortOrder = "DESC"
)

// QueryBuilder assembles SELECT statements with AND-ed filters.
type QueryBuilder struct {
	table   string
	selects []string
	filters []*Filter
	orderBy string
	order   SortOrder
	limit   int
}

func NewQuery(table string) *QueryBuilder {
	return &QueryBuilder{
		table:   table,
		selects: []string{"*"},
	}
}

func (q *QueryBuilder) Select(fields ...string) *QueryBuilder {
	q.selects = fields
	return q
}

func (q *QueryBuilder) Filter(field string, op FilterOp, value any) *QueryBuilder {
	q.filters = append(q.filters, &Filter{Field: field, Op: op, Value: value})
	return q
}

func (q *QueryBuilder) Where(field string, value any) *QueryBuilder {
	return q.Filter(field, OpEq, value)
}

func (q *QueryBuilder) OrderBy(field string, order SortOrder) *QueryBuilder {
	q.orderBy = field
	q.order = order
	return q
}

func (q *QueryBuilder) Limit(n int) *QueryBuilder {
	q.limit = n
	return q
}

func (q *QueryBuilder) Build() (string, []any) {
	var sb strings.Builder

	sb.WriteString("SELECT ")
	sb.WriteString(strings.Join(q.selects, ", "))
	sb.WriteString(" FROM ")
	sb.WriteString(q.table)

	args := writeWhere(&sb, q.filters)

	if q.orderBy != "" {
		fmt.Fprintf(&sb, " ORDER BY %s %s", q.orderBy, q.order)
	}

	if q.limit > 0 {
		fmt.Fprintf(&sb, " LIMIT %d", q.limit)
	}

	return sb.String(), args
}

func (q *QueryBuilder) BuildCount() (string, []any) {
	var sb strings.Builder
	sb.WriteString("SELECT COUNT(*) FROM ")
	sb.WriteString(q.table)
	args := writeWhere(&sb, q.filters)
	return sb.String(), args
}

// DeleteBuilder assembles DELETE statements with AND-ed filters.
type DeleteBuilder struct {
	table   string
	filters []*Filter
}

func NewDelete(table string) *DeleteBuilder {
	return &DeleteBuilder{table: table}
}

func (b *DeleteBuilder) Filter(field string, op FilterOp, value any) *DeleteBuilder {
	b.filters = append(b.filters, &Filter{Field: field, Op: op, Value: value})
	return b
}

func (b *DeleteBuilder) Where(field string, value any) *DeleteBuilder {
	return b.Filter(field, OpEq, value)
}

func (b *DeleteBuilder) Build() (string, []any) {
	var sb strings.Builder
	sb.WriteString("DELETE FROM ")
	sb.WriteString(b.table)
	args := writeWhere(&sb, b.filters)
	return sb.String(), args
}

func writeWhere(sb *strings.Builder, filters []*Filter) []any {
	if len(filters) == 0 {
		return nil
	}
	var args []any
	conditions := make([]string, 0, len(filters))
	for _, f := range filters {
		conditions = append(conditions, fmt.Sprintf("%s %s ?", f.Field, f.Op.sql()))
		args = append(args, f.Value)
	}
	sb.WriteString(" WHERE ")
	sb.WriteString(strings.Join(conditions, " AND "))
	return args
}

func (op FilterOp) sql() string {
	switch op {
	case OpGte:
		return ">="
	case OpLt:
		return "<"
	default:
		return "="
	}
}
