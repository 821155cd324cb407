package executor

import (
	"fmt"

	"github.com/coledb/coledb/internal/plan"
	"github.com/coledb/coledb/internal/sqlengine"
	"github.com/coledb/coledb/internal/value"
)

// Grounded on original_source/src/sql/execution/aggregation.rs's
// Accumulator trait and its Count/Sum/Average/Max/Min implementations,
// ported directly -- but the Aggregation executor's own execute method
// is left as `todo!()` in the source, so its row-grouping loop is
// original, written from the algorithm spec §4.9 describes: split each
// input row into (aggregated_inputs, group_key) at index
// len(Aggregates), upsert a per-group-key accumulator set, and at the
// end emit one row per group (aggregate results first, then the group
// key), with an empty input and no GROUP BY still producing a single
// all-default row.
//
// Dropped: Max/Min's `None => *max = Value::Null` fallback on an
// incomparable pair. value.Compare is a total order over every Kind
// combination (Null first, then numeric widening, then Kind order), so
// that branch can never actually run; reproducing it would just be
// dead code.

type accumulator interface {
	accumulate(v value.Value)
	result() value.Value
}

func newAccumulator(kind plan.Aggregate) accumulator {
	switch kind {
	case plan.AggregateSum:
		return &sumAcc{}
	case plan.AggregateAverage:
		return &averageAcc{}
	case plan.AggregateCount:
		return &countAcc{}
	case plan.AggregateMax:
		return &extremeAcc{max: true}
	case plan.AggregateMin:
		return &extremeAcc{max: false}
	default:
		return &countAcc{}
	}
}

type countAcc struct{ count int64 }

func (a *countAcc) accumulate(v value.Value) {
	if !v.IsNull() {
		a.count++
	}
}
func (a *countAcc) result() value.Value { return value.Integer(a.count) }

type sumAcc struct {
	sum value.Value
	set bool
}

func (a *sumAcc) accumulate(v value.Value) {
	switch {
	case !a.set:
		switch v.Kind {
		case value.KindInteger, value.KindFloat:
			a.sum = v
		default:
			a.sum = value.Null()
		}
		a.set = true
	case a.sum.Kind == value.KindInteger && v.Kind == value.KindInteger:
		a.sum = value.Integer(a.sum.I + v.I)
	case a.sum.Kind == value.KindFloat && v.Kind == value.KindFloat:
		a.sum = value.Float(a.sum.F + v.F)
	default:
		a.sum = value.Null()
	}
}
func (a *sumAcc) result() value.Value {
	if !a.set {
		return value.Null()
	}
	return a.sum
}

type averageAcc struct {
	count countAcc
	sum   sumAcc
}

func (a *averageAcc) accumulate(v value.Value) {
	a.count.accumulate(v)
	a.sum.accumulate(v)
}
func (a *averageAcc) result() value.Value {
	sum, count := a.sum.result(), a.count.result()
	switch {
	case sum.Kind == value.KindInteger && count.I != 0:
		return value.Integer(sum.I / count.I)
	case sum.Kind == value.KindFloat && count.I != 0:
		return value.Float(sum.F / float64(count.I))
	default:
		return value.Null()
	}
}

// extremeAcc implements both Max (max=true) and Min (max=false): first
// value seen wins ties, a value of a different Datatype than the
// running extreme is skipped rather than compared.
type extremeAcc struct {
	max     bool
	current value.Value
	set     bool
}

func (a *extremeAcc) accumulate(v value.Value) {
	if !a.set {
		a.current = v
		a.set = true
		return
	}
	ct, cok := a.current.Datatype()
	vt, vok := v.Datatype()
	if cok != vok || ct != vt {
		return
	}
	c := value.Compare(v, a.current)
	if (a.max && c > 0) || (!a.max && c < 0) {
		a.current = v
	}
}
func (a *extremeAcc) result() value.Value {
	if !a.set {
		return value.Null()
	}
	return a.current
}

func execAggregation(n *plan.Aggregation, txn *sqlengine.Transaction) (ResultSet, error) {
	src, err := executeQuery(n.Source, txn)
	if err != nil {
		return ResultSet{}, err
	}

	numAgg := len(n.Aggregates)
	type group struct {
		key  []value.Value
		accs []accumulator
	}
	order := make([]any, 0)
	groups := make(map[any]*group)

	for _, row := range src.Rows {
		inputs := make([]value.Value, len(n.Inputs))
		for i, e := range n.Inputs {
			v, err := e.Evaluate(row)
			if err != nil {
				return ResultSet{}, err
			}
			inputs[i] = v
		}
		key := inputs[numAgg:]
		hashKey := groupHashKey(key)
		g, ok := groups[hashKey]
		if !ok {
			accs := make([]accumulator, numAgg)
			for i, kind := range n.Aggregates {
				accs[i] = newAccumulator(kind)
			}
			g = &group{key: key, accs: accs}
			groups[hashKey] = g
			order = append(order, hashKey)
		}
		for i := 0; i < numAgg; i++ {
			g.accs[i].accumulate(inputs[i])
		}
	}

	if len(order) == 0 && n.GroupCount == 0 {
		accs := make([]accumulator, numAgg)
		for i, kind := range n.Aggregates {
			accs[i] = newAccumulator(kind)
		}
		order = append(order, nil)
		groups[nil] = &group{accs: accs}
	}

	rows := make([]Row, 0, len(order))
	for _, hashKey := range order {
		g := groups[hashKey]
		row := make(Row, 0, numAgg+n.GroupCount)
		for _, acc := range g.accs {
			row = append(row, acc.result())
		}
		row = append(row, g.key...)
		rows = append(rows, row)
	}
	return ResultSet{Kind: ResultQuery, Rows: rows}, nil
}

// groupHashKey turns a group-by key tuple into a comparable Go value
// suitable as a map key, built from each value's own HashKey so two
// keys that are IdenticalEqual group together.
func groupHashKey(key []value.Value) any {
	parts := make([]any, len(key))
	for i, v := range key {
		parts[i] = v.HashKey()
	}
	return fmt.Sprint(parts)
}
