package sqlengine

import "github.com/coledb/coledb/internal/mvcc"

// Engine opens sqlengine Transactions over a shared mvcc.MVCC instance
// (spec §4.4, mirroring mvcc.MVCC's Begin/Resume at the SQL layer).
type Engine struct {
	mvcc *mvcc.MVCC
}

func NewEngine(m *mvcc.MVCC) *Engine {
	return &Engine{mvcc: m}
}

// Begin opens a new SQL transaction in the given mode.
func (e *Engine) Begin(mode mvcc.Mode) (*Transaction, error) {
	txn, err := e.mvcc.Begin(mode)
	if err != nil {
		return nil, err
	}
	return NewTransaction(txn), nil
}

// Resume reattaches to a still-active transaction by id.
func (e *Engine) Resume(id uint64) (*Transaction, error) {
	txn, err := e.mvcc.Resume(id)
	if err != nil {
		return nil, err
	}
	return NewTransaction(txn), nil
}

// Status reports engine-wide counters (spec §4.3/§6 Status).
func (e *Engine) Status() (mvcc.Status, error) {
	return e.mvcc.GetStatus()
}
