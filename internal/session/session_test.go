package session

import (
	"testing"

	"github.com/coledb/coledb/internal/executor"
	"github.com/coledb/coledb/internal/mvcc"
	"github.com/coledb/coledb/internal/plan"
	"github.com/coledb/coledb/internal/store"
	"github.com/stretchr/testify/require"
)

func newSession(t *testing.T) *Session {
	t.Helper()
	return New(mvcc.New(store.NewBTreeStore()))
}

func TestSessionImplicitTransactionAutoCommits(t *testing.T) {
	s := newSession(t)
	rs, err := s.Execute("CREATE TABLE accounts (id INTEGER PRIMARY KEY, balance INTEGER);")
	require.NoError(t, err)
	require.Equal(t, executor.ResultCreateTable, rs.Kind)
	require.Zero(t, s.TxnID(), "implicit transaction must not remain open after the statement")

	rs, err = s.Execute("INSERT INTO accounts VALUES (1, 100);")
	require.NoError(t, err)
	require.Equal(t, executor.ResultCreate, rs.Kind)
	require.Equal(t, uint64(1), rs.Count)
}

func TestSessionExplicitTransactionSpansStatements(t *testing.T) {
	s := newSession(t)
	_, err := s.Execute("CREATE TABLE accounts (id INTEGER PRIMARY KEY, balance INTEGER);")
	require.NoError(t, err)

	rs, err := s.Execute("BEGIN;")
	require.NoError(t, err)
	require.Equal(t, executor.ResultBegin, rs.Kind)
	require.NotZero(t, s.TxnID())

	_, err = s.Execute("INSERT INTO accounts VALUES (1, 100);")
	require.NoError(t, err)
	require.NotZero(t, s.TxnID(), "transaction must still be open after a DML statement inside BEGIN")

	rs, err = s.Execute("COMMIT;")
	require.NoError(t, err)
	require.Equal(t, executor.ResultCommit, rs.Kind)
	require.Zero(t, s.TxnID())
}

func TestSessionDoubleBeginErrors(t *testing.T) {
	s := newSession(t)
	_, err := s.Execute("BEGIN;")
	require.NoError(t, err)
	_, err = s.Execute("BEGIN;")
	require.Error(t, err)
}

func TestSessionCommitWithNoTransactionErrors(t *testing.T) {
	s := newSession(t)
	_, err := s.Execute("COMMIT;")
	require.Error(t, err)
}

func TestSessionRollbackWithNoTransactionErrors(t *testing.T) {
	s := newSession(t)
	_, err := s.Execute("ROLLBACK;")
	require.Error(t, err)
}

func TestSessionRollbackDiscardsWrites(t *testing.T) {
	s := newSession(t)
	_, err := s.Execute("CREATE TABLE accounts (id INTEGER PRIMARY KEY, balance INTEGER);")
	require.NoError(t, err)

	_, err = s.Execute("BEGIN;")
	require.NoError(t, err)
	_, err = s.Execute("INSERT INTO accounts VALUES (1, 100);")
	require.NoError(t, err)
	rs, err := s.Execute("ROLLBACK;")
	require.NoError(t, err)
	require.Equal(t, executor.ResultRollback, rs.Kind)

	rs, err = s.Execute("SELECT * FROM accounts;")
	require.NoError(t, err)
	require.Empty(t, rs.Rows)
}

func TestSessionExplainWithoutOpenTransactionDoesNotPanic(t *testing.T) {
	s := newSession(t)
	_, err := s.Execute("CREATE TABLE accounts (id INTEGER PRIMARY KEY, balance INTEGER);")
	require.NoError(t, err)

	rs, err := s.Execute("EXPLAIN SELECT * FROM accounts WHERE id = 1;")
	require.NoError(t, err)
	require.Equal(t, executor.ResultExplain, rs.Kind)
	require.IsType(t, &plan.KeyLookup{}, rs.Plan, "the optimizer should collapse this into a bare KeyLookup")
	require.Zero(t, s.TxnID(), "EXPLAIN must not leave an implicit transaction open")
}

func TestSessionExplainInsideOpenTransactionPreservesIt(t *testing.T) {
	s := newSession(t)
	_, err := s.Execute("CREATE TABLE accounts (id INTEGER PRIMARY KEY, balance INTEGER);")
	require.NoError(t, err)

	_, err = s.Execute("BEGIN;")
	require.NoError(t, err)
	txnBefore := s.TxnID()

	rs, err := s.Execute("EXPLAIN SELECT * FROM accounts;")
	require.NoError(t, err)
	require.Equal(t, executor.ResultExplain, rs.Kind)
	require.Equal(t, txnBefore, s.TxnID(), "EXPLAIN must not consume the session's open transaction")

	_, err = s.Execute("COMMIT;")
	require.NoError(t, err)
}

func TestSessionParseErrorReturnsError(t *testing.T) {
	s := newSession(t)
	_, err := s.Execute("SELEKT * FROM nowhere;")
	require.Error(t, err)
}
