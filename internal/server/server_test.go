package server

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/coledb/coledb/internal/mvcc"
	"github.com/coledb/coledb/internal/proto"
	"github.com/coledb/coledb/internal/store"
	"github.com/stretchr/testify/require"
)

func startServer(t *testing.T) (*mvcc.MVCC, net.Conn) {
	t.Helper()
	engine := mvcc.New(store.NewBTreeStore())
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	s := New(engine, ln.Addr().String())
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = s.Serve(ctx, ln)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	conn, err := net.DialTimeout("tcp", ln.Addr().String(), 2*time.Second)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	conn.SetDeadline(time.Now().Add(5 * time.Second))
	return engine, conn
}

func roundTrip(t *testing.T, conn net.Conn, req proto.Request) proto.Response {
	t.Helper()
	require.NoError(t, proto.WriteRequest(conn, req))
	resp, err := proto.ReadResponse(conn)
	require.NoError(t, err)
	return resp
}

func TestServerExecuteCreateAndInsert(t *testing.T) {
	_, conn := startServer(t)

	resp := roundTrip(t, conn, proto.Request{Kind: proto.RequestExecute, SQL: "CREATE TABLE widgets (id INTEGER PRIMARY KEY);"})
	require.Nil(t, resp.Err())

	resp = roundTrip(t, conn, proto.Request{Kind: proto.RequestExecute, SQL: "INSERT INTO widgets (id) VALUES (1);"})
	require.Nil(t, resp.Err())
	require.Equal(t, uint64(1), resp.Result.Count)
}

func TestServerGetTableAfterCreate(t *testing.T) {
	_, conn := startServer(t)

	resp := roundTrip(t, conn, proto.Request{Kind: proto.RequestExecute, SQL: "CREATE TABLE widgets (id INTEGER PRIMARY KEY);"})
	require.Nil(t, resp.Err())

	resp = roundTrip(t, conn, proto.Request{Kind: proto.RequestGetTable, Table: "widgets"})
	require.Nil(t, resp.Err())
	require.Equal(t, "widgets", resp.Table.Name)
}

func TestServerListTablesAcrossConnections(t *testing.T) {
	engine, conn1 := startServer(t)
	_ = engine

	resp := roundTrip(t, conn1, proto.Request{Kind: proto.RequestExecute, SQL: "CREATE TABLE a (id INTEGER PRIMARY KEY);"})
	require.Nil(t, resp.Err())
	resp = roundTrip(t, conn1, proto.Request{Kind: proto.RequestExecute, SQL: "CREATE TABLE b (id INTEGER PRIMARY KEY);"})
	require.Nil(t, resp.Err())

	resp = roundTrip(t, conn1, proto.Request{Kind: proto.RequestListTables})
	require.Nil(t, resp.Err())
	require.ElementsMatch(t, []string{"a", "b"}, resp.Tables)
}

func TestServerGetTableMissingReturnsErrorResponse(t *testing.T) {
	_, conn := startServer(t)

	resp := roundTrip(t, conn, proto.Request{Kind: proto.RequestGetTable, Table: "nope"})
	require.Equal(t, proto.ResponseError, resp.Kind)
	require.Error(t, resp.Err())
}

func TestServerStatusReturnsStatusResponse(t *testing.T) {
	_, conn := startServer(t)

	resp := roundTrip(t, conn, proto.Request{Kind: proto.RequestStatus})
	require.Nil(t, resp.Err())
	require.Equal(t, proto.ResponseStatus, resp.Kind)
}

func TestServerExplicitTransactionSpansRequestsOnOneConnection(t *testing.T) {
	_, conn := startServer(t)

	resp := roundTrip(t, conn, proto.Request{Kind: proto.RequestExecute, SQL: "BEGIN;"})
	require.Nil(t, resp.Err())
	txnID := resp.Result.TxnID
	require.NotZero(t, txnID)

	resp = roundTrip(t, conn, proto.Request{Kind: proto.RequestExecute, SQL: "CREATE TABLE t (id INTEGER PRIMARY KEY);"})
	require.Nil(t, resp.Err())

	// GetTable on the same connection, before commit, must see the
	// table created earlier in this still-open transaction.
	resp = roundTrip(t, conn, proto.Request{Kind: proto.RequestGetTable, Table: "t"})
	require.Nil(t, resp.Err())
	require.Equal(t, "t", resp.Table.Name)

	resp = roundTrip(t, conn, proto.Request{Kind: proto.RequestExecute, SQL: "COMMIT;"})
	require.Nil(t, resp.Err())
	require.Equal(t, txnID, resp.Result.TxnID)
}

func TestServerTwoConnectionsShareCommittedState(t *testing.T) {
	engine, conn1 := startServer(t)

	resp := roundTrip(t, conn1, proto.Request{Kind: proto.RequestExecute, SQL: "CREATE TABLE shared (id INTEGER PRIMARY KEY);"})
	require.Nil(t, resp.Err())

	conn2, err := net.DialTimeout("tcp", conn1.RemoteAddr().String(), 2*time.Second)
	require.NoError(t, err)
	defer conn2.Close()
	conn2.SetDeadline(time.Now().Add(5 * time.Second))

	resp = roundTrip(t, conn2, proto.Request{Kind: proto.RequestGetTable, Table: "shared"})
	require.Nil(t, resp.Err())
	require.Equal(t, "shared", resp.Table.Name)
	_ = engine
}
