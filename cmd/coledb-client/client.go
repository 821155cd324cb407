package main

import (
	"fmt"
	"net"
	"sync"

	"github.com/coledb/coledb/internal/dberrors"
	"github.com/coledb/coledb/internal/executor"
	"github.com/coledb/coledb/internal/mvcc"
	"github.com/coledb/coledb/internal/proto"
	"github.com/coledb/coledb/internal/sqlengine"
)

// Client is a single connection to a coledb-server, tracking the
// client-visible transaction state the way client.rs's Client does
// with its Cell<Option<(u64, Mode)>>.
//
// Grounded on original_source/src/client.rs: Client.call serializes
// access to one connection under a mutex (there a tokio::sync::Mutex
// guarding the framed stream; here a sync.Mutex guarding conn, since
// this CLI only ever issues one request at a time anyway).
type Client struct {
	mu   sync.Mutex
	conn net.Conn
	txn  *openTxn
}

type openTxn struct {
	id   uint64
	mode mvcc.Mode
}

// Dial connects to addr and returns a ready Client.
func Dial(addr string) (*Client, error) {
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		return nil, dberrors.New(dberrors.IO, "connect to %s: %v", addr, err)
	}
	return &Client{conn: conn}, nil
}

func (c *Client) Close() error { return c.conn.Close() }

func (c *Client) call(req proto.Request) (proto.Response, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := proto.WriteRequest(c.conn, req); err != nil {
		return proto.Response{}, err
	}
	resp, err := proto.ReadResponse(c.conn)
	if err != nil {
		return proto.Response{}, dberrors.New(dberrors.IO, "server disconnected: %v", err)
	}
	return resp, nil
}

// Execute runs one SQL statement and tracks whether it opened, closed,
// or left untouched the connection's transaction.
func (c *Client) Execute(sql string) (executor.ResultSet, error) {
	resp, err := c.call(proto.Request{Kind: proto.RequestExecute, SQL: sql})
	if err != nil {
		return executor.ResultSet{}, err
	}
	if resp.Kind == proto.ResponseError {
		return executor.ResultSet{}, resp.Err()
	}

	switch resp.Result.Kind {
	case executor.ResultBegin:
		c.txn = &openTxn{id: resp.Result.TxnID, mode: resp.Result.Mode}
	case executor.ResultCommit, executor.ResultRollback:
		c.txn = nil
	}
	return resp.Result, nil
}

// Txn reports the connection's currently open transaction, if any.
func (c *Client) Txn() (id uint64, mode mvcc.Mode, ok bool) {
	if c.txn == nil {
		return 0, mvcc.Mode{}, false
	}
	return c.txn.id, c.txn.mode, true
}

func (c *Client) GetTable(name string) (sqlengine.Table, error) {
	resp, err := c.call(proto.Request{Kind: proto.RequestGetTable, Table: name})
	if err != nil {
		return sqlengine.Table{}, err
	}
	if resp.Kind == proto.ResponseError {
		return sqlengine.Table{}, resp.Err()
	}
	return resp.Table, nil
}

func (c *Client) ListTables() ([]string, error) {
	resp, err := c.call(proto.Request{Kind: proto.RequestListTables})
	if err != nil {
		return nil, err
	}
	if resp.Kind == proto.ResponseError {
		return nil, resp.Err()
	}
	return resp.Tables, nil
}

func (c *Client) Status() (mvcc.Status, error) {
	resp, err := c.call(proto.Request{Kind: proto.RequestStatus})
	if err != nil {
		return mvcc.Status{}, err
	}
	if resp.Kind == proto.ResponseError {
		return mvcc.Status{}, resp.Err()
	}
	return resp.Status, nil
}

// Prompt renders the REPL's prompt, showing the open transaction's id
// the way dbcli.rs's Cli::get_prompt does.
func (c *Client) Prompt() string {
	if id, _, ok := c.Txn(); ok {
		return fmt.Sprintf("coledb:%d> ", id)
	}
	return "coledb> "
}
