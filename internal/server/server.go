// Package server accepts client connections and serves each one with
// its own session, per spec §5/§6.
//
// Grounded on original_source/src/server.rs's Server/Session structs:
// Server.server() binds the listener and hands every accepted
// connection to handle_sql_request, and Session.serve() loops
// reading a Request, dispatching it, and writing back a Response
// until the connection closes. tokio::spawn's per-connection task is
// ported as a goroutine under an errgroup.Group rather than left
// unsupervised, following solidcoredata-dca's internal/start.RunAll
// (errgroup.WithContext + group.Go per worker).
package server

import (
	"context"
	"errors"
	"io"
	"net"

	"github.com/coledb/coledb/internal/dberrors"
	"github.com/coledb/coledb/internal/mvcc"
	"github.com/coledb/coledb/internal/proto"
	"github.com/coledb/coledb/internal/session"
	"github.com/coledb/coledb/internal/sqlengine"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// Server listens for client connections and dispatches every request
// it reads against one *mvcc.MVCC shared by all sessions (spec §5).
type Server struct {
	engine *mvcc.MVCC
	addr   string
}

// New returns a Server that will listen on addr once ListenAndServe
// runs, backed by engine.
func New(engine *mvcc.MVCC, addr string) *Server {
	return &Server{engine: engine, addr: addr}
}

// ListenAndServe binds addr and serves connections until ctx is
// canceled or a fatal accept error occurs. Each connection is served
// by its own goroutine under an errgroup.Group; a handler error closes
// only that connection, never the listener.
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return dberrors.New(dberrors.IO, "listen on %s: %v", s.addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve runs the accept loop against an already-bound listener. Tests
// use this directly with a "127.0.0.1:0" listener to discover the
// assigned port; ListenAndServe is the production entrypoint.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	defer ln.Close()
	logrus.Infof("coledb listening on %s", ln.Addr())

	group, gctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		<-gctx.Done()
		return ln.Close()
	})
	group.Go(func() error {
		for {
			conn, err := ln.Accept()
			if err != nil {
				if gctx.Err() != nil {
					return nil
				}
				return dberrors.New(dberrors.IO, "accept: %v", err)
			}
			logrus.Debugf("accepted connection from %s", conn.RemoteAddr())
			group.Go(func() error {
				if err := s.serveConn(gctx, conn); err != nil {
					logrus.Errorf("connection %s: %v", conn.RemoteAddr(), err)
				}
				return nil
			})
		}
	})
	return group.Wait()
}

// serveConn owns one session for the lifetime of conn: it reads one
// Request at a time, dispatches it, and writes back the matching
// Response, until the peer disconnects or a framing error occurs.
func (s *Server) serveConn(ctx context.Context, conn net.Conn) error {
	defer conn.Close()
	sess := session.New(s.engine)

	for {
		if ctx.Err() != nil {
			return nil
		}
		req, err := proto.ReadRequest(conn)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
		resp := s.handleRequest(sess, req)
		if err := proto.WriteResponse(conn, resp); err != nil {
			return err
		}
		// An Internal error reflects a broken invariant rather than a
		// bad statement; the client already has the error response, so
		// closing here (rather than leaving a session that may be in
		// an inconsistent state) is the fail-fast choice spec §7 calls
		// for (only Internal is fatal to the session -- Parse/Schema/
		// Evaluate/... errors leave the connection and any open
		// transaction exactly as they were).
		if resp.Kind == proto.ResponseError && resp.ErrKind == dberrors.Internal {
			return resp.Err()
		}
	}
}

func (s *Server) handleRequest(sess *session.Session, req proto.Request) proto.Response {
	switch req.Kind {
	case proto.RequestExecute:
		result, err := sess.Execute(req.SQL)
		if err != nil {
			return proto.ErrorResponse(err)
		}
		return proto.Response{Kind: proto.ResponseExecute, Result: result}

	case proto.RequestGetTable:
		table, err := session.WithTxn(sess, mvcc.ReadOnly(), func(txn *sqlengine.Transaction) (sqlengine.Table, error) {
			return txn.MustReadTable(req.Table)
		})
		if err != nil {
			return proto.ErrorResponse(err)
		}
		return proto.Response{Kind: proto.ResponseGetTable, Table: table}

	case proto.RequestListTables:
		tables, err := session.WithTxn(sess, mvcc.ReadOnly(), func(txn *sqlengine.Transaction) ([]string, error) {
			defs, err := txn.ScanTables()
			if err != nil {
				return nil, err
			}
			names := make([]string, len(defs))
			for i, d := range defs {
				names[i] = d.Name
			}
			return names, nil
		})
		if err != nil {
			return proto.ErrorResponse(err)
		}
		return proto.Response{Kind: proto.ResponseListTables, Tables: tables}

	case proto.RequestStatus:
		status, err := s.engine.GetStatus()
		if err != nil {
			return proto.ErrorResponse(err)
		}
		return proto.Response{Kind: proto.ResponseStatus, Status: status}

	default:
		return proto.ErrorResponse(dberrors.New(dberrors.Executor, "unknown request kind %d", req.Kind))
	}
}
