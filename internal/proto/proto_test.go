package proto

import (
	"bytes"
	"net"
	"testing"
	"time"

	"github.com/coledb/coledb/internal/dberrors"
	"github.com/coledb/coledb/internal/executor"
	"github.com/coledb/coledb/internal/expr"
	"github.com/coledb/coledb/internal/plan"
	"github.com/coledb/coledb/internal/value"
	"github.com/stretchr/testify/require"
)

func TestRequestRoundTripsThroughBuffer(t *testing.T) {
	var buf bytes.Buffer
	want := Request{Kind: RequestExecute, SQL: "SELECT 1"}
	require.NoError(t, WriteRequest(&buf, want))

	got, err := ReadRequest(&buf)
	require.NoError(t, err)
	require.Equal(t, want, got)
}

func TestResponseRoundTripsOverNetPipe(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	want := Response{
		Kind: ResponseExecute,
		Result: executor.ResultSet{
			Kind:    executor.ResultQuery,
			Columns: []*string{strPtr("id")},
			Rows:    []executor.Row{{value.Integer(1)}},
		},
	}

	errCh := make(chan error, 1)
	go func() { errCh <- WriteResponse(server, want) }()

	client.SetReadDeadline(time.Now().Add(2 * time.Second))
	got, err := ReadResponse(client)
	require.NoError(t, err)
	require.NoError(t, <-errCh)

	require.Equal(t, want.Kind, got.Kind)
	require.Equal(t, want.Result.Kind, got.Result.Kind)
	require.Equal(t, *want.Result.Columns[0], *got.Result.Columns[0])
	require.Equal(t, want.Result.Rows, got.Result.Rows)
}

func TestResponseRoundTripsExplainPlan(t *testing.T) {
	var buf bytes.Buffer
	node := &plan.Filter{
		Source:    &plan.Scan{Table: "accounts"},
		Predicate: expr.Equal(&expr.Field{Index: 0}, &expr.Constant{Value: value.Integer(1)}),
	}
	want := Response{Kind: ResponseExecute, Result: executor.ResultSet{Kind: executor.ResultExplain, Plan: node}}
	require.NoError(t, WriteResponse(&buf, want))

	got, err := ReadResponse(&buf)
	require.NoError(t, err)
	require.Equal(t, node.String(), got.Result.Plan.String())
}

func TestErrorResponseRoundTripsKindAndMessage(t *testing.T) {
	var buf bytes.Buffer
	original := dberrors.New(dberrors.Executor, "no transaction to commit")
	require.NoError(t, WriteResponse(&buf, ErrorResponse(original)))

	got, err := ReadResponse(&buf)
	require.NoError(t, err)
	require.Equal(t, ResponseError, got.Kind)

	reconstructed := got.Err()
	require.Error(t, reconstructed)
	require.Equal(t, original.Error(), reconstructed.Error())
}

func strPtr(s string) *string { return &s }
