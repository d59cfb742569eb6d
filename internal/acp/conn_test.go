package acp

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opencode-ai/acpthread/pkg/types"
)

// pipeAgent is the far side of an rpcConn for tests: it reads frames
// the client writes and can inject frames for the client to read.
type pipeAgent struct {
	t        *testing.T
	toConn   *io.PipeWriter
	fromConn *bufio.Scanner
}

func newConnPair(t *testing.T, handler inboundHandler) (*rpcConn, *pipeAgent) {
	t.Helper()
	agentOut, connIn := io.Pipe()   // agent -> conn
	connOut, agentIn := io.Pipe()   // conn -> agent

	conn := newRPCConn(agentOut, agentIn, handler, zerolog.Nop())
	go conn.readLoop()
	t.Cleanup(func() {
		conn.close()
		connIn.Close()
		connOut.Close()
	})

	return conn, &pipeAgent{
		t:        t,
		toConn:   connIn,
		fromConn: bufio.NewScanner(connOut),
	}
}

func (a *pipeAgent) read() rpcMessage {
	a.t.Helper()
	require.True(a.t, a.fromConn.Scan(), "expected a frame from the client")
	var msg rpcMessage
	require.NoError(a.t, json.Unmarshal(a.fromConn.Bytes(), &msg))
	return msg
}

func (a *pipeAgent) write(msg rpcMessage) {
	a.t.Helper()
	msg.JSONRPC = "2.0"
	raw, err := json.Marshal(msg)
	require.NoError(a.t, err)
	_, err = a.toConn.Write(append(raw, '\n'))
	require.NoError(a.t, err)
}

func TestRPCConn_CallRoundTrip(t *testing.T) {
	conn, agent := newConnPair(t, nil)

	type result struct {
		res promptResult
		err error
	}
	done := make(chan result, 1)
	go func() {
		var res promptResult
		err := conn.call(context.Background(), methodSessionPrompt,
			promptParams{SessionID: "s1"}, &res)
		done <- result{res, err}
	}()

	req := agent.read()
	require.NotNil(t, req.ID)
	assert.Equal(t, methodSessionPrompt, req.Method)

	agent.write(rpcMessage{ID: req.ID, Result: json.RawMessage(`{"stopReason":"end_turn"}`)})

	select {
	case r := <-done:
		require.NoError(t, r.err)
		assert.Equal(t, types.StopEndTurn, r.res.StopReason)
	case <-time.After(2 * time.Second):
		t.Fatal("call did not complete")
	}
}

func TestRPCConn_CallError(t *testing.T) {
	conn, agent := newConnPair(t, nil)

	done := make(chan error, 1)
	go func() {
		done <- conn.call(context.Background(), methodSetMode, setModeParams{ModeID: "nope"}, nil)
	}()

	req := agent.read()
	agent.write(rpcMessage{ID: req.ID, Error: &rpcError{Code: codeInternalError, Message: "unknown mode"}})

	select {
	case err := <-done:
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unknown mode")
	case <-time.After(2 * time.Second):
		t.Fatal("call did not complete")
	}
}

func TestRPCConn_CallContextCancelled(t *testing.T) {
	conn, agent := newConnPair(t, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- conn.call(ctx, methodSessionNew, newSessionParams{}, nil)
	}()

	agent.read() // request went out; never answer it
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("call did not unblock on cancel")
	}
}

func TestRPCConn_InboundNotification(t *testing.T) {
	got := make(chan string, 1)
	handler := func(method string, id *int64, params json.RawMessage) (any, error) {
		got <- method
		return nil, nil
	}
	_, agent := newConnPair(t, handler)

	agent.write(rpcMessage{Method: methodSessionUpdate, Params: json.RawMessage(`{"sessionId":"s1"}`)})

	select {
	case method := <-got:
		assert.Equal(t, methodSessionUpdate, method)
	case <-time.After(2 * time.Second):
		t.Fatal("notification never dispatched")
	}
}

func TestRPCConn_InboundRequestReplied(t *testing.T) {
	handler := func(method string, id *int64, params json.RawMessage) (any, error) {
		return permissionResult{Outcome: permissionOutcome{Outcome: "selected", OptionID: "allow"}}, nil
	}
	_, agent := newConnPair(t, handler)

	id := int64(7)
	agent.write(rpcMessage{ID: &id, Method: methodRequestPermission, Params: json.RawMessage(`{}`)})

	reply := agent.read()
	require.NotNil(t, reply.ID)
	assert.Equal(t, id, *reply.ID)
	assert.Contains(t, string(reply.Result), `"allow"`)
}

func TestRPCConn_InboundUnknownMethodErrors(t *testing.T) {
	handler := func(method string, id *int64, params json.RawMessage) (any, error) {
		return nil, &rpcError{Code: codeMethodNotFound, Message: "method not found: " + method}
	}
	_, agent := newConnPair(t, handler)

	id := int64(3)
	agent.write(rpcMessage{ID: &id, Method: "agent/custom"})

	reply := agent.read()
	require.NotNil(t, reply.Error)
	assert.Equal(t, codeMethodNotFound, reply.Error.Code)
}

func TestRPCConn_ReaderClosedFailsPending(t *testing.T) {
	agentOut, connIn := io.Pipe()
	_, agentIn := io.Pipe()
	conn := newRPCConn(agentOut, agentIn, nil, zerolog.Nop())
	go conn.readLoop()

	done := make(chan error, 1)
	go func() {
		done <- conn.call(context.Background(), methodSessionList, nil, nil)
	}()

	// Give the request time to register, then sever the stream.
	time.Sleep(50 * time.Millisecond)
	connIn.Close()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, ErrConnClosed)
	case <-time.After(2 * time.Second):
		t.Fatal("pending call not failed on close")
	}
}

func TestMCPParams(t *testing.T) {
	out := mcpParams([]types.MCPServerConfig{
		{Name: "fs", Command: "mcp-fs", Args: []string{"--root", "."}, Env: map[string]string{"KEY": "v"}},
	})
	require.Len(t, out, 1)
	assert.Equal(t, "fs", out[0].Name)
	assert.Equal(t, []string{"--root", "."}, out[0].Args)
	require.Len(t, out[0].Env, 1)
	assert.Equal(t, envVarParam{Name: "KEY", Value: "v"}, out[0].Env[0])
}
