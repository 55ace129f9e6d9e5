package mcp

import (
	"context"
	"encoding/json"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

// echoScript answers every request line with a result carrying the request id
// back, so id correlation can be verified end to end.
const echoScript = `while read line; do
  id=$(printf '%s' "$line" | sed -n 's/.*"id":"\([^"]*\)".*/\1/p')
  printf '{"jsonrpc":"2.0","id":"%s","result":{"ok":true,"env":"%s"}}\n' "$id" "$TEST_CUSTOM_VAR"
done`

const errorScript = `while read line; do
  id=$(printf '%s' "$line" | sed -n 's/.*"id":"\([^"]*\)".*/\1/p')
  printf '{"jsonrpc":"2.0","id":"%s","error":{"code":-32601,"message":"nope"}}\n' "$id"
done`

func requireUnix(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("stdio tests need /bin/sh")
	}
}

func newShellUpstream(t *testing.T, script string, env map[string]string, timeoutSec int) *StdioClient {
	t.Helper()
	cfg := &UpstreamConfig{
		Name:       "shell",
		Transport:  TransportStdio,
		Command:    "/bin/sh",
		Args:       []string{"-c", script},
		Env:        env,
		TimeoutSec: timeoutSec,
	}
	c, err := NewStdioClient(cfg, testLogger(t))
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestStdioCallCorrelation(t *testing.T) {
	requireUnix(t)
	c := newShellUpstream(t, echoScript, nil, 5)

	for i := 0; i < 3; i++ {
		result, rpcErr, err := c.Call(context.Background(), "ping", nil)
		require.NoError(t, err)
		require.Nil(t, rpcErr)
		assert.True(t, gjson.GetBytes(result, "ok").Bool())
	}
}

func TestStdioEnvOverlay(t *testing.T) {
	requireUnix(t)
	c := newShellUpstream(t, echoScript, map[string]string{"TEST_CUSTOM_VAR": "custom_value"}, 5)

	result, rpcErr, err := c.Call(context.Background(), "tools/list", nil)
	require.NoError(t, err)
	require.Nil(t, rpcErr)
	assert.Equal(t, "custom_value", gjson.GetBytes(result, "env").String())
}

func TestStdioUpstreamRPCError(t *testing.T) {
	requireUnix(t)
	c := newShellUpstream(t, errorScript, nil, 5)

	result, rpcErr, err := c.Call(context.Background(), "tools/call", json.RawMessage(`{"name":"x"}`))
	require.NoError(t, err)
	require.NotNil(t, rpcErr)
	assert.Equal(t, CodeMethodNotFound, rpcErr.Code)
	assert.Equal(t, "nope", rpcErr.Message)
	assert.Nil(t, result)
}

func TestStdioSuppressedStderr(t *testing.T) {
	requireUnix(t)
	off := false
	cfg := &UpstreamConfig{
		Name:          "quiet",
		Transport:     TransportStdio,
		Command:       "/bin/sh",
		Args:          []string{"-c", "echo noise >&2; " + echoScript},
		TimeoutSec:    5,
		InheritStderr: &off,
	}
	c, err := NewStdioClient(cfg, testLogger(t))
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })

	result, rpcErr, err := c.Call(context.Background(), "ping", nil)
	require.NoError(t, err)
	require.Nil(t, rpcErr)
	assert.True(t, gjson.GetBytes(result, "ok").Bool())
}

func TestStdioCallTimeout(t *testing.T) {
	requireUnix(t)
	// child swallows requests and never answers
	c := newShellUpstream(t, "cat > /dev/null", nil, 1)

	start := time.Now()
	_, _, err := c.Call(context.Background(), "ping", nil)
	require.Error(t, err)
	assert.Less(t, time.Since(start), 5*time.Second)
	assert.Contains(t, err.Error(), "timed out")
}

func TestStdioCallCancelled(t *testing.T) {
	requireUnix(t)
	c := newShellUpstream(t, "cat > /dev/null", nil, 30)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	_, _, err := c.Call(ctx, "ping", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestStdioChildExitFailsCalls(t *testing.T) {
	requireUnix(t)
	c := newShellUpstream(t, "exit 0", nil, 5)

	require.Eventually(t, func() bool { return !c.Available() },
		3*time.Second, 20*time.Millisecond)

	_, _, err := c.Call(context.Background(), "ping", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not running")
}

func TestStdioClose(t *testing.T) {
	requireUnix(t)
	c := newShellUpstream(t, echoScript, nil, 5)
	require.True(t, c.Available())

	require.NoError(t, c.Close())
	assert.False(t, c.Available())

	_, _, err := c.Call(context.Background(), "ping", nil)
	require.Error(t, err)
}
