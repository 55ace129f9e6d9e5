package mcp

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/Laisky/errors/v2"
	glog "github.com/Laisky/go-utils/v5/log"
	"github.com/Laisky/zap"

	"github.com/didgateway/llm-gateway/common/config"
	"github.com/didgateway/llm-gateway/common/random"
)

// stdioScanBuffer sizes the reader for large tool results.
const stdioScanBuffer = 4 * 1024 * 1024

// StdioClient runs an MCP server as a child process and exchanges
// newline-delimited JSON-RPC over its stdin/stdout. Responses are correlated
// by id; the child may answer out of order.
type StdioClient struct {
	cfg    *UpstreamConfig
	logger glog.Logger

	mu      sync.Mutex
	cmd     *exec.Cmd
	stdin   io.WriteCloser
	pending map[string]chan *Response
	running bool
	closed  bool
}

// NewStdioClient builds the client and starts the child process.
func NewStdioClient(cfg *UpstreamConfig, logger glog.Logger) (*StdioClient, error) {
	c := &StdioClient{
		cfg:     cfg,
		logger:  logger,
		pending: map[string]chan *Response{},
	}
	if err := c.start(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *StdioClient) Name() string { return c.cfg.Name }

// Available reports whether the child process is running.
func (c *StdioClient) Available() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running
}

// start launches the child with the parent environment plus the configured
// overlay, wires the pipes, and begins the reader loop.
func (c *StdioClient) start() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return errors.New("stdio upstream closed")
	}

	cmd := exec.Command(c.cfg.Command, c.cfg.Args...)
	cmd.Dir = c.cfg.Dir
	cmd.Env = os.Environ()
	for k, v := range c.cfg.Env {
		cmd.Env = append(cmd.Env, k+"="+v)
	}
	if c.cfg.InheritStderr == nil || *c.cfg.InheritStderr {
		cmd.Stderr = os.Stderr
	}

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return errors.Wrap(err, "open stdin pipe")
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return errors.Wrap(err, "open stdout pipe")
	}
	if err := cmd.Start(); err != nil {
		return errors.Wrapf(err, "start mcp upstream %s", c.cfg.Name)
	}

	c.cmd = cmd
	c.stdin = stdin
	c.running = true
	c.logger.Info("mcp stdio upstream started",
		zap.String("upstream", c.cfg.Name),
		zap.String("command", c.cfg.Command),
		zap.Int("pid", cmd.Process.Pid))

	go c.readLoop(stdout)
	go c.waitLoop(cmd)
	return nil
}

// readLoop decodes response lines and delivers them to their waiters.
func (c *StdioClient) readLoop(stdout io.Reader) {
	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 64*1024), stdioScanBuffer)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var resp Response
		if err := json.Unmarshal(line, &resp); err != nil {
			c.logger.Warn("mcp stdio upstream emitted invalid json",
				zap.String("upstream", c.cfg.Name), zap.Error(err))
			continue
		}
		if len(resp.Id) == 0 {
			// server-initiated notification, nothing to correlate
			continue
		}

		c.mu.Lock()
		ch, ok := c.pending[string(resp.Id)]
		if ok {
			delete(c.pending, string(resp.Id))
		}
		c.mu.Unlock()
		if ok {
			ch <- &resp
		}
	}
}

// waitLoop reaps the child and applies the restart policy. Pending calls fail
// immediately; restarted children serve only new calls.
func (c *StdioClient) waitLoop(cmd *exec.Cmd) {
	err := cmd.Wait()

	c.mu.Lock()
	if c.cmd != cmd {
		c.mu.Unlock()
		return
	}
	c.running = false
	for id, ch := range c.pending {
		close(ch)
		delete(c.pending, id)
	}
	closed := c.closed
	c.mu.Unlock()

	crashed := err != nil
	c.logger.Warn("mcp stdio upstream exited",
		zap.String("upstream", c.cfg.Name),
		zap.Bool("crashed", crashed),
		zap.Error(err))

	if closed {
		return
	}
	switch c.cfg.Restart {
	case RestartOnExit:
	case RestartOnCrash:
		if !crashed {
			return
		}
	default:
		return
	}

	time.Sleep(time.Second)
	if startErr := c.start(); startErr != nil {
		c.logger.Error("mcp stdio upstream restart failed",
			zap.String("upstream", c.cfg.Name), zap.Error(startErr))
	}
}

// Call writes one request line and waits for the matching response.
func (c *StdioClient) Call(ctx context.Context, method string, params json.RawMessage) (json.RawMessage, *RPCError, error) {
	id := json.RawMessage(`"` + random.GetUUID() + `"`)
	request := Request{Jsonrpc: "2.0", Id: id, Method: method, Params: params}
	line, err := json.Marshal(request)
	if err != nil {
		return nil, nil, errors.Wrap(err, "marshal mcp request")
	}
	line = append(line, '\n')

	ch := make(chan *Response, 1)
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return nil, nil, errors.Errorf("mcp upstream %s is not running", c.cfg.Name)
	}
	c.pending[string(id)] = ch
	_, err = c.stdin.Write(line)
	c.mu.Unlock()
	if err != nil {
		c.mu.Lock()
		delete(c.pending, string(id))
		c.mu.Unlock()
		return nil, nil, errors.Wrap(err, "write to mcp upstream")
	}

	timeout := defaultCallTimeout
	if c.cfg.TimeoutSec > 0 {
		timeout = time.Duration(c.cfg.TimeoutSec) * time.Second
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case resp, ok := <-ch:
		if !ok {
			return nil, nil, errors.Errorf("mcp upstream %s exited mid-call", c.cfg.Name)
		}
		if resp.Error != nil {
			return nil, resp.Error, nil
		}
		return resp.Result, nil, nil
	case <-timer.C:
		c.mu.Lock()
		delete(c.pending, string(id))
		c.mu.Unlock()
		return nil, nil, errors.Errorf("mcp upstream %s call timed out", c.cfg.Name)
	case <-ctx.Done():
		c.mu.Lock()
		delete(c.pending, string(id))
		c.mu.Unlock()
		return nil, nil, errors.Wrap(ctx.Err(), "mcp call cancelled")
	}
}

// Close asks the child to exit, waits for the bounded close window, then
// kills it.
func (c *StdioClient) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	cmd := c.cmd
	stdin := c.stdin
	running := c.running
	c.mu.Unlock()

	if !running || cmd == nil || cmd.Process == nil {
		return nil
	}

	// polite exit notification first
	exitNote, _ := json.Marshal(Request{Jsonrpc: "2.0", Method: "exit"})
	_, _ = stdin.Write(append(exitNote, '\n'))
	_ = stdin.Close()

	done := make(chan struct{})
	go func() {
		for {
			c.mu.Lock()
			stopped := !c.running
			c.mu.Unlock()
			if stopped {
				close(done)
				return
			}
			time.Sleep(50 * time.Millisecond)
		}
	}()

	select {
	case <-done:
		return nil
	case <-time.After(time.Duration(config.MCPCloseTimeout) * time.Second):
		c.logger.Warn("mcp stdio upstream did not exit, killing",
			zap.String("upstream", c.cfg.Name))
		return errors.Wrap(cmd.Process.Kill(), "kill mcp upstream")
	}
}
