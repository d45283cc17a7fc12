package daemon

import (
	"bufio"
	"context"
	"encoding/json"
	stderrors "errors"
	"net"
	"os"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/petekp/claude-hud-sub008/errors"
	"github.com/petekp/claude-hud-sub008/pkg/models"
)

// DefaultTimeout bounds one round trip when the caller's context has no
// earlier deadline.
const DefaultTimeout = 750 * time.Millisecond

// RemoteClient implements Client over the daemon's line-delimited JSON
// socket. One connection is reused; requests on it are serialized.
type RemoteClient struct {
	socketPath string
	timeout    time.Duration

	mu     sync.Mutex
	conn   net.Conn
	reader *bufio.Reader
	nextID uint64
}

// NewRemoteClient creates a client for the daemon at socketPath. The socket
// is dialed lazily on the first call.
func NewRemoteClient(socketPath string, timeout time.Duration) *RemoteClient {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &RemoteClient{socketPath: socketPath, timeout: timeout}
}

// SocketPath returns the daemon socket the client talks to.
func (c *RemoteClient) SocketPath() string { return c.socketPath }

// Call sends one request and decodes the response data into out.
func (c *RemoteClient) Call(ctx context.Context, method string, params, out interface{}) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	deadline, _ := ctx.Deadline()

	req := models.Request{
		ProtocolVersion: models.ProtocolVersion,
		Method:          method,
		ID:              strconv.FormatUint(atomic.AddUint64(&c.nextID, 1), 10),
	}
	if params != nil {
		raw, err := json.Marshal(params)
		if err != nil {
			return errors.Wrap(err, errors.ErrCodeInvalidInput, "failed to encode params")
		}
		req.Params = raw
	}
	line, err := json.Marshal(req)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeInvalidInput, "failed to encode request")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.connect(ctx); err != nil {
		return err
	}
	// a call abandoned mid-flight leaves the stream unusable
	ok := false
	defer func() {
		if !ok {
			c.closeLocked()
		}
	}()

	if err := c.conn.SetDeadline(deadline); err != nil {
		return errors.DaemonUnavailable(c.socketPath, err)
	}
	if _, err := c.conn.Write(append(line, '\n')); err != nil {
		return c.ioError(method, err)
	}
	respLine, err := c.reader.ReadBytes('\n')
	if err != nil {
		return c.ioError(method, err)
	}

	var resp models.Response
	if err := json.Unmarshal(respLine, &resp); err != nil {
		return errors.Wrap(err, errors.ErrCodeInternal, "malformed daemon response")
	}
	ok = true

	if !resp.OK {
		if resp.Error == nil {
			return errors.New(errors.ErrCodeInternal, "daemon returned an error without a body")
		}
		hudErr := errors.New(errors.ErrorCode(resp.Error.Code), resp.Error.Message)
		for k, v := range resp.Error.Details {
			hudErr = hudErr.WithDetail(k, v)
		}
		return hudErr
	}
	if out == nil || len(resp.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(resp.Data, out); err != nil {
		return errors.Wrap(err, errors.ErrCodeInternal, "failed to decode "+method+" response")
	}
	return nil
}

func (c *RemoteClient) connect(ctx context.Context) error {
	if c.conn != nil {
		return nil
	}
	var d net.Dialer
	conn, err := d.DialContext(ctx, "unix", c.socketPath)
	if err != nil {
		return errors.DaemonUnavailable(c.socketPath, err)
	}
	c.conn = conn
	c.reader = bufio.NewReader(conn)
	return nil
}

func (c *RemoteClient) ioError(method string, err error) error {
	if stderrors.Is(err, os.ErrDeadlineExceeded) {
		return errors.Timeout(method, c.timeout)
	}
	return errors.DaemonUnavailable(c.socketPath, err)
}

func (c *RemoteClient) closeLocked() {
	if c.conn != nil {
		_ = c.conn.Close()
		c.conn = nil
		c.reader = nil
	}
}

func (c *RemoteClient) Send(ctx context.Context, ev models.Event) (models.IngestResult, error) {
	var res models.IngestResult
	method := ev.Type.Method()
	if method == "" {
		return res, errors.InvalidInput("unknown event type " + string(ev.Type))
	}
	err := c.Call(ctx, method, ev, &res)
	return res, err
}

func (c *RemoteClient) Health(ctx context.Context) (*models.Health, error) {
	var h models.Health
	if err := c.Call(ctx, models.MethodGetHealth, nil, &h); err != nil {
		return nil, err
	}
	return &h, nil
}

func (c *RemoteClient) Sessions(ctx context.Context, includeIdle bool) ([]models.SessionView, error) {
	var views []models.SessionView
	err := c.Call(ctx, models.MethodGetSessions, models.SessionsParams{IncludeIdle: includeIdle}, &views)
	return views, err
}

func (c *RemoteClient) ProjectStates(ctx context.Context, projectPaths []string) ([]models.ProjectState, error) {
	var states []models.ProjectState
	err := c.Call(ctx, models.MethodGetProjectStates, models.ProjectStatesParams{ProjectPaths: projectPaths}, &states)
	return states, err
}

func (c *RemoteClient) Shells(ctx context.Context, pid int) ([]models.ShellRecord, error) {
	var st models.ShellState
	err := c.Call(ctx, models.MethodGetShellState, models.ShellStateParams{PID: pid}, &st)
	return st.Shells, err
}

func (c *RemoteClient) Activity(ctx context.Context, projectPath string, limit int) ([]models.ActivityEntry, error) {
	var entries []models.ActivityEntry
	err := c.Call(ctx, models.MethodGetActivity, models.ActivityParams{ProjectPath: projectPath, Limit: limit}, &entries)
	return entries, err
}

// Route never fails outright: a daemon that cannot answer yields an
// unavailable decision carrying the reason.
func (c *RemoteClient) Route(ctx context.Context, projectPath, workspaceID string) (models.RoutingDecision, error) {
	var d models.RoutingDecision
	err := c.Call(ctx, models.MethodGetRoutingSnapshot, models.RoutingParams{ProjectPath: projectPath, WorkspaceID: workspaceID}, &d)
	switch {
	case err == nil:
		return d, nil
	case errors.Is(err, errors.ErrCodeTimeout):
		return models.Unavailable(projectPath, models.ReasonTimeout), err
	case errors.Is(err, errors.ErrCodeDaemonUnavailable):
		return models.Unavailable(projectPath, models.ReasonDaemonUnavailable), err
	}
	return d, err
}

func (c *RemoteClient) RouteDiagnostics(ctx context.Context, projectPath, workspaceID string) (*models.RoutingDiagnostics, error) {
	var d models.RoutingDiagnostics
	if err := c.Call(ctx, models.MethodGetRoutingDiagnostics, models.RoutingParams{ProjectPath: projectPath, WorkspaceID: workspaceID}, &d); err != nil {
		return nil, err
	}
	return &d, nil
}

// IsRunning returns true if the daemon is available and responding.
func (c *RemoteClient) IsRunning() bool {
	_, err := c.Health(context.Background())
	return err == nil
}

// Close cleans up any resources used by the client.
func (c *RemoteClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closeLocked()
	return nil
}

// Ensure RemoteClient implements Client interface.
var _ Client = (*RemoteClient)(nil)
