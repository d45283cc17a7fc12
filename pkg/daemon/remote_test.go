package daemon

import (
	"bufio"
	"context"
	"encoding/json"
	"net"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/petekp/claude-hud-sub008/errors"
	"github.com/petekp/claude-hud-sub008/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeDaemon answers each request line with handler's response.
func fakeDaemon(t *testing.T, handler func(models.Request) *models.Response) string {
	t.Helper()
	dir, err := os.MkdirTemp("", "hud")
	require.NoError(t, err)
	socket := filepath.Join(dir, "d.sock")
	ln, err := net.Listen("unix", socket)
	require.NoError(t, err)
	t.Cleanup(func() {
		ln.Close()
		os.RemoveAll(dir)
	})

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go func() {
				defer conn.Close()
				scanner := bufio.NewScanner(conn)
				enc := json.NewEncoder(conn)
				for scanner.Scan() {
					var req models.Request
					if err := json.Unmarshal(scanner.Bytes(), &req); err != nil {
						return
					}
					resp := handler(req)
					if resp == nil {
						continue // never answer
					}
					resp.ID = req.ID
					if err := enc.Encode(resp); err != nil {
						return
					}
				}
			}()
		}
	}()
	return socket
}

func okData(t *testing.T, v interface{}) *models.Response {
	raw, err := json.Marshal(v)
	require.NoError(t, err)
	return &models.Response{OK: true, Data: raw}
}

func TestRemoteSendAndQuery(t *testing.T) {
	var (
		mu   sync.Mutex
		seen []string
	)
	socket := fakeDaemon(t, func(req models.Request) *models.Response {
		mu.Lock()
		seen = append(seen, req.Method)
		mu.Unlock()
		assert.Equal(t, models.ProtocolVersion, req.ProtocolVersion)
		switch req.Method {
		case "Event.Stop":
			var ev models.Event
			require.NoError(t, json.Unmarshal(req.Params, &ev))
			return okData(t, models.IngestResult{EventID: ev.EventID, Accepted: true, Applied: true})
		case models.MethodGetSessions:
			return okData(t, []models.SessionView{{SessionRecord: models.SessionRecord{SessionID: "s1"}}})
		}
		return &models.Response{Error: &models.ErrorBody{Code: "UNKNOWN_METHOD", Message: "nope"}}
	})

	c := NewRemoteClient(socket, time.Second)
	defer c.Close()

	res, err := c.Send(context.Background(), models.Event{EventID: "e1", Type: models.EventStop, SessionID: "s1", PID: 1, RecordedAt: time.Now()})
	require.NoError(t, err)
	assert.True(t, res.Applied)

	views, err := c.Sessions(context.Background(), false)
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.Equal(t, "s1", views[0].SessionID)

	_, err = c.Health(context.Background())
	assert.True(t, errors.Is(err, errors.ErrCodeUnknownMethod))

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"Event.Stop", models.MethodGetSessions, models.MethodGetHealth}, seen)
}

func TestRemoteTimeout(t *testing.T) {
	socket := fakeDaemon(t, func(req models.Request) *models.Response { return nil })
	c := NewRemoteClient(socket, 100*time.Millisecond)
	defer c.Close()

	started := time.Now()
	d, err := c.Route(context.Background(), "/code/api", "")
	assert.True(t, errors.Is(err, errors.ErrCodeTimeout), "got %v", err)
	assert.Less(t, time.Since(started), 2*time.Second)
	assert.Equal(t, models.DecisionUnavailable, d.Status)
	assert.Equal(t, models.ReasonTimeout, d.ReasonCode)
}

func TestRemoteUnavailable(t *testing.T) {
	c := NewRemoteClient(filepath.Join(t.TempDir(), "missing.sock"), time.Second)
	_, err := c.Health(context.Background())
	assert.True(t, errors.Is(err, errors.ErrCodeDaemonUnavailable))
	assert.False(t, c.IsRunning())

	d, err := c.Route(context.Background(), "/code/api", "")
	assert.Error(t, err)
	assert.Equal(t, models.ReasonDaemonUnavailable, d.ReasonCode)
}

func TestRemoteRejectsUnknownEventType(t *testing.T) {
	c := NewRemoteClient("/nonexistent", time.Second)
	_, err := c.Send(context.Background(), models.Event{Type: "bogus"})
	assert.True(t, errors.Is(err, errors.ErrCodeInvalidInput))
}
