package cmd

import (
	"context"
	"sync"
	"testing"

	"github.com/petekp/claude-hud-sub008/logging"
	"github.com/petekp/claude-hud-sub008/pkg/activation"
	"github.com/petekp/claude-hud-sub008/pkg/daemon"
	"github.com/petekp/claude-hud-sub008/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// routeClient answers Route with a target named after the workspace. Routing
// for slowWorkspace blocks until release is closed.
type routeClient struct {
	daemon.Client
	slowWorkspace string
	entered       chan struct{}
	release       chan struct{}
	trusted       bool
}

func (c *routeClient) Route(ctx context.Context, projectPath, workspaceID string) (models.RoutingDecision, error) {
	if workspaceID == c.slowWorkspace {
		close(c.entered)
		<-c.release
	}
	return models.RoutingDecision{
		Status:      models.DecisionOK,
		Target:      &models.Target{Kind: models.EvidenceTmuxSession, Value: workspaceID},
		ProjectPath: projectPath,
	}, nil
}

func (c *routeClient) Health(ctx context.Context) (*models.Health, error) {
	mode := "shadow"
	if c.trusted {
		mode = "enabled"
	}
	return &models.Health{Routing: models.RoutingHealth{Mode: mode, Trusted: c.trusted}}, nil
}

type focusRecorder struct {
	mu      sync.Mutex
	focused []string
}

func (f *focusRecorder) Focus(ctx context.Context, t models.Target) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.focused = append(f.focused, t.Value)
	return nil
}

func (f *focusRecorder) values() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.focused...)
}

func TestSlowRoutingDoesNotReorderActivations(t *testing.T) {
	client := &routeClient{
		slowWorkspace: "A",
		entered:       make(chan struct{}),
		release:       make(chan struct{}),
		trusted:       true,
	}
	primary := &focusRecorder{}
	var (
		mu      sync.Mutex
		emitted []string
	)
	activator := activation.NewActivator(primary, nil, logging.NewLogger("activation"),
		activation.WithEmitter(func(o activation.Outcome) {
			mu.Lock()
			defer mu.Unlock()
			emitted = append(emitted, o.Target.Value)
		}))

	type result struct {
		out activation.Outcome
		ok  bool
	}
	aDone := make(chan result, 1)
	go func() {
		ctx := context.Background()
		out, ok := activator.Activate(ctx, activationRequest(ctx, activator, client, "/code/api", "A"))
		aDone <- result{out, ok}
	}()
	<-client.entered

	ctx := context.Background()
	b, ok := activator.Activate(ctx, activationRequest(ctx, activator, client, "/code/api", "B"))
	require.True(t, ok)
	assert.Equal(t, activation.ActionPrimary, b.Action)
	assert.Equal(t, uint64(2), b.Seq)

	close(client.release)
	a := <-aDone
	assert.False(t, a.ok)
	assert.Equal(t, uint64(1), a.out.Seq)

	assert.Equal(t, []string{"B"}, primary.values())
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"B"}, emitted)
}

func TestUntrustedRoutingUsesFallbackDecision(t *testing.T) {
	client := &routeClient{trusted: false}
	activator := activation.NewActivator(&focusRecorder{}, nil, logging.NewLogger("activation"))

	req := activationRequest(context.Background(), activator, client, "/code/api", "B")
	assert.Equal(t, uint64(1), req.Seq)
	assert.Equal(t, models.ReasonRoutingShadow, req.Decision.ReasonCode)
	assert.Nil(t, req.Decision.Target)
}
