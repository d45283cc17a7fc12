package server

import (
	"context"
	"encoding/json"
	"os"

	"github.com/petekp/claude-hud-sub008/errors"
	"github.com/petekp/claude-hud-sub008/internal/daemon/reducer"
	"github.com/petekp/claude-hud-sub008/internal/daemon/store"
	"github.com/petekp/claude-hud-sub008/pkg/models"
	"github.com/petekp/claude-hud-sub008/pkg/routing"
)

func (s *Server) dispatch(ctx context.Context, req models.Request) (interface{}, error) {
	if t, ok := models.EventTypeForMethod(req.Method); ok {
		return s.handleIngest(ctx, t, req.Params)
	}

	switch req.Method {
	case models.MethodGetHealth:
		return s.handleHealth(), nil
	case models.MethodGetSessions:
		var p models.SessionsParams
		if err := decodeParams(req.Params, &p); err != nil {
			return nil, err
		}
		return s.sessionViews(ctx, p.IncludeIdle), nil
	case models.MethodGetProjectStates:
		var p models.ProjectStatesParams
		if err := decodeParams(req.Params, &p); err != nil {
			return nil, err
		}
		return store.GroupByProject(s.sessionViews(ctx, true), p.ProjectPaths), nil
	case models.MethodGetShellState:
		var p models.ShellStateParams
		if err := decodeParams(req.Params, &p); err != nil {
			return nil, err
		}
		return models.ShellState{Shells: s.engine.Store().Shells(p.PID)}, nil
	case models.MethodGetActivity:
		var p models.ActivityParams
		if err := decodeParams(req.Params, &p); err != nil {
			return nil, err
		}
		return s.engine.Store().Activity(p.ProjectPath, p.Limit), nil
	case models.MethodGetRoutingSnapshot:
		r, err := routingRequest(req.Params)
		if err != nil {
			return nil, err
		}
		return s.resolve(ctx, r).Decision, nil
	case models.MethodGetRoutingDiagnostics:
		r, err := routingRequest(req.Params)
		if err != nil {
			return nil, err
		}
		return s.resolve(ctx, r), nil
	}
	return nil, errors.UnknownMethod(req.Method)
}

func decodeParams(raw json.RawMessage, target interface{}) error {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	if err := json.Unmarshal(raw, target); err != nil {
		return errors.InvalidInput("invalid params: " + err.Error())
	}
	return nil
}

func (s *Server) handleIngest(ctx context.Context, t models.EventType, raw json.RawMessage) (models.IngestResult, error) {
	var ev models.Event
	if err := decodeParams(raw, &ev); err != nil {
		return models.IngestResult{}, err
	}
	ev.Type = t
	return s.engine.Ingest(ctx, ev)
}

func (s *Server) handleHealth() models.Health {
	st := s.engine.Store()
	tmux := st.Tmux()
	opts := s.Routing()
	now := s.now().UTC()
	return models.Health{
		Status:          "ok",
		PID:             os.Getpid(),
		Version:         s.version,
		ProtocolVersion: models.ProtocolVersion,
		StartedAt:       s.startedAt,
		UptimeSeconds:   int64(now.Sub(s.startedAt).Seconds()),
		LastSeq:         st.LastSeq(),
		Sessions:        len(st.Sessions()),
		Routing: models.RoutingHealth{
			Mode:               string(opts.Mode),
			Trusted:            opts.Mode.Trusted(),
			TmuxSnapshotAt:     tmux.CapturedAt,
			TerminalSnapshotAt: st.Terminals().CapturedAt,
		},
	}
}

// sessionViews attaches effective state and liveness to every record.
// Sessions that are effectively idle are omitted unless includeIdle.
func (s *Server) sessionViews(ctx context.Context, includeIdle bool) []models.SessionView {
	now := s.now().UTC()
	records := s.engine.Store().Sessions()
	views := make([]models.SessionView, 0, len(records))
	for _, rec := range records {
		v := reducer.View(rec, now, s.live.SameProcess(ctx, rec.PID, rec.ProcStarted))
		if v.EffectiveState == models.StateIdle && !includeIdle {
			continue
		}
		views = append(views, v)
	}
	return views
}

func routingRequest(raw json.RawMessage) (routing.Request, error) {
	var p models.RoutingParams
	if err := decodeParams(raw, &p); err != nil {
		return routing.Request{}, err
	}
	if p.ProjectPath == "" {
		return routing.Request{}, errors.InvalidInput("project_path is required")
	}
	return routing.NewRequest(p.ProjectPath, p.WorkspaceID), nil
}

func (s *Server) resolve(ctx context.Context, req routing.Request) models.RoutingDiagnostics {
	opts := s.Routing()
	snap := s.engine.Store().Snapshot()
	now := s.now().UTC()
	evidence := routing.Gather(ctx, req, RoutingSnapshot(snap), s.live, opts, now)
	return routing.Diagnose(req, evidence, opts, snap.Tmux.CapturedAt, now)
}

// RoutingSnapshot converts a store snapshot into resolver input.
func RoutingSnapshot(snap store.Snapshot) routing.Snapshot {
	return routing.Snapshot{
		Sessions:       snap.Sessions,
		Shells:         snap.Shells,
		TmuxClients:    snap.Tmux.Clients,
		TmuxSessions:   snap.Tmux.Sessions,
		TmuxCapturedAt: snap.Tmux.CapturedAt,
		Terminals:      snap.Terminals.Owners,
		PIDTTYs:        snap.Terminals.TTYs,
	}
}
