package store

import (
	"sort"

	"github.com/petekp/claude-hud-sub008/pkg/models"
)

// statePriority orders effective states when several sessions share a
// project: the one most in need of attention wins.
var statePriority = map[models.SessionState]int{
	models.StateWaiting:    5,
	models.StateWorking:    4,
	models.StateCompacting: 3,
	models.StateReady:      2,
	models.StateIdle:       1,
}

// GroupByProject aggregates session views per project path. When paths is
// non-empty only those projects are returned, in the order given, and a
// project without sessions reads as Idle.
func GroupByProject(views []models.SessionView, paths []string) []models.ProjectState {
	byPath := make(map[string]*models.ProjectState)
	for _, v := range views {
		p := v.ProjectPath()
		ps, ok := byPath[p]
		if !ok {
			ps = &models.ProjectState{ProjectPath: p, State: models.StateIdle}
			byPath[p] = ps
		}
		ps.Sessions = append(ps.Sessions, v)
		if statePriority[v.EffectiveState] > statePriority[ps.State] {
			ps.State = v.EffectiveState
		}
		if v.UpdatedAt.After(ps.UpdatedAt) {
			ps.UpdatedAt = v.UpdatedAt
		}
	}

	if len(paths) > 0 {
		out := make([]models.ProjectState, 0, len(paths))
		for _, p := range paths {
			if ps, ok := byPath[p]; ok {
				out = append(out, *ps)
				continue
			}
			out = append(out, models.ProjectState{ProjectPath: p, State: models.StateIdle, Sessions: []models.SessionView{}})
		}
		return out
	}

	out := make([]models.ProjectState, 0, len(byPath))
	for _, ps := range byPath {
		out = append(out, *ps)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ProjectPath < out[j].ProjectPath })
	return out
}
