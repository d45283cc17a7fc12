package version

import (
	"runtime/debug"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFillFromBuildInfo(t *testing.T) {
	bi := &debug.BuildInfo{
		Main: debug.Module{Version: "v0.4.1"},
		Settings: []debug.BuildSetting{
			{Key: "vcs.revision", Value: "abc123"},
			{Key: "vcs.time", Value: "2026-03-04T10:00:00Z"},
			{Key: "vcs.modified", Value: "true"},
		},
	}

	info := Info{Version: "dev", Commit: "none", BuildDate: "unknown"}
	fillFromBuildInfo(&info, bi)
	assert.Equal(t, "v0.4.1", info.Version)
	assert.Equal(t, "abc123", info.Commit)
	assert.True(t, info.Modified)
	assert.Contains(t, info.String(), "abc123 (modified)")

	pinned := Info{Version: "v1.0.0", Commit: "fff", BuildDate: "today"}
	fillFromBuildInfo(&pinned, bi)
	assert.Equal(t, "v1.0.0", pinned.Version)
	assert.Equal(t, "fff", pinned.Commit)
	assert.Equal(t, "today", pinned.BuildDate)
}

func TestGetInfoCarriesProtocol(t *testing.T) {
	info := GetInfo()
	assert.Equal(t, 1, info.ProtocolVersion)
	assert.Contains(t, info.String(), "Protocol:")
}
