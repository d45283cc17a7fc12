package profiling

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPhases(t *testing.T) {
	clock := time.Date(2026, 3, 4, 10, 0, 0, 0, time.UTC)
	p := newPhases(func() time.Time { return clock })

	clock = clock.Add(2 * time.Millisecond)
	p.Mark("parse")
	clock = clock.Add(5 * time.Millisecond)
	p.Mark("send")

	assert.Equal(t, []Phase{
		{Name: "parse", Duration: 2 * time.Millisecond},
		{Name: "send", Duration: 5 * time.Millisecond},
	}, p.Phases())
	assert.Equal(t, 7*time.Millisecond, p.Total())

	fields := p.Fields()
	assert.Equal(t, 2.0, fields["parse_ms"])
	assert.Equal(t, 5.0, fields["send_ms"])
	assert.Equal(t, 7.0, fields["total_ms"])
	assert.Equal(t, "parse=2ms send=5ms total=7ms", p.String())
}

func TestPhasesWithoutMarks(t *testing.T) {
	p := NewPhases()
	assert.Empty(t, p.Phases())
	assert.Zero(t, p.Total())
}

func TestProfilesWriteFiles(t *testing.T) {
	dir := t.TempDir()
	p := &Profiles{
		CPUPath: filepath.Join(dir, "cpu.pprof"),
		MemPath: filepath.Join(dir, "mem.pprof"),
	}
	require.NoError(t, p.Start())
	p.Stop(logrus.NewEntry(logrus.New()))

	for _, path := range []string{p.CPUPath, p.MemPath} {
		info, err := os.Stat(path)
		require.NoError(t, err)
		assert.NotZero(t, info.Size(), path)
	}
}

func TestProfilesDisabled(t *testing.T) {
	p := &Profiles{}
	require.NoError(t, p.Start())
	p.Stop(logrus.NewEntry(logrus.New()))
}
