package process

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const psSample = `    1     0 ??       /sbin/launchd
  612     1 ??       /Applications/Ghostty.app/Contents/MacOS/ghostty
  700   612 ttys004  /usr/bin/login -flp pete /bin/zsh
  701   700 ttys004  -zsh
  900   701 ttys004  claude --resume
  950     1 ??       hud lock-holder --session s1 --pid 900
 junk line
`

func TestParsePS(t *testing.T) {
	procs := ParsePS([]byte(psSample))
	require.Len(t, procs, 6)

	assert.Equal(t, Info{PID: 701, PPID: 700, TTY: "/dev/ttys004", Args: "-zsh"}, procs[3])
	assert.Equal(t, "", procs[0].TTY)
	assert.Equal(t, "ghostty", procs[1].Command())
	assert.Equal(t, "hud lock-holder --session s1 --pid 900", procs[5].Args)
}

func TestTableAncestors(t *testing.T) {
	table := NewTable(ParsePS([]byte(psSample)))

	chain := table.Ancestors(900)
	var pids []int
	for _, p := range chain {
		pids = append(pids, p.PID)
	}
	assert.Equal(t, []int{701, 700, 612}, pids)
	assert.Empty(t, table.Ancestors(12345))
}

func TestNormalizeTTY(t *testing.T) {
	assert.Equal(t, "/dev/pts/3", NormalizeTTY("pts/3"))
	assert.Equal(t, "/dev/ttys001", NormalizeTTY("/dev/ttys001"))
	assert.Equal(t, "", NormalizeTTY("??"))
	assert.Equal(t, "", NormalizeTTY("?"))
}
