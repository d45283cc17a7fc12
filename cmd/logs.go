package cmd

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	stdlog "log"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/hpcloud/tail"
	"github.com/petekp/claude-hud-sub008/cli"
	"github.com/petekp/claude-hud-sub008/errors"
	"github.com/petekp/claude-hud-sub008/logging"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// NewLogsCmd creates the `logs` command.
func NewLogsCmd() *cobra.Command {
	var (
		follow     bool
		lines      int
		level      string
		components []string
		file       string
	)

	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Show the hud log file",
		Long: `Prints entries from today's log file. Every hud process (daemon, hooks,
lock holders and the CLI) writes to the same JSON-lines file.

Examples:
  # Follow daemon and reducer logs
  hud logs -f --component daemon,reducer

  # The last 50 warnings or worse, as JSON
  hud logs -n 50 --level warn --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			filter, err := newLogFilter(components, level)
			if err != nil {
				return err
			}

			path := file
			if path == "" {
				cfg, err := cli.LoadConfig(cmd)
				if err != nil {
					return err
				}
				var logCfg logging.Config
				_ = cfg.UnmarshalExtension("logging", &logCfg)
				path = logCfg.FilePath(time.Now())
			}

			printEntry := printLogText
			if cli.GetOptions(cmd).JSONOutput {
				printEntry = printLogJSON
			}
			out := cmd.OutOrStdout()

			recent, err := readLogTail(path, lines, filter)
			if err != nil && !(follow && os.IsNotExist(err)) {
				return errors.Wrap(err, errors.ErrCodeInvalidInput, "failed to read log file").WithDetail("path", path)
			}
			for _, line := range recent {
				printEntry(out, line)
			}
			if !follow {
				return nil
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			t, err := tail.TailFile(path, tail.Config{
				Follow:   true,
				ReOpen:   true,
				Location: &tail.SeekInfo{Offset: 0, Whence: io.SeekEnd},
				Logger:   stdlog.New(io.Discard, "", 0),
			})
			if err != nil {
				return errors.Wrap(err, errors.ErrCodeInvalidInput, "failed to follow log file").WithDetail("path", path)
			}
			defer t.Cleanup()
			defer func() { _ = t.Stop() }()

			for {
				select {
				case <-ctx.Done():
					return nil
				case line, ok := <-t.Lines:
					if !ok {
						return nil
					}
					if line.Err != nil {
						continue
					}
					if entry := parseLogLine(line.Text); filter.match(entry) {
						printEntry(out, entry)
					}
				}
			}
		},
	}

	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "Follow log output")
	cmd.Flags().IntVarP(&lines, "lines", "n", 100, "Number of entries to show from the end (0 for all)")
	cmd.Flags().StringVar(&level, "level", "", "Minimum level to show (debug, info, warn, error)")
	cmd.Flags().StringSliceVar(&components, "component", nil, "Only show these components (comma-separated)")
	cmd.Flags().StringVar(&file, "file", "", "Read this log file instead of today's")

	return cmd
}

// logEntry is one line of the log file. Lines that are not JSON keep only
// their raw text.
type logEntry struct {
	Raw    string
	Fields map[string]interface{}
}

func parseLogLine(line string) logEntry {
	entry := logEntry{Raw: line}
	var fields map[string]interface{}
	if err := json.Unmarshal([]byte(line), &fields); err == nil {
		entry.Fields = fields
	}
	return entry
}

func (e logEntry) str(key string) string {
	s, _ := e.Fields[key].(string)
	return s
}

type logFilter struct {
	components map[string]bool
	minLevel   logrus.Level
	hasLevel   bool
}

func newLogFilter(components []string, level string) (logFilter, error) {
	f := logFilter{}
	if len(components) > 0 {
		f.components = make(map[string]bool, len(components))
		for _, c := range components {
			f.components[strings.TrimSpace(c)] = true
		}
	}
	if level != "" {
		lvl, err := logrus.ParseLevel(level)
		if err != nil {
			return f, errors.InvalidInput(fmt.Sprintf("unknown log level %q", level))
		}
		f.minLevel, f.hasLevel = lvl, true
	}
	return f, nil
}

// match reports whether e passes the filter. Raw lines pass only an empty
// filter.
func (f logFilter) match(e logEntry) bool {
	if f.components == nil && !f.hasLevel {
		return true
	}
	if e.Fields == nil {
		return false
	}
	if f.components != nil && !f.components[e.str("component")] {
		return false
	}
	if f.hasLevel {
		lvl, err := logrus.ParseLevel(e.str("level"))
		// logrus orders levels from panic (0) up to trace.
		if err != nil || lvl > f.minLevel {
			return false
		}
	}
	return true
}

// readLogTail returns the last n matching entries of path, or all of them
// when n <= 0.
func readLogTail(path string, n int, filter logFilter) ([]logEntry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var entries []logEntry
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 4<<20)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		if entry := parseLogLine(line); filter.match(entry) {
			entries = append(entries, entry)
			if n > 0 && len(entries) > n {
				entries = entries[1:]
			}
		}
	}
	return entries, scanner.Err()
}

func printLogJSON(w io.Writer, e logEntry) {
	var v interface{} = e.Fields
	if e.Fields == nil {
		v = map[string]string{"raw_line": e.Raw}
	}
	data, err := json.Marshal(v)
	if err != nil {
		fmt.Fprintln(w, e.Raw)
		return
	}
	fmt.Fprintln(w, string(data))
}

func printLogText(w io.Writer, e logEntry) {
	fmt.Fprintln(w, formatLogText(e))
}

func formatLogText(e logEntry) string {
	if e.Fields == nil {
		return e.Raw
	}
	theme := cli.DefaultTheme

	ts := e.str("time")
	parsed, err := time.Parse(time.RFC3339Nano, ts)
	if err != nil {
		parsed, _ = time.Parse(time.RFC3339, ts)
	}

	level := e.str("level")
	var levelStyle lipgloss.Style
	switch strings.ToLower(level) {
	case "error", "fatal", "panic":
		levelStyle = theme.Error
	case "warning", "warn":
		levelStyle = lipgloss.NewStyle().Foreground(theme.Colors.Yellow)
	case "info":
		levelStyle = theme.Highlight
	default:
		levelStyle = theme.Muted
	}

	var keys []string
	for k := range e.Fields {
		switch k {
		case "time", "level", "msg", "component":
		default:
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	parts := []string{
		parsed.Local().Format("15:04:05"),
		levelStyle.Render(strings.ToUpper(level)),
	}
	if c := e.str("component"); c != "" {
		parts = append(parts, theme.Muted.Render("["+c+"]"))
	}
	parts = append(parts, e.str("msg"))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", theme.Muted.Render(k), e.Fields[k]))
	}
	return strings.Join(parts, " ")
}
