// Package logging provides the styled logging used by the rtconfig CLI and the
// rtconfigd target service.
//
// All components log through the same printf-style helpers so that output from
// the CLI, the target's HTTP layer, and the gossip library share one format and
// one color scheme.
//
// LOGGING FEATURES:
//   - Color-coded levels: DEBUG (purple), INFO (blue), WARN (yellow), ERROR (red), SUCCESS (green)
//   - Log interception: Serf and memberlist output is parsed and re-emitted with a "(serf)" prefix
//   - Output control: level filtering, suppression for CLI use, and single-file redirection
//   - Standard redirection: routes the standard library logger through the same pipeline
//
// INFO and SUCCESS go to stdout, everything else goes to stderr, unless a log
// file was configured with SetOutput.
package logging

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"
	"time"

	stdlog "log"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"
)

var (
	// Logger for INFO/SUCCESS messages
	stdoutLogger = newLogger(os.Stdout)

	// Logger for WARN/ERROR/DEBUG messages
	stderrLogger = newLogger(os.Stderr)

	// Track if logging has been explicitly configured by the CLI
	cliConfigured = false

	// Destination used by Success, which builds its own styled logger
	successOutput io.Writer = os.Stdout
)

// newLogger creates a logger with the shared timestamp format and level styles.
func newLogger(w io.Writer) *log.Logger {
	l := log.NewWithOptions(w, log.Options{
		ReportTimestamp: true,
		TimeFormat:      time.RFC3339,
	})
	l.SetStyles(levelStyles())
	return l
}

// levelStyles returns the color scheme for log levels. The colors are chosen to
// stay readable on both light and dark terminals.
func levelStyles() *log.Styles {
	styles := log.DefaultStyles()

	styles.Levels[log.DebugLevel] = lipgloss.NewStyle().
		SetString("DEBUG").
		Foreground(lipgloss.Color("#7F6DFF"))

	styles.Levels[log.InfoLevel] = lipgloss.NewStyle().
		SetString("INFO").
		Foreground(lipgloss.Color("#42E7FF"))

	styles.Levels[log.WarnLevel] = lipgloss.NewStyle().
		SetString("WARN").
		Foreground(lipgloss.Color("#FFE763"))

	styles.Levels[log.ErrorLevel] = lipgloss.NewStyle().
		SetString("ERROR").
		Foreground(lipgloss.Color("#FF4473"))

	return styles
}

// Info logs informational messages about target and session activity.
func Info(format string, v ...any) {
	stdoutLogger.Info(fmt.Sprintf(format, v...))
}

// Warn logs non-fatal problems, such as an unreachable target during discovery.
func Warn(format string, v ...any) {
	stderrLogger.Warn(fmt.Sprintf(format, v...))
}

// Error logs failures.
func Error(format string, v ...any) {
	stderrLogger.Error(fmt.Sprintf(format, v...))
}

// Success logs a completed operation in green at INFO level. It is skipped
// whenever INFO is filtered out.
func Success(format string, v ...any) {
	if stdoutLogger.GetLevel() > log.InfoLevel {
		return
	}

	styles := levelStyles()
	styles.Levels[log.InfoLevel] = lipgloss.NewStyle().
		SetString("SUCCESS").
		Foreground(lipgloss.Color("#60F281"))

	l := log.NewWithOptions(successOutput, log.Options{
		ReportTimestamp: true,
		TimeFormat:      time.RFC3339,
	})
	l.SetStyles(styles)
	l.Info(fmt.Sprintf(format, v...))
}

// Debug logs request-level detail for troubleshooting.
func Debug(format string, v ...any) {
	stderrLogger.Debug(fmt.Sprintf(format, v...))
}

// parseLevel maps a level name to a charmbracelet level, defaulting to INFO.
func parseLevel(level string) log.Level {
	switch level {
	case "DEBUG":
		return log.DebugLevel
	case "INFO":
		return log.InfoLevel
	case "WARN":
		return log.WarnLevel
	case "ERROR":
		return log.ErrorLevel
	default:
		return log.InfoLevel
	}
}

// SetLevel configures the minimum level for both loggers. Accepts DEBUG, INFO,
// WARN and ERROR; anything else falls back to INFO.
func SetLevel(level string) {
	logLevel := parseLevel(level)
	stdoutLogger.SetLevel(logLevel)
	stderrLogger.SetLevel(logLevel)
}

// SetOutput sends all logs to w, overriding the stdout/stderr split.
// A nil writer suppresses every level.
func SetOutput(w io.Writer) {
	if w == nil {
		stdoutLogger.SetLevel(log.FatalLevel + 1)
		stderrLogger.SetLevel(log.FatalLevel + 1)
		return
	}

	level := stdoutLogger.GetLevel()
	stdoutLogger = newLogger(w)
	stderrLogger = newLogger(w)
	stdoutLogger.SetLevel(level)
	stderrLogger.SetLevel(level)
	successOutput = w
}

// SuppressOutput hides everything below ERROR. The CLI calls this by default
// so command output is not interleaved with request logs.
func SuppressOutput() {
	stdoutLogger.SetLevel(log.ErrorLevel)
	stderrLogger.SetLevel(log.ErrorLevel)
	cliConfigured = true
}

// RestoreOutput returns to the stdout/stderr split at INFO level.
func RestoreOutput() {
	stdoutLogger = newLogger(os.Stdout)
	stderrLogger = newLogger(os.Stderr)
	stdoutLogger.SetLevel(log.InfoLevel)
	stderrLogger.SetLevel(log.InfoLevel)
	successOutput = os.Stdout
	cliConfigured = true
}

// IsConfiguredByCLI reports whether the CLI has already configured logging, in
// which case embedded components leave the level alone.
func IsConfiguredByCLI() bool {
	return cliConfigured
}

// ============================================================================
// SERF LOG INTEGRATION - Capture and reformat Serf library logs
// ============================================================================

// serfLogRegex matches "2006/01/02 15:04:05 [LEVEL] message".
var serfLogRegex = regexp.MustCompile(`^\d{4}/\d{2}/\d{2} \d{2}:\d{2}:\d{2} \[(\w+)\] (.+)$`)

// ColorfulSerfWriter captures Serf and memberlist logs and routes them through
// the styled loggers.
type ColorfulSerfWriter struct {
	reader *io.PipeReader
	writer *io.PipeWriter
	done   chan struct{}
}

// NewColorfulSerfWriter creates a writer and starts its background processor.
func NewColorfulSerfWriter() *ColorfulSerfWriter {
	r, w := io.Pipe()
	csw := &ColorfulSerfWriter{
		reader: r,
		writer: w,
		done:   make(chan struct{}),
	}

	go csw.processLogs()

	return csw
}

// Write implements io.Writer.
func (csw *ColorfulSerfWriter) Write(p []byte) (n int, err error) {
	return csw.writer.Write(p)
}

// Close stops log processing and waits for buffered lines to be emitted.
func (csw *ColorfulSerfWriter) Close() error {
	err := csw.writer.Close()
	<-csw.done
	return err
}

// processLogs re-emits each Serf line at its parsed level.
func (csw *ColorfulSerfWriter) processLogs() {
	defer close(csw.done)
	scanner := bufio.NewScanner(csw.reader)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		level, message := parseSerfLine(line)
		switch level {
		case "DEBUG":
			Debug("(serf) %s", message)
		case "INFO":
			Info("(serf) %s", message)
		case "WARN", "WARNING":
			Warn("(serf) %s", message)
		case "ERR", "ERROR":
			Error("(serf) %s", message)
		default:
			Info("(serf)[%s]: %s", level, message)
		}
	}
}

// parseSerfLine extracts the level and message from a Serf log line. Lines
// that do not match the standard format are reported at INFO unchanged.
func parseSerfLine(line string) (string, string) {
	matches := serfLogRegex.FindStringSubmatch(line)
	if len(matches) != 3 {
		return "INFO", line
	}

	message := matches[2]
	lower := strings.ToLower(message)
	for _, prefix := range []string{"serf: ", "memberlist: "} {
		if strings.HasPrefix(lower, prefix) {
			message = strings.TrimSpace(message[len(prefix):])
			break
		}
	}
	return matches[1], message
}

// ============================================================================
// GENERIC LOG INTEGRATION - General purpose writers for third-party libraries
// ============================================================================

// LevelWriter forwards each written line to one log level with an optional
// prefix. Used for gin's default writers.
type LevelWriter struct {
	level  string
	prefix string
}

// NewLevelWriter creates a writer that logs each line at the given level.
// Valid levels: DEBUG, INFO, WARN, ERROR
func NewLevelWriter(level, prefix string) io.Writer {
	return &LevelWriter{level: strings.ToUpper(level), prefix: prefix}
}

// Write implements io.Writer.
func (w *LevelWriter) Write(p []byte) (int, error) {
	for _, line := range strings.Split(string(p), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		msg := line
		if w.prefix != "" {
			msg = w.prefix + ": " + line
		}
		switch w.level {
		case "DEBUG":
			Debug("%s", msg)
		case "WARN":
			Warn("%s", msg)
		case "ERROR":
			Error("%s", msg)
		default:
			Info("%s", msg)
		}
	}
	return len(p), nil
}

// RedirectStandardLog points the standard library logger at w. Passing nil
// discards standard log output.
func RedirectStandardLog(w io.Writer) {
	if w == nil {
		stdlog.SetOutput(io.Discard)
		return
	}
	stdlog.SetOutput(w)
}
