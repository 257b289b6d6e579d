// Package telemetry provides run logging and one-shot run metrics for
// the provisioning CLI: human-readable output on the console, JSON
// lines in a persistent run log, and an optional Prometheus textfile
// for the node_exporter textfile collector.
package telemetry

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Logger writes leveled messages to the console and mirrors them as
// JSON lines into the run log.
type Logger struct {
	console *log.Logger
	journal *jsonLogWriter
	file    io.Closer
}

// NewLogger returns a Logger for the named component. When logPath is
// non-empty the JSON journal is appended there; journal failures never
// interrupt a run.
func NewLogger(component, logPath string) *Logger {
	l := &Logger{console: log.New(os.Stdout, "", 0)}
	if logPath == "" {
		return l
	}
	if err := os.MkdirAll(filepath.Dir(logPath), 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "telemetry: create log dir: %v\n", err)
		return l
	}
	f, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		fmt.Fprintf(os.Stderr, "telemetry: open run log: %v\n", err)
		return l
	}
	l.journal = newJSONLogWriter(component, f)
	l.file = f
	return l
}

// Close releases the journal file, if any.
func (l *Logger) Close() error {
	if l == nil || l.file == nil {
		return nil
	}
	return l.file.Close()
}

// Infof logs at INFO level.
func (l *Logger) Infof(format string, args ...any) { l.logf("INFO", format, args...) }

// Warnf logs at WARN level.
func (l *Logger) Warnf(format string, args ...any) { l.logf("WARN", format, args...) }

// Errorf logs at ERROR level.
func (l *Logger) Errorf(format string, args ...any) { l.logf("ERROR", format, args...) }

func (l *Logger) logf(level, format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	if l.console != nil {
		switch level {
		case "INFO":
			l.console.Print(msg)
		default:
			l.console.Printf("%s: %s", level, msg)
		}
	}
	if l.journal != nil {
		if err := l.journal.Log(level, msg); err != nil {
			fmt.Fprintf(os.Stderr, "telemetry: write run log: %v\n", err)
		}
	}
}

type jsonLogWriter struct {
	mu        sync.Mutex
	component string
	out       io.Writer
}

func newJSONLogWriter(component string, out io.Writer) *jsonLogWriter {
	return &jsonLogWriter{component: component, out: out}
}

func (w *jsonLogWriter) Log(level, message string) error {
	entry := map[string]string{
		"ts":        time.Now().UTC().Format(time.RFC3339Nano),
		"level":     level,
		"component": w.component,
		"msg":       message,
	}
	data, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	_, err = w.out.Write(append(data, '\n'))
	return err
}

// RunMetrics summarizes one provisioning run for the metrics textfile.
type RunMetrics struct {
	Succeeded int
	Skipped   int
	Failed    int
	Duration  time.Duration
}

// WriteMetricsTextfile renders run metrics in Prometheus exposition
// format at path, for pickup by a node_exporter textfile collector.
func WriteMetricsTextfile(path string, m RunMetrics) error {
	reg := prometheus.NewRegistry()

	outcomes := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "agnosis_provision_steps_total",
		Help: "Provisioning steps by outcome for the most recent run.",
	}, []string{"outcome"})
	duration := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "agnosis_provision_run_duration_seconds",
		Help: "Wall-clock duration of the most recent provisioning run.",
	})
	completed := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "agnosis_provision_last_run_timestamp_seconds",
		Help: "Unix time the most recent provisioning run finished.",
	})
	reg.MustRegister(outcomes, duration, completed)

	outcomes.WithLabelValues("succeeded").Set(float64(m.Succeeded))
	outcomes.WithLabelValues("skipped").Set(float64(m.Skipped))
	outcomes.WithLabelValues("failed").Set(float64(m.Failed))
	duration.Set(m.Duration.Seconds())
	completed.Set(float64(time.Now().Unix()))

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create metrics dir: %w", err)
	}
	if err := prometheus.WriteToTextfile(path, reg); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}
