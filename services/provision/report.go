package provision

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/lvnafir/agnosis-arch/pkg/telemetry"
)

// Report aggregates step results for one run. The run never claims
// full success when any step failed.
type Report struct {
	RunID     uuid.UUID     `yaml:"run_id"`
	StartedAt time.Time     `yaml:"started_at"`
	Duration  time.Duration `yaml:"duration"`
	Results   []Result      `yaml:"steps"`
}

// Add appends one step result.
func (r *Report) Add(res Result) {
	r.Results = append(r.Results, res)
}

// Counts tallies results by final status.
func (r *Report) Counts() (succeeded, skipped, failed int) {
	for _, res := range r.Results {
		switch res.Status {
		case StatusSucceeded:
			succeeded++
		case StatusSkipped:
			skipped++
		case StatusFailed, StatusPartiallyFailed:
			failed++
		}
	}
	return
}

// Clean reports whether every executed step fully succeeded.
func (r *Report) Clean() bool {
	_, _, failed := r.Counts()
	return failed == 0
}

// Print writes the categorized end-of-run summary.
func (r *Report) Print(w io.Writer) {
	succeeded, skipped, failed := r.Counts()
	fmt.Fprintf(w, "\nRun %s: %d succeeded, %d skipped, %d failed\n", r.RunID, succeeded, skipped, failed)
	for _, res := range r.Results {
		fmt.Fprintf(w, "  %-22s %s", res.Name, res.Status)
		if res.Error != "" {
			fmt.Fprintf(w, "  (%s)", res.Error)
		}
		fmt.Fprintln(w)
		for _, warn := range res.Warnings {
			fmt.Fprintf(w, "      ! %s\n", warn)
		}
	}
	if failed > 0 {
		fmt.Fprintln(w, "Some steps need manual attention; details above and in the run log.")
	}
}

// Write persists the report as YAML at path.
func (r *Report) Write(path string) error {
	data, err := yaml.Marshal(r)
	if err != nil {
		return fmt.Errorf("marshal run report: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create report dir: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write run report: %w", err)
	}
	return nil
}

// Metrics converts the report into the one-shot metrics value.
func (r *Report) Metrics() telemetry.RunMetrics {
	succeeded, skipped, failed := r.Counts()
	return telemetry.RunMetrics{
		Succeeded: succeeded,
		Skipped:   skipped,
		Failed:    failed,
		Duration:  r.Duration,
	}
}
