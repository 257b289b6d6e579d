package provision

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/lvnafir/agnosis-arch/pkg/telemetry"
)

func testEnv(t *testing.T) *Env {
	t.Helper()
	return &Env{
		Cfg:      Config{StateDir: t.TempDir()},
		Log:      telemetry.NewLogger("test", ""),
		RunID:    uuid.New(),
		runStamp: "20260830-120000",
	}
}

// declineAll rejects every prompt.
type declineAll struct{}

func (declineAll) Confirm(string) bool { return false }

func TestRunContainsStepFailure(t *testing.T) {
	env := testEnv(t)
	var order []string
	step := func(name string, err error) Step {
		return Step{
			Name: name,
			Run: func(context.Context, *Recorder) error {
				order = append(order, name)
				return err
			},
		}
	}
	p := &Pipeline{env: env, steps: []Step{
		step("first", nil),
		step("second", errors.New("boom")),
		step("third", nil),
	}}

	report := p.Run(context.Background(), AutoConfirm{})

	require.Equal(t, []string{"first", "second", "third"}, order,
		"a failing step must not stop later steps")
	succeeded, skipped, failed := report.Counts()
	require.Equal(t, 2, succeeded)
	require.Equal(t, 0, skipped)
	require.Equal(t, 1, failed)
	require.False(t, report.Clean())
	require.Equal(t, StatusFailed, report.Results[1].Status)
	require.Equal(t, "boom", report.Results[1].Error)
}

func TestRunSkipsDeclinedSteps(t *testing.T) {
	env := testEnv(t)
	ran := false
	p := &Pipeline{env: env, steps: []Step{
		{
			Name:        "confirmable",
			Confirmable: true,
			Run: func(context.Context, *Recorder) error {
				ran = true
				return nil
			},
		},
		{
			Name: "unconditional",
			Run:  func(context.Context, *Recorder) error { return nil },
		},
	}}

	report := p.Run(context.Background(), declineAll{})

	require.False(t, ran, "declined step must not execute")
	require.Equal(t, StatusSkipped, report.Results[0].Status)
	require.Equal(t, StatusSucceeded, report.Results[1].Status)
	require.True(t, report.Clean(), "skipped steps do not taint the run")
}

func TestRunDowngradesOnWarnings(t *testing.T) {
	env := testEnv(t)
	p := &Pipeline{env: env, steps: []Step{
		{
			Name: "lossy",
			Run: func(_ context.Context, rec *Recorder) error {
				rec.Warnf("package %s failed to install", "bogus")
				return nil
			},
		},
	}}

	report := p.Run(context.Background(), AutoConfirm{})

	res := report.Results[0]
	require.Equal(t, StatusPartiallyFailed, res.Status)
	require.Len(t, res.Warnings, 1)
	require.Contains(t, res.Warnings[0], "bogus")
	require.False(t, report.Clean(), "partial failure counts against a clean run")
}

func TestStandardPipelineOrder(t *testing.T) {
	env := testEnv(t)
	p := NewPipeline(env)

	var names []string
	for _, s := range p.Steps() {
		names = append(names, s.Name)
	}
	require.Equal(t, []string{
		"validate-environment",
		"fix-permissions",
		"sync-package-db",
		"install-packages",
		"install-extra-packages",
		"create-directories",
		"migrate-config",
		"install-system-files",
		"enable-services",
		"verify-installation",
		"reload-live-config",
	}, names)
}

func TestReportPrintSummarizes(t *testing.T) {
	report := NewReport(uuid.New())
	report.Add(Result{Name: "install-packages", Status: StatusSucceeded})
	report.Add(Result{Name: "enable-services", Status: StatusPartiallyFailed, Warnings: []string{"enable foo: exit status 1"}})
	report.Add(Result{Name: "reload-live-config", Status: StatusSkipped})

	var buf bytes.Buffer
	report.Print(&buf)
	out := buf.String()

	require.Contains(t, out, "1 succeeded, 1 skipped, 1 failed")
	require.Contains(t, out, "! enable foo: exit status 1")
	require.Contains(t, out, "manual attention")
}

func TestStdioPrompterInsistsOnAnswer(t *testing.T) {
	var out bytes.Buffer
	p := &StdioPrompter{In: strings.NewReader("maybe\nYES\n"), Out: &out}
	require.True(t, p.Confirm("Proceed?"))
	require.Contains(t, out.String(), "Please answer")

	p = &StdioPrompter{In: strings.NewReader("n\n"), Out: &out}
	require.False(t, p.Confirm("Proceed?"))

	// EOF declines rather than hanging.
	p = &StdioPrompter{In: strings.NewReader(""), Out: &out}
	require.False(t, p.Confirm("Proceed?"))
}

func TestStdioPrompterAnswersSequentially(t *testing.T) {
	// Piped input must survive across prompts: answers after the first
	// belong to later Confirm calls, not to a read-ahead buffer.
	var out bytes.Buffer
	p := &StdioPrompter{In: strings.NewReader("y\nn\ny\n"), Out: &out}
	require.True(t, p.Confirm("first"))
	require.False(t, p.Confirm("second"))
	require.True(t, p.Confirm("third"))
	require.False(t, p.Confirm("fourth"), "exhausted input declines")
}
