package provision

import (
	"context"
	"os/exec"
	"time"

	"github.com/google/uuid"

	"github.com/lvnafir/agnosis-arch/pkg/pacman"
	"github.com/lvnafir/agnosis-arch/pkg/pkgset"
	"github.com/lvnafir/agnosis-arch/pkg/profile"
	"github.com/lvnafir/agnosis-arch/pkg/render"
	"github.com/lvnafir/agnosis-arch/pkg/systemd"
	"github.com/lvnafir/agnosis-arch/pkg/telemetry"
)

// Env bundles the collaborators shared by every step of a run.
type Env struct {
	Cfg     Config
	Log     *telemetry.Logger
	Pacman  *pacman.Client
	Systemd *systemd.Client
	Render  *render.Engine
	Exec    CommandRunner
	Look    func(file string) (string, error)
	Profile profile.Profile
	Groups  []pkgset.GroupKey
	Store   *pkgset.Store
	RunID   uuid.UUID

	// runStamp suffixes every backup made in this run, so a re-run
	// produces at most one new backup per destination.
	runStamp string
}

// NewEnv assembles a run environment, loading the group store and the
// template engine.
func NewEnv(cfg Config, log *telemetry.Logger, p profile.Profile, groups []pkgset.GroupKey) (*Env, error) {
	store, err := pkgset.LoadStore(cfg.GroupsManifest)
	if err != nil {
		return nil, err
	}
	eng, err := render.New()
	if err != nil {
		return nil, err
	}
	return &Env{
		Cfg:      cfg,
		Log:      log,
		Pacman:   pacman.New(),
		Systemd:  systemd.New(),
		Render:   eng,
		Exec:     defaultRunner,
		Look:     exec.LookPath,
		Profile:  p,
		Groups:   groups,
		Store:    store,
		RunID:    uuid.New(),
		runStamp: time.Now().Format("20060102-150405"),
	}, nil
}

// Pipeline is the fixed, ordered sequence of provisioning steps. Step
// failures are contained and recorded; the pipeline always runs to
// completion. Execution is strictly sequential: a step finishes,
// including any subprocess it spawned, before the next begins.
type Pipeline struct {
	env   *Env
	steps []Step
}

// NewPipeline builds the standard pipeline over env.
func NewPipeline(env *Env) *Pipeline {
	return &Pipeline{
		env: env,
		steps: []Step{
			stepValidateEnvironment(env),
			stepFixPermissions(env),
			stepSyncPackageDB(env),
			stepInstallPackages(env),
			stepInstallExtraPackages(env),
			stepCreateDirectories(env),
			stepMigrateConfig(env),
			stepInstallSystemFiles(env),
			stepEnableServices(env),
			stepVerifyInstallation(env),
			stepReloadLiveConfig(env),
		},
	}
}

// Steps exposes the pipeline contents for display and tests.
func (p *Pipeline) Steps() []Step { return p.steps }

// Run executes every step in order, gating confirmable steps on the
// prompter, and returns the aggregated report. No step failure aborts
// the run; an operator interrupt cancels ctx and the remaining steps
// fail with the context error, leaving completed steps' effects in
// place.
func (p *Pipeline) Run(ctx context.Context, prompter Prompter) *Report {
	report := NewReport(p.env.RunID)
	start := time.Now()

	for _, step := range p.steps {
		report.Add(p.runStep(ctx, prompter, step))
	}

	report.Duration = time.Since(start)
	return report
}

func (p *Pipeline) runStep(ctx context.Context, prompter Prompter, step Step) Result {
	res := Result{Name: step.Name, Status: StatusPending}

	if step.Confirmable {
		if !prompter.Confirm(step.Description) {
			p.env.Log.Infof("step %s skipped by operator", step.Name)
			res.Status = StatusSkipped
			return res
		}
		res.Status = StatusConfirmed
	}

	p.env.Log.Infof("--- %s: %s", step.Name, step.Description)
	res.Status = StatusRunning
	rec := &Recorder{env: p.env}
	begin := time.Now()
	err := step.Run(ctx, rec)
	res.Duration = time.Since(begin)
	res.Warnings = rec.warnings

	switch {
	case err != nil:
		res.Status = StatusFailed
		res.Error = err.Error()
		p.env.Log.Errorf("step %s failed: %v", step.Name, err)
	case len(rec.warnings) > 0:
		res.Status = StatusPartiallyFailed
		p.env.Log.Warnf("step %s completed with %d problem(s)", step.Name, len(rec.warnings))
	default:
		res.Status = StatusSucceeded
		p.env.Log.Infof("step %s succeeded", step.Name)
	}
	return res
}

// NewReport allocates an empty run report for the given run ID.
func NewReport(runID uuid.UUID) *Report {
	return &Report{RunID: runID, StartedAt: time.Now().UTC()}
}
