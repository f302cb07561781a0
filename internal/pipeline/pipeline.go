// Package pipeline drives the release lifecycle: an ordered,
// conditionally-assembled sequence of steps ending in an atomic publish,
// with user hooks around every step and fail-fast error propagation.
package pipeline

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/eteu-technologies/slipway/internal/config"
	"github.com/eteu-technologies/slipway/internal/message"
	"github.com/eteu-technologies/slipway/internal/remote"
)

// Env is the mutable state of one pipeline run, threaded through every
// step and hook.
type Env struct {
	Config  *config.Config
	Session *remote.Session

	// Release is the name of the release this run operates on: freshly
	// allocated for deploy, resolved from remote state for rollback.
	Release string

	// Revision and Subject are captured by the fetch step and consumed
	// by publish (marker files) and summary (event payload).
	Revision string
	Subject  string

	Started time.Time
}

// StepFunc is the body of a step or hook. Any returned error aborts the
// whole run before later steps execute.
type StepFunc func(ctx context.Context, env *Env) error

// Step is one named pipeline stage. When nil, the step always runs;
// otherwise it is included only if When reports true for the resolved
// configuration.
type Step struct {
	Name string
	When func(*config.Config) bool
	Run  StepFunc
}

// Hook is user-supplied code invoked immediately before or after a named
// step. Hooks are looked up by "pre_<step>" / "post_<step>" keys; a hook
// failure is exactly as fatal as a step failure.
type Hook struct {
	Description string
	Run         StepFunc
}

// HookSet maps "pre_<step>" and "post_<step>" keys to hooks. It is
// populated by the caller before the pipeline runs; the pipeline never
// constructs hook names beyond this fixed keying.
type HookSet map[string]Hook

// Notifier publishes a deployment event after a successful run.
// Notification is best-effort and never fails the pipeline.
type Notifier interface {
	Publish(ctx context.Context, event message.DeployEvent) error
}

// Runner executes the deploy or rollback pipeline for one invocation.
type Runner struct {
	cfg      *config.Config
	sess     *remote.Session
	hooks    HookSet
	notifier Notifier
	log      *zap.Logger
}

func New(cfg *config.Config, sess *remote.Session, hooks HookSet, notifier Notifier) *Runner {
	return &Runner{
		cfg:      cfg,
		sess:     sess,
		hooks:    hooks,
		notifier: notifier,
		log:      zap.L(),
	}
}

// NewReleaseName allocates a release identifier from t. Names are
// fixed-width UTC timestamps, so ascending lexicographic order equals
// creation order.
func NewReleaseName(t time.Time) string {
	return t.UTC().Format("20060102150405")
}

// Plan assembles the ordered step sequence for the configured mode,
// with every When precondition already applied.
func (r *Runner) Plan() []Step {
	var steps []Step
	if r.cfg.Mode == config.ModeRollback {
		steps = r.rollbackSteps()
	} else {
		steps = r.deploySteps()
	}

	plan := make([]Step, 0, len(steps))
	for _, step := range steps {
		if step.When == nil || step.When(r.cfg) {
			plan = append(plan, step)
		}
	}
	return plan
}

func (r *Runner) deploySteps() []Step {
	return []Step{
		{Name: "fetch", Run: stepFetch},
		{Name: "shared_paths", When: func(c *config.Config) bool { return len(c.SharedPaths) > 0 }, Run: stepSharedPaths},
		{Name: "npm", When: frameworkEnabled("npm"), Run: stepNpm},
		{Name: "sqlite", When: frameworkEnabled("sqlite"), Run: stepSqlite},
		{Name: "python", When: frameworkEnabled("python"), Run: stepPython},
		{Name: "django", When: frameworkEnabled("django"), Run: stepDjango},
		{Name: "publish", Run: stepPublish},
		{Name: "cleanup", Run: stepCleanup},
		{Name: "summary", Run: r.stepSummary},
	}
}

func (r *Runner) rollbackSteps() []Step {
	return []Step{
		{Name: "publish", Run: stepPublish},
		{Name: "summary", Run: r.stepSummary},
	}
}

func frameworkEnabled(name string) func(*config.Config) bool {
	return func(c *config.Config) bool {
		_, ok := c.FrameworkOption(name)
		return ok
	}
}

// Deploy runs the full deploy pipeline and returns the name of the
// published release.
func (r *Runner) Deploy(ctx context.Context) (string, error) {
	env := &Env{
		Config:  r.cfg,
		Session: r.sess,
		Release: NewReleaseName(time.Now()),
		Started: time.Now(),
	}

	r.log.Info("starting deploy",
		zap.String("release", env.Release),
		zap.String("repository", r.cfg.Repository),
		zap.String("branch", r.cfg.Branch),
		zap.String("host", r.cfg.Host))

	if err := r.run(ctx, env); err != nil {
		return "", err
	}
	return env.Release, nil
}

// Rollback resolves the release preceding the currently published one
// and repoints the live pointer at it. No release is created or deleted.
func (r *Runner) Rollback(ctx context.Context) (string, error) {
	env := &Env{
		Config:  r.cfg,
		Session: r.sess,
		Started: time.Now(),
	}

	target, err := resolveRollback(ctx, env)
	if err != nil {
		return "", err
	}
	env.Release = target

	r.log.Info("rolling back", zap.String("release", target), zap.String("host", r.cfg.Host))

	if err := r.run(ctx, env); err != nil {
		return "", err
	}
	return env.Release, nil
}

func (r *Runner) run(ctx context.Context, env *Env) error {
	for _, step := range r.Plan() {
		if err := r.runStep(ctx, step, env); err != nil {
			return err
		}
	}
	return nil
}

func (r *Runner) runStep(ctx context.Context, step Step, env *Env) error {
	if err := r.runHook(ctx, "pre_"+step.Name, env); err != nil {
		return err
	}

	r.log.Debug("running step", zap.String("step", step.Name))
	if err := step.Run(ctx, env); err != nil {
		return errors.Wrapf(err, "step %s failed", step.Name)
	}

	return r.runHook(ctx, "post_"+step.Name, env)
}

func (r *Runner) runHook(ctx context.Context, key string, env *Env) error {
	hook, ok := r.hooks[key]
	if !ok {
		return nil
	}

	if hook.Description != "" {
		r.log.Info("running hook", zap.String("hook", key), zap.String("description", hook.Description))
	} else {
		r.log.Debug("running hook", zap.String("hook", key))
	}

	if err := hook.Run(ctx, env); err != nil {
		return errors.Wrapf(err, "%s hook failed", key)
	}
	return nil
}

// stepSummary reports the outcome and publishes the deploy event.
// It is best-effort: the release is already live, so nothing here may
// fail the run.
func (r *Runner) stepSummary(ctx context.Context, env *Env) error {
	r.log.Info("release published",
		zap.String("mode", string(r.cfg.Mode)),
		zap.String("release", env.Release),
		zap.String("revision", env.Revision),
		zap.String("host", r.cfg.Host),
		zap.Duration("in", time.Since(env.Started)))

	if r.notifier != nil {
		event := message.DeployEvent{
			Mode:      string(r.cfg.Mode),
			Release:   env.Release,
			Revision:  env.Revision,
			Subject:   env.Subject,
			Host:      r.cfg.Host,
			DeployDir: r.cfg.DeployDir,
			Timestamp: time.Now().UTC(),
		}
		if err := r.notifier.Publish(ctx, event); err != nil {
			r.log.Warn("failed to publish deploy event", zap.Error(err))
		}
	}

	return nil
}
