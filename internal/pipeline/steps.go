package pipeline

import (
	"context"
	"fmt"
	"path"

	"github.com/eteu-technologies/slipway/internal/remote"
)

// stepFetch creates the release directory and clones exactly the
// configured branch, history-truncated. It also records the fetched
// revision and commit subject for the publish markers and the summary.
func stepFetch(ctx context.Context, env *Env) error {
	cfg := env.Config
	release := cfg.ReleasePath(env.Release)

	clone := remote.Chain(
		remote.Command("mkdir", "-p", cfg.ReleasesDir()),
		remote.Command("git", "clone", "--depth", "1", "--branch", cfg.Branch, cfg.Repository, release),
	)
	if _, err := env.Session.Run(ctx, clone, remote.SurfaceSilent); err != nil {
		return err
	}

	revision, err := env.Session.Run(ctx, remote.Command("git", "-C", release, "rev-parse", "HEAD"), remote.SurfaceSilent)
	if err != nil {
		return err
	}
	subject, err := env.Session.Run(ctx, remote.Command("git", "-C", release, "log", "-1", "--format=%s"), remote.SurfaceSilent)
	if err != nil {
		return err
	}

	env.Revision = revision
	env.Subject = subject
	return nil
}

// stepSharedPaths links every configured shared path from the release
// into the canonical shared location, in declaration order. Paths are
// independent of each other.
func stepSharedPaths(ctx context.Context, env *Env) error {
	cfg := env.Config
	release := cfg.ReleasePath(env.Release)

	for _, rel := range cfg.SharedPaths {
		shared := cfg.SharedPath(rel)
		target := path.Join(release, rel)

		link := remote.Chain(
			remote.Command("mkdir", "-p", path.Dir(shared)),
			remote.Command("mkdir", "-p", path.Dir(target)),
			remote.Command("ln", "-sfn", shared, target),
		)
		if _, err := env.Session.Run(ctx, link, remote.SurfaceSilent); err != nil {
			return err
		}
	}
	return nil
}

func stepNpm(ctx context.Context, env *Env) error {
	cfg := env.Config
	dir, _ := cfg.FrameworkOption("npm")
	workdir := path.Join(cfg.ReleasePath(env.Release), dir)

	install := remote.Chain(
		remote.Command("cd", workdir),
		remote.Command("npm", "install", "--production"),
	)
	_, err := env.Session.Run(ctx, install, remote.SurfaceInfo)
	return err
}

// stepSqlite backs up the shared database next to itself, suffixed with
// the release name. A missing database is tolerated: the first deploy
// has nothing to back up yet.
func stepSqlite(ctx context.Context, env *Env) error {
	cfg := env.Config
	rel, _ := cfg.FrameworkOption("sqlite")
	db := cfg.SharedPath(rel)
	backup := fmt.Sprintf("%s.%s.bak", db, env.Release)

	cmd := fmt.Sprintf("if [ -f %s ]; then %s; fi",
		remote.Quote(db),
		remote.Command("cp", db, backup))
	_, err := env.Session.Run(ctx, cmd, remote.SurfaceSilent)
	return err
}

func stepPython(ctx context.Context, env *Env) error {
	cfg := env.Config
	requirements, _ := cfg.FrameworkOption("python")
	release := cfg.ReleasePath(env.Release)
	venv := path.Join(release, ".venv")

	install := remote.Chain(
		remote.Command("python3", "-m", "venv", venv),
		remote.Command(path.Join(venv, "bin", "pip"), "install", "-r", path.Join(release, requirements)),
	)
	_, err := env.Session.Run(ctx, install, remote.SurfaceInfo)
	return err
}

// stepDjango migrates the database and, with the "static" option, also
// collects static files. It assumes the python step already created the
// virtualenv in this release.
func stepDjango(ctx context.Context, env *Env) error {
	cfg := env.Config
	option, _ := cfg.FrameworkOption("django")
	release := cfg.ReleasePath(env.Release)
	python := path.Join(release, ".venv", "bin", "python")

	commands := []string{
		remote.Command("cd", release),
		remote.Command(python, "manage.py", "migrate", "--noinput"),
	}
	if option == "static" {
		commands = append(commands, remote.Command(python, "manage.py", "collectstatic", "--noinput"))
	}

	_, err := env.Session.Run(ctx, remote.Chain(commands...), remote.SurfaceInfo)
	return err
}
