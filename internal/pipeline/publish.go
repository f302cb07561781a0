package pipeline

import (
	"context"
	"fmt"

	"github.com/eteu-technologies/slipway/internal/config"
	"github.com/eteu-technologies/slipway/internal/remote"
)

// PublishGuardError reports a live pointer that exists but is not a
// symbolic link. Publishing over it would destroy whatever put it there,
// so the run aborts without touching it.
type PublishGuardError struct {
	Path string
}

func (e *PublishGuardError) Error() string {
	return fmt.Sprintf("refusing to publish: %s exists and is not a symlink", e.Path)
}

const guardMarker = "not-a-symlink"

// stepPublish atomically repoints the live pointer at the release in
// env. The temporary link plus rename keeps concurrent readers of
// `current` on either the old or the new target, never in between.
func stepPublish(ctx context.Context, env *Env) error {
	cfg := env.Config
	current := cfg.CurrentLink()

	guard := fmt.Sprintf("if [ -e %s ] && [ ! -L %s ]; then echo %s; fi",
		remote.Quote(current), remote.Quote(current), guardMarker)
	out, err := env.Session.Run(ctx, guard, remote.SurfaceSilent)
	if err != nil {
		return err
	}
	if out == guardMarker {
		return &PublishGuardError{Path: current}
	}

	tmp := current + "_tmp"
	swap := remote.Chain(
		remote.Command("ln", "-sfn", cfg.ReleasePath(env.Release), tmp),
		remote.Command("mv", "-T", tmp, current),
	)
	if _, err := env.Session.Run(ctx, swap, remote.SurfaceSilent); err != nil {
		return err
	}

	if cfg.Mode == config.ModeDeploy {
		return writeMarkers(ctx, env)
	}
	return nil
}

// writeMarkers records the fetched revision and commit subject in the
// deployment root. Informational only; rollback does not depend on them.
func writeMarkers(ctx context.Context, env *Env) error {
	cfg := env.Config

	markers := remote.Chain(
		remote.Redirect(remote.Command("printf", "%s", env.Revision), cfg.RevisionFile()),
		remote.Redirect(remote.Command("printf", "%s", env.Subject), cfg.CommitFile()),
	)
	_, err := env.Session.Run(ctx, markers, remote.SurfaceSilent)
	return err
}
