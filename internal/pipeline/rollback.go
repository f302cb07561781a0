package pipeline

import (
	"context"
	"path"
	"sort"

	"github.com/eteu-technologies/slipway/internal/remote"
)

// RollbackUnavailableError reports that no rollback target can be
// resolved from the remote directory state.
type RollbackUnavailableError struct {
	Reason string
}

func (e *RollbackUnavailableError) Error() string {
	return "rollback unavailable: " + e.Reason
}

// PreviousRelease selects the entry immediately preceding current in
// the ascending listing of release names.
func PreviousRelease(names []string, current string) (string, error) {
	sorted := append([]string(nil), names...)
	sort.Strings(sorted)

	for i, name := range sorted {
		if name != current {
			continue
		}
		if i == 0 {
			return "", &RollbackUnavailableError{Reason: "no previous release available"}
		}
		return sorted[i-1], nil
	}

	return "", &RollbackUnavailableError{Reason: "current release " + current + " not found under releases/"}
}

// resolveRollback computes the rollback target purely from remote state:
// the target of the current symlink and the listing of releases/.
func resolveRollback(ctx context.Context, env *Env) (string, error) {
	cfg := env.Config

	// readlink prints nothing when current is missing or not a symlink.
	out, err := env.Session.Run(ctx, remote.Tolerate(remote.Command("readlink", cfg.CurrentLink())), remote.SurfaceSilent)
	if err != nil {
		return "", err
	}
	if out == "" {
		return "", &RollbackUnavailableError{Reason: "no current release"}
	}

	current := path.Base(out)

	names, err := listReleases(ctx, env)
	if err != nil {
		return "", err
	}

	return PreviousRelease(names, current)
}
