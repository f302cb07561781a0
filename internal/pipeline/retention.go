package pipeline

import (
	"context"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/eteu-technologies/slipway/internal/remote"
)

// Stale returns the release names to delete, keeping the `keep`
// lexicographically greatest names. Names sort by recency because they
// are monotonic timestamps. Idempotent: with no new release, a second
// pass selects nothing.
func Stale(names []string, keep int) []string {
	if len(names) <= keep {
		return nil
	}

	sorted := append([]string(nil), names...)
	sort.Sort(sort.Reverse(sort.StringSlice(sorted)))

	stale := append([]string(nil), sorted[keep:]...)
	sort.Strings(stale)
	return stale
}

// stepCleanup prunes old releases. The release published by this run is
// never a deletion candidate; retention applies to the keep_releases
// most recent releases that preceded it.
func stepCleanup(ctx context.Context, env *Env) error {
	cfg := env.Config

	names, err := listReleases(ctx, env)
	if err != nil {
		return err
	}

	var previous []string
	for _, name := range names {
		if name != env.Release {
			previous = append(previous, name)
		}
	}

	stale := Stale(previous, cfg.KeepReleases)
	if len(stale) == 0 {
		zap.L().Debug("no releases to clean up", zap.Int("existing", len(names)), zap.Int("keep", cfg.KeepReleases))
		return nil
	}

	argv := []string{"rm", "-rf"}
	for _, name := range stale {
		argv = append(argv, cfg.ReleasePath(name))
	}
	if _, err := env.Session.Run(ctx, remote.Command(argv...), remote.SurfaceSilent); err != nil {
		return err
	}

	zap.L().Info("pruned old releases", zap.Strings("deleted", stale), zap.Int("keep", cfg.KeepReleases))
	return nil
}

func listReleases(ctx context.Context, env *Env) ([]string, error) {
	out, err := env.Session.Run(ctx, remote.Command("ls", "-1", env.Config.ReleasesDir()), remote.SurfaceSilent)
	if err != nil {
		return nil, err
	}

	var names []string
	for _, line := range strings.Split(out, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			names = append(names, line)
		}
	}
	return names, nil
}
