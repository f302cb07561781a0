package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/eteu-technologies/slipway/internal/config"
	"github.com/eteu-technologies/slipway/internal/notify"
	"github.com/eteu-technologies/slipway/internal/pipeline"
	"github.com/eteu-technologies/slipway/internal/remote"
)

var debugMode = strings.ToLower(os.Getenv("SLIPWAY_DEBUG")) == "true"

func main() {
	if err := configureLogging(debugMode); err != nil {
		panic(fmt.Errorf("failed to configure logging: %w", err))
	}

	app := &cli.App{
		Name:  "slipway",
		Usage: "deploy timestamped releases to a remote host and roll them back",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Usage:   "YAML config file; flags override its values",
				EnvVars: []string{"SLIPWAY_CONFIG"},
			},
			&cli.StringFlag{
				Name:    "deploy-dir",
				EnvVars: []string{"SLIPWAY_DEPLOY_DIR"},
			},
			&cli.StringFlag{
				Name:    "repository",
				EnvVars: []string{"SLIPWAY_REPOSITORY"},
			},
			&cli.StringFlag{
				Name:    "branch",
				Value:   "main",
				EnvVars: []string{"SLIPWAY_BRANCH"},
			},
			&cli.StringFlag{
				Name:    "host",
				Usage:   "deployment host, user@host[:port] or \"local\"",
				EnvVars: []string{"SLIPWAY_HOST"},
			},
			&cli.IntFlag{
				Name:    "keep-releases",
				Value:   5,
				EnvVars: []string{"SLIPWAY_KEEP_RELEASES"},
			},
			&cli.StringSliceFlag{
				Name:  "framework",
				Usage: "enable a framework step, \"name\" or \"name=option\"",
			},
			&cli.StringSliceFlag{
				Name:  "shared-path",
				Usage: "release-relative path symlinked to the shared location",
			},
			&cli.StringFlag{
				Name:    "ssh-key",
				EnvVars: []string{"SLIPWAY_SSH_KEY"},
			},
			&cli.StringFlag{
				Name:    "known-hosts",
				EnvVars: []string{"SLIPWAY_KNOWN_HOSTS"},
			},
			&cli.StringFlag{
				Name:    "amqp-url",
				EnvVars: []string{"SLIPWAY_AMQP_URL"},
			},
			&cli.StringFlag{
				Name:    "amqp-queue",
				EnvVars: []string{"SLIPWAY_AMQP_QUEUE"},
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "deploy",
				Usage:  "fetch the configured branch into a new release and publish it",
				Action: runAction(config.ModeDeploy),
			},
			{
				Name:   "rollback",
				Usage:  "repoint the live pointer at the previous release",
				Action: runAction(config.ModeRollback),
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		zap.L().Fatal("unhandled error", zap.Error(err))
	}
}

func runAction(mode config.Mode) cli.ActionFunc {
	return func(cctx *cli.Context) error {
		cfg, err := resolveConfig(cctx, mode)
		if err != nil {
			return err
		}

		sess, closeFn, err := openSession(cfg)
		if err != nil {
			return err
		}
		defer closeFn()

		hooks, err := buildHooks(cfg)
		if err != nil {
			return err
		}

		runner := pipeline.New(cfg, sess, hooks, buildNotifier(cfg))

		var release string
		if mode == config.ModeRollback {
			release, err = runner.Rollback(cctx.Context)
		} else {
			release, err = runner.Deploy(cctx.Context)
		}
		if err != nil {
			return err
		}

		zap.L().Info("done", zap.String("release", release))
		return nil
	}
}

// resolveConfig merges the optional config file with command-line flags;
// a flag that was set always wins.
func resolveConfig(cctx *cli.Context, mode config.Mode) (*config.Config, error) {
	cfg := &config.Config{}

	if file := cctx.String("config"); file != "" {
		loaded, err := config.Load(file)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	cfg.Mode = mode

	if v := cctx.String("deploy-dir"); v != "" {
		cfg.DeployDir = v
	}
	if v := cctx.String("repository"); v != "" {
		cfg.Repository = v
	}
	if cctx.IsSet("branch") || cfg.Branch == "" {
		cfg.Branch = cctx.String("branch")
	}
	if v := cctx.String("host"); v != "" {
		cfg.Host = v
	}
	if cctx.IsSet("keep-releases") || cfg.KeepReleases == 0 {
		cfg.KeepReleases = cctx.Int("keep-releases")
	}
	if v := cctx.StringSlice("shared-path"); len(v) > 0 {
		cfg.SharedPaths = v
	}
	if v := cctx.StringSlice("framework"); len(v) > 0 {
		if cfg.Frameworks == nil {
			cfg.Frameworks = make(map[string]string)
		}
		for _, spec := range v {
			name, option := splitFramework(spec)
			cfg.Frameworks[name] = option
		}
	}
	if v := cctx.String("ssh-key"); v != "" {
		cfg.SSH.KeyFile = v
	}
	if v := cctx.String("known-hosts"); v != "" {
		cfg.SSH.KnownHostsFile = v
	}
	if v := cctx.String("amqp-url"); v != "" {
		cfg.AMQP.URL = v
	}
	if v := cctx.String("amqp-queue"); v != "" {
		cfg.AMQP.Queue = v
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func splitFramework(spec string) (name, option string) {
	for i := 0; i < len(spec); i++ {
		if spec[i] == '=' {
			return spec[:i], spec[i+1:]
		}
	}
	return spec, ""
}

func openSession(cfg *config.Config) (*remote.Session, func(), error) {
	if cfg.Host == remote.LocalHost {
		return remote.NewSession(remote.LocalExecutor{}, zap.L()), func() {}, nil
	}

	sshCfg := cfg.SSH
	if sshCfg.Host == "" {
		sshCfg.Host = cfg.Host
	}

	ex, err := remote.DialSSH(sshCfg)
	if err != nil {
		return nil, nil, err
	}

	closeFn := func() {
		if cerr := ex.Close(); cerr != nil {
			zap.L().Warn("failed to close ssh connection", zap.Error(cerr))
		}
	}
	return remote.NewSession(ex, zap.L()), closeFn, nil
}

// buildHooks materialises the config file's hooks section into remote
// commands keyed pre_<step>/post_<step>.
func buildHooks(cfg *config.Config) (pipeline.HookSet, error) {
	hooks := make(pipeline.HookSet, len(cfg.Hooks))
	for key, spec := range cfg.Hooks {
		surface, err := remote.ParseSurface(spec.Surface)
		if err != nil {
			return nil, fmt.Errorf("hook %s: %w", key, err)
		}

		command := spec.Run
		hooks[key] = pipeline.Hook{
			Description: spec.Description,
			Run: func(ctx context.Context, env *pipeline.Env) error {
				_, rerr := env.Session.Run(ctx, command, surface)
				return rerr
			},
		}
	}
	return hooks, nil
}

func buildNotifier(cfg *config.Config) pipeline.Notifier {
	if cfg.AMQP.URL == "" || cfg.AMQP.Queue == "" {
		return nil
	}
	return &notify.AMQPNotifier{URL: cfg.AMQP.URL, Queue: cfg.AMQP.Queue}
}

func configureLogging(debug bool) error {
	var cfg zap.Config

	if debug {
		cfg = zap.NewDevelopmentConfig()
		cfg.Level.SetLevel(zapcore.DebugLevel)
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		cfg.Development = false
	} else {
		cfg = zap.NewProductionConfig()
		cfg.Level.SetLevel(zapcore.InfoLevel)
	}

	cfg.OutputPaths = []string{
		"stdout",
	}

	logger, err := cfg.Build()
	if err != nil {
		return err
	}

	zap.ReplaceGlobals(logger)

	return nil
}
