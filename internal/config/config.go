// Package config holds the immutable resolved settings for one
// slipway invocation.
package config

import (
	"io/ioutil"
	"path"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"gopkg.in/yaml.v2"

	"github.com/eteu-technologies/slipway/internal/remote"
)

// Mode selects which pipeline an invocation runs.
type Mode string

const (
	ModeDeploy   Mode = "deploy"
	ModeRollback Mode = "rollback"
)

// Config is built once at startup and never mutated afterwards.
type Config struct {
	DeployDir    string            `yaml:"deploy_dir"`
	Repository   string            `yaml:"repository"`
	Branch       string            `yaml:"branch"`
	Host         string            `yaml:"host"`
	KeepReleases int               `yaml:"keep_releases"`
	Frameworks   map[string]string `yaml:"frameworks"`
	SharedPaths  []string          `yaml:"shared_paths"`

	SSH   remote.SSHConfig    `yaml:"ssh"`
	AMQP  AMQPConfig          `yaml:"amqp"`
	Hooks map[string]HookSpec `yaml:"hooks"`

	Mode Mode `yaml:"-"`
}

// AMQPConfig enables deploy event notifications when both fields are set.
type AMQPConfig struct {
	URL   string `yaml:"url"`
	Queue string `yaml:"queue"`
}

// HookSpec is one user-supplied hook from the config file, keyed
// "pre_<step>" or "post_<step>" in the hooks map. Run is executed on the
// deployment host; Surface selects how its output is reported
// (silent, info, warn, fatal).
type HookSpec struct {
	Description string `yaml:"description"`
	Run         string `yaml:"run"`
	Surface     string `yaml:"surface"`
}

// Framework option defaults. Presence of a key in Frameworks means
// "enabled"; an empty option value resolves to the framework's default.
var frameworkDefaults = map[string]string{
	"npm":    "/",
	"sqlite": "production.sqlite3",
	"python": "requirements.txt",
	"django": "",
}

// Load reads a YAML config file. Missing file is not an error to the
// caller that treats the file as optional; Load reports it as-is.
func Load(configFile string) (*Config, error) {
	start := time.Now()

	data, err := ioutil.ReadFile(configFile)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, errors.Wrap(err, "failed to parse config file")
	}

	zap.L().Info("configuration loaded", zap.Duration("in", time.Since(start)), zap.String("from", configFile))
	return &cfg, nil
}

// Validate reports every missing or invalid setting at once.
func (c *Config) Validate() error {
	var result *multierror.Error

	if c.DeployDir == "" {
		result = multierror.Append(result, errors.New("deploy directory is not set"))
	}
	if c.Host == "" {
		result = multierror.Append(result, errors.New("deployment host is not set"))
	}
	if c.KeepReleases < 1 {
		result = multierror.Append(result, errors.Errorf("keep_releases must be at least 1, got %d", c.KeepReleases))
	}
	if c.Mode == ModeDeploy {
		if c.Repository == "" {
			result = multierror.Append(result, errors.New("repository is not set"))
		}
		if c.Branch == "" {
			result = multierror.Append(result, errors.New("branch is not set"))
		}
	}

	return result.ErrorOrNil()
}

// FrameworkOption reports whether name is enabled and resolves its
// option value, applying the framework default when the configured
// value is empty. Unknown framework names are accepted; they simply
// produce no pipeline step.
func (c *Config) FrameworkOption(name string) (option string, enabled bool) {
	option, enabled = c.Frameworks[name]
	if !enabled {
		return "", false
	}
	if option == "" {
		option = frameworkDefaults[name]
	}
	return option, true
}

// Remote layout helpers. All remote paths are POSIX.

func (c *Config) ReleasesDir() string { return path.Join(c.DeployDir, "releases") }
func (c *Config) SharedDir() string   { return path.Join(c.DeployDir, "shared") }
func (c *Config) CurrentLink() string { return path.Join(c.DeployDir, "current") }

func (c *Config) ReleasePath(name string) string { return path.Join(c.ReleasesDir(), name) }
func (c *Config) SharedPath(rel string) string   { return path.Join(c.SharedDir(), rel) }

func (c *Config) RevisionFile() string { return path.Join(c.DeployDir, "CURRENT_REVISION") }
func (c *Config) CommitFile() string   { return path.Join(c.DeployDir, "CURRENT_COMMIT") }
