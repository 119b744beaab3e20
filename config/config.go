// Package config loads the host configuration of iocage-list.
//
// Values come from an optional YAML file, then environment variables, then
// command-line flags; each layer overrides the one before it.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	"github.com/truenas/iocage-list/dataset"
	"github.com/truenas/iocage-list/truenas"
)

// DefaultPath is read when no --config flag is given. It may be absent.
const DefaultPath = "/usr/local/etc/iocage-list.yaml"

// Dataset store backends.
const (
	BackendZFS        = "zfs"
	BackendMiddleware = "middleware"
)

// Config is the host configuration.
type Config struct {
	// Pool holds the iocage datasets.
	Pool string `yaml:"pool"`

	// Root is the dataset under Pool that iocage owns.
	// Default: iocage
	Root string `yaml:"root"`

	// Backend selects where datasets are read from: the zfs command or the
	// TrueNAS middleware.
	// Default: zfs
	Backend string `yaml:"backend"`

	Middleware MiddlewareConfig `yaml:"middleware"`

	// ProbeTimeout bounds every jls, jexec and zfs invocation.
	// Default: 10s
	ProbeTimeout time.Duration `yaml:"probe_timeout"`

	// Parallelism is how many jails are reconciled at once.
	// Default: 1
	Parallelism int `yaml:"parallelism"`

	// StrictIndex makes the uuid listing fail on identities shared by a
	// jail and a template.
	StrictIndex bool `yaml:"strict_index"`

	Commands CommandsConfig `yaml:"commands"`
}

// MiddlewareConfig configures the middleware backend.
type MiddlewareConfig struct {
	Socket string `yaml:"socket"`
	APIKey string `yaml:"api_key"`
}

// CommandsConfig names the host utilities.
type CommandsConfig struct {
	ZFS   string `yaml:"zfs"`
	JLS   string `yaml:"jls"`
	Jexec string `yaml:"jexec"`
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	return &Config{
		Root:         "iocage",
		Backend:      BackendZFS,
		Middleware:   MiddlewareConfig{Socket: truenas.DefaultSocket},
		ProbeTimeout: 10 * time.Second,
		Parallelism:  1,
		Commands: CommandsConfig{
			ZFS:   "zfs",
			JLS:   "jls",
			Jexec: "jexec",
		},
	}
}

// Load reads path over the defaults and applies environment overrides.
// A missing file is only an error when required is set.
func Load(path string, required bool) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	case errors.Is(err, fs.ErrNotExist) && !required:
	default:
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg.applyEnv(os.LookupEnv)
	return cfg, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) {
	if v, ok := lookup("IOCAGE_POOL"); ok && v != "" {
		c.Pool = v
	}
	if v, ok := lookup("IOCAGE_BACKEND"); ok && v != "" {
		c.Backend = v
	}
	if v, ok := lookup("TRUENAS_SOCKET"); ok && v != "" {
		c.Middleware.Socket = v
	}
	if v, ok := lookup("TRUENAS_API_KEY"); ok && v != "" {
		c.Middleware.APIKey = v
	}
}

// RegisterFlags adds the flags ApplyFlags reads.
func RegisterFlags(fs *pflag.FlagSet) {
	fs.String("config", DefaultPath, "host configuration file")
	fs.String("pool", "", "pool holding the iocage datasets")
	fs.String("backend", "", "dataset backend (zfs or middleware)")
	fs.Int("parallel", 0, "jails reconciled at once")
	fs.Duration("probe-timeout", 0, "timeout of each host command")
	fs.Bool("strict-index", false, "fail the uuid listing on identity collisions")
}

// ApplyFlags overrides the configuration with the flags set on the
// command line.
func (c *Config) ApplyFlags(fs *pflag.FlagSet) error {
	var err error
	if fs.Changed("pool") {
		if c.Pool, err = fs.GetString("pool"); err != nil {
			return err
		}
	}
	if fs.Changed("backend") {
		if c.Backend, err = fs.GetString("backend"); err != nil {
			return err
		}
	}
	if fs.Changed("parallel") {
		if c.Parallelism, err = fs.GetInt("parallel"); err != nil {
			return err
		}
	}
	if fs.Changed("probe-timeout") {
		if c.ProbeTimeout, err = fs.GetDuration("probe-timeout"); err != nil {
			return err
		}
	}
	if fs.Changed("strict-index") {
		if c.StrictIndex, err = fs.GetBool("strict-index"); err != nil {
			return err
		}
	}
	return nil
}

// Validate reports the first setting that cannot work.
func (c *Config) Validate() error {
	if c.Pool == "" {
		return errors.New("pool is required (set pool in the config file, IOCAGE_POOL or --pool)")
	}
	if err := dataset.ValidateName(c.Pool + "/" + c.Root); err != nil {
		return fmt.Errorf("invalid pool or root: %w", err)
	}

	switch c.Backend {
	case BackendZFS:
	case BackendMiddleware:
		if c.Middleware.APIKey == "" {
			return errors.New("middleware backend needs an API key (middleware.api_key or TRUENAS_API_KEY)")
		}
	default:
		return fmt.Errorf("unknown backend %q (want %s or %s)", c.Backend, BackendZFS, BackendMiddleware)
	}

	if c.Parallelism < 0 {
		return fmt.Errorf("parallelism must not be negative, got %d", c.Parallelism)
	}
	if c.ProbeTimeout < 0 {
		return fmt.Errorf("probe_timeout must not be negative, got %s", c.ProbeTimeout)
	}
	return nil
}
