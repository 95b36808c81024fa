// Package config loads the YAML configuration of the agent and control
// daemons. Loading never fails hard: unreadable or malformed files yield the
// built-in defaults together with an error the caller may log.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	// PathEnv names the environment variable consulted when no path is given.
	PathEnv     = "CONFIG_PATH"
	DefaultPath = "config.yaml"

	DefaultAgentPort       = 7032
	DefaultControlPort     = 8032
	DefaultIntervalMS      = 10000
	DefaultDockerSocket    = "/var/run/docker.sock"
	DefaultDatabaseURL     = "control.db"
	DefaultAgentScheme     = "http"
	DefaultRequestTimeout  = 10 * time.Second
	DefaultHealthOperation = "Health"
)

var (
	// ErrRead is returned when the configuration file cannot be read.
	ErrRead = errors.New("config: read failed")

	// ErrParse is returned when the configuration file is not valid YAML.
	ErrParse = errors.New("config: parse failed")
)

// Server configures the RPC listener and its authorization.
type Server struct {
	Port             int      `yaml:"port"`
	AllowedKeys      []string `yaml:"allowed_keys"`
	NoAuthOperations []string `yaml:"no_auth_operations"`
	// DebugAddr enables an authenticated pprof listener when set.
	DebugAddr string `yaml:"debug_addr"`
}

// Log configures pkg/log.
type Log struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Tracing toggles the stdout span exporter.
type Tracing struct {
	Enabled bool `yaml:"enabled"`
}

// Refresh controls the agent snapshot loop.
type Refresh struct {
	IntervalMS int `yaml:"interval_ms"`
}

// Interval returns the refresh period as a duration.
func (r Refresh) Interval() time.Duration {
	return time.Duration(r.IntervalMS) * time.Millisecond
}

// Containers configures the container runtime connection of the agent.
type Containers struct {
	Enabled bool   `yaml:"enabled"`
	Socket  string `yaml:"socket"`
}

// Agent is the full agent daemon configuration.
type Agent struct {
	Agent      Refresh    `yaml:"agent"`
	Server     Server     `yaml:"server"`
	Containers Containers `yaml:"containers"`
	Log        Log        `yaml:"log"`
	Tracing    Tracing    `yaml:"tracing"`
}

// Database configures the inventory store.
type Database struct {
	URL string `yaml:"url"`
}

// AgentClient configures how the control plane talks to agents.
type AgentClient struct {
	Key            string        `yaml:"key"`
	Scheme         string        `yaml:"scheme"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
	RetryMax       int           `yaml:"retry_max"`
}

// Events configures lifecycle event publishing. An empty URL disables it.
type Events struct {
	NATSURL string `yaml:"nats_url"`
	Subject string `yaml:"subject_prefix"`
}

// Control is the full control daemon configuration.
type Control struct {
	Server   Server      `yaml:"server"`
	Database Database    `yaml:"database"`
	Agent    AgentClient `yaml:"agent"`
	Events   Events      `yaml:"events"`
	Log      Log         `yaml:"log"`
	Tracing  Tracing     `yaml:"tracing"`
}

// DefaultAgent returns the agent configuration used when no file applies.
func DefaultAgent() *Agent {
	return &Agent{
		Agent: Refresh{IntervalMS: DefaultIntervalMS},
		Server: Server{
			Port:             DefaultAgentPort,
			AllowedKeys:      []string{},
			NoAuthOperations: []string{DefaultHealthOperation},
		},
		Containers: Containers{Enabled: true, Socket: DefaultDockerSocket},
		Log:        Log{Level: "info", Format: "console"},
	}
}

// DefaultControl returns the control configuration used when no file applies.
func DefaultControl() *Control {
	return &Control{
		Server: Server{
			Port:             DefaultControlPort,
			AllowedKeys:      []string{},
			NoAuthOperations: []string{DefaultHealthOperation},
		},
		Database: Database{URL: DefaultDatabaseURL},
		Agent: AgentClient{
			Scheme:         DefaultAgentScheme,
			RequestTimeout: DefaultRequestTimeout,
		},
		Events: Events{Subject: "fleetwatch"},
		Log:    Log{Level: "info", Format: "console"},
	}
}

// ResolvePath picks the configuration path: the explicit flag value, then
// $CONFIG_PATH, then config.yaml.
func ResolvePath(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	if env := os.Getenv(PathEnv); env != "" {
		return env
	}
	return DefaultPath
}

// LoadAgent reads the agent configuration at path. The returned config is
// always usable.
func LoadAgent(path string) (*Agent, error) {
	cfg := DefaultAgent()
	if err := decode(path, cfg); err != nil {
		return DefaultAgent(), err
	}
	cfg.normalize()
	return cfg, nil
}

// LoadControl reads the control configuration at path. The returned config
// is always usable.
func LoadControl(path string) (*Control, error) {
	cfg := DefaultControl()
	if err := decode(path, cfg); err != nil {
		return DefaultControl(), err
	}
	cfg.normalize()
	return cfg, nil
}

func decode(path string, out any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrRead, err)
	}
	if err := yaml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrParse, path, err)
	}
	return nil
}

func (s *Server) normalize(port int) {
	if s.Port <= 0 || s.Port > 65535 {
		s.Port = port
	}
	if s.AllowedKeys == nil {
		s.AllowedKeys = []string{}
	}
	if s.NoAuthOperations == nil {
		s.NoAuthOperations = []string{DefaultHealthOperation}
	}
}

func (a *Agent) normalize() {
	if a.Agent.IntervalMS <= 0 {
		a.Agent.IntervalMS = DefaultIntervalMS
	}
	a.Server.normalize(DefaultAgentPort)
	if a.Containers.Socket == "" {
		a.Containers.Socket = DefaultDockerSocket
	}
}

func (c *Control) normalize() {
	c.Server.normalize(DefaultControlPort)
	if c.Database.URL == "" {
		c.Database.URL = DefaultDatabaseURL
	}
	if c.Agent.Scheme == "" {
		c.Agent.Scheme = DefaultAgentScheme
	}
	if c.Agent.RequestTimeout <= 0 {
		c.Agent.RequestTimeout = DefaultRequestTimeout
	}
	if c.Agent.RetryMax < 0 {
		c.Agent.RetryMax = 0
	}
	if c.Events.Subject == "" {
		c.Events.Subject = "fleetwatch"
	}
}
