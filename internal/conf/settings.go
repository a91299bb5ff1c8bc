// Package conf loads fixture settings.
//
// Settings come from defaults, an optional YAML file and DBFIXTURE_* environment
// variables, in increasing order of precedence. The container port is special:
// DB_PORT is read by ContainerPort at the moment the container is requested.
package conf

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	// PortEnv overrides the port mongod listens on inside the container.
	PortEnv = "DB_PORT"
	// EnvPrefix prefixes every other environment override.
	EnvPrefix = "DBFIXTURE"

	// DefaultPort is the standard MongoDB port.
	DefaultPort = 27017
	// DefaultURLKey is the environment key the API under test reads its
	// MongoDB connection URL from.
	DefaultURLKey = "SPACEX_MONGO"
)

// FixtureSettings configures the MongoDB test fixture.
type FixtureSettings struct {
	// Image is the container image repository (default: "mongo")
	Image string `mapstructure:"image" yaml:"image"`
	// ImageTag is the image version (default: "4.4")
	ImageTag string `mapstructure:"image_tag" yaml:"image_tag"`
	// Port is the internal port used when DB_PORT is unset (default: 27017)
	Port int `mapstructure:"port" yaml:"port"`
	// Database is the application database named in the connection URL (default: "spacex")
	Database string `mapstructure:"database" yaml:"database"`
	// AuthDatabase holds the seeded API key (default: "auth")
	AuthDatabase string `mapstructure:"auth_database" yaml:"auth_database"`
	// AuthCollection holds the seeded API key (default: "users")
	AuthCollection string `mapstructure:"auth_collection" yaml:"auth_collection"`
	// URLKey is the environment key the connection URL is published under
	URLKey string `mapstructure:"url_key" yaml:"url_key"`

	ReadyInterval  Duration `mapstructure:"ready_interval" yaml:"ready_interval"`
	ReadyTimeout   Duration `mapstructure:"ready_timeout" yaml:"ready_timeout"` // 0 waits forever
	PingTimeout    Duration `mapstructure:"ping_timeout" yaml:"ping_timeout"`
	StartupTimeout Duration `mapstructure:"startup_timeout" yaml:"startup_timeout"`
	StopTimeout    Duration `mapstructure:"stop_timeout" yaml:"stop_timeout"`
}

// Defaults returns the settings used when nothing is overridden.
func Defaults() FixtureSettings {
	return FixtureSettings{
		Image:          "mongo",
		ImageTag:       "4.4",
		Port:           DefaultPort,
		Database:       "spacex",
		AuthDatabase:   "auth",
		AuthCollection: "users",
		URLKey:         DefaultURLKey,
		ReadyInterval:  Duration(300 * time.Millisecond),
		ReadyTimeout:   Duration(60 * time.Second),
		PingTimeout:    Duration(2 * time.Second),
		StartupTimeout: Duration(2 * time.Minute),
		StopTimeout:    Duration(30 * time.Second),
	}
}

// Load reads settings from the optional YAML file at path and the environment.
func Load(path string) (*FixtureSettings, error) {
	v := viper.New()

	d := Defaults()
	v.SetDefault("image", d.Image)
	v.SetDefault("image_tag", d.ImageTag)
	v.SetDefault("port", d.Port)
	v.SetDefault("database", d.Database)
	v.SetDefault("auth_database", d.AuthDatabase)
	v.SetDefault("auth_collection", d.AuthCollection)
	v.SetDefault("url_key", d.URLKey)
	v.SetDefault("ready_interval", d.ReadyInterval.String())
	v.SetDefault("ready_timeout", d.ReadyTimeout.String())
	v.SetDefault("ping_timeout", d.PingTimeout.String())
	v.SetDefault("startup_timeout", d.StartupTimeout.String())
	v.SetDefault("stop_timeout", d.StopTimeout.String())

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}

	var settings FixtureSettings
	if err := v.Unmarshal(&settings, viper.DecodeHook(DurationDecodeHook())); err != nil {
		return nil, fmt.Errorf("failed to decode settings: %w", err)
	}

	if err := settings.Validate(); err != nil {
		return nil, err
	}
	return &settings, nil
}

// Validate reports the first invalid setting.
func (s *FixtureSettings) Validate() error {
	switch {
	case s.Image == "":
		return fmt.Errorf("image must not be empty")
	case s.ImageTag == "":
		return fmt.Errorf("image_tag must not be empty")
	case !validPort(s.Port):
		return fmt.Errorf("port %d out of range", s.Port)
	case s.Database == "":
		return fmt.Errorf("database must not be empty")
	case s.AuthDatabase == "":
		return fmt.Errorf("auth_database must not be empty")
	case s.AuthCollection == "":
		return fmt.Errorf("auth_collection must not be empty")
	case s.URLKey == "":
		return fmt.Errorf("url_key must not be empty")
	case s.ReadyInterval <= 0:
		return fmt.Errorf("ready_interval must be positive, got %s", s.ReadyInterval)
	case s.ReadyTimeout < 0:
		return fmt.Errorf("ready_timeout must not be negative, got %s", s.ReadyTimeout)
	case s.PingTimeout <= 0:
		return fmt.Errorf("ping_timeout must be positive, got %s", s.PingTimeout)
	}
	return nil
}

// ImageRef returns "<image>:<tag>".
func (s *FixtureSettings) ImageRef() string {
	return s.Image + ":" + s.ImageTag
}

// ContainerPort returns the port from DB_PORT, or fallback when it is unset.
func ContainerPort(fallback int) (int, error) {
	raw, ok := os.LookupEnv(PortEnv)
	if !ok || strings.TrimSpace(raw) == "" {
		return fallback, nil
	}

	port, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", PortEnv, raw, err)
	}
	if !validPort(port) {
		return 0, fmt.Errorf("invalid %s %q: out of range", PortEnv, raw)
	}
	return port, nil
}

func validPort(p int) bool {
	return p > 0 && p <= 65535
}
