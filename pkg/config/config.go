// Package config loads, validates and persists the s3box configuration file.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v2"
)

// ErrConfiguration is returned when required settings are missing or invalid.
// Nothing may be transferred while the configuration is in this state.
var ErrConfiguration = errors.New("invalid configuration")

const (
	// DefaultRegion is used by the setup wizard when the user keeps the default.
	DefaultRegion = "us-east-1"
	// DefaultServeAddr is the listen address of the local HTTP API.
	DefaultServeAddr = "127.0.0.1:8081"
	// DefaultPurgeSchedule is the cron schedule used to purge expired share codes.
	DefaultPurgeSchedule = "@hourly"

	configDirName  = ".s3box"
	configFileName = "config.yaml"
	configFileMode = 0o600
	configDirMode  = 0o700
)

// Share backends.
const (
	ShareBackendS3       = "s3"
	ShareBackendPostgres = "postgres"
)

// Config is the struct for the configuration
type Config struct {
	S3endpoint     string      `yaml:"s3endpoint"`
	S3accessKey    string      `yaml:"accesskey"`
	S3secretKey    string      `yaml:"secretkey"`
	S3Region       string      `yaml:"s3region"`
	SsoAwsProfile  string      `yaml:"ssoawsprofile"`
	Bucket         string      `yaml:"bucket"`
	ForcePathStyle bool        `yaml:"forcepathstyle"`
	Username       string      `yaml:"username"`
	LogLevel       string      `yaml:"loglevel"`
	ConflictPolicy string      `yaml:"conflictpolicy"`
	Share          ShareConfig `yaml:"share"`
	Serve          ServeConfig `yaml:"serve"`
}

// ShareConfig selects where share codes are stored.
type ShareConfig struct {
	Backend       string `yaml:"backend"`
	DatabaseURL   string `yaml:"databaseurl"`
	PurgeSchedule string `yaml:"purgeschedule"`
}

// ServeConfig holds the settings of the local HTTP API.
type ServeConfig struct {
	Addr string `yaml:"addr"`
}

// ReadYamlCnxFile reads a yaml file and returns a Config struct
func ReadYamlCnxFile(filename string) (Config, error) {
	var config Config

	yamlFile, err := os.ReadFile(filename)
	if err != nil {
		return config, fmt.Errorf("error reading YAML file: %w", err)
	}

	err = yaml.Unmarshal(yamlFile, &config)
	if err != nil {
		return config, fmt.Errorf("error parsing YAML file: %w", err)
	}
	return config, nil
}

// WriteYamlCnxFile saves the configuration, creating the parent directory if needed.
// The file holds credentials so it is only readable by its owner.
func WriteYamlCnxFile(filename string, config Config) error {
	if err := os.MkdirAll(filepath.Dir(filename), configDirMode); err != nil {
		return fmt.Errorf("error creating configuration directory: %w", err)
	}
	out, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("error encoding YAML file: %w", err)
	}
	if err := os.WriteFile(filename, out, configFileMode); err != nil {
		return fmt.Errorf("error writing YAML file: %w", err)
	}
	return nil
}

// DefaultConfigPath returns ~/.s3box/config.yaml.
func DefaultConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot locate home directory: %w", err)
	}
	return filepath.Join(home, configDirName, configFileName), nil
}

// ApplyEnv overrides file values with S3BOX_* environment variables.
func ApplyEnv(cfg Config) Config {
	overrides := []struct {
		env string
		dst *string
	}{
		{"S3BOX_ENDPOINT", &cfg.S3endpoint},
		{"S3BOX_ACCESS_KEY", &cfg.S3accessKey},
		{"S3BOX_SECRET_KEY", &cfg.S3secretKey},
		{"S3BOX_REGION", &cfg.S3Region},
		{"S3BOX_SSO_PROFILE", &cfg.SsoAwsProfile},
		{"S3BOX_BUCKET", &cfg.Bucket},
		{"S3BOX_USER", &cfg.Username},
		{"S3BOX_LOG_LEVEL", &cfg.LogLevel},
		{"S3BOX_CONFLICT_POLICY", &cfg.ConflictPolicy},
		{"S3BOX_DATABASE_URL", &cfg.Share.DatabaseURL},
	}
	for _, o := range overrides {
		if v, ok := os.LookupEnv(o.env); ok && strings.TrimSpace(v) != "" {
			*o.dst = strings.TrimSpace(v)
		}
	}
	return cfg
}

// Validate checks that the remote store can be reached with this configuration.
// The username is not checked here because the shell may prompt for it.
func (c Config) Validate() error {
	var missing []string
	if c.SsoAwsProfile == "" {
		if strings.TrimSpace(c.S3accessKey) == "" {
			missing = append(missing, "accesskey")
		}
		if strings.TrimSpace(c.S3secretKey) == "" {
			missing = append(missing, "secretkey")
		}
	}
	if strings.TrimSpace(c.S3Region) == "" {
		missing = append(missing, "s3region")
	}
	if strings.TrimSpace(c.Bucket) == "" {
		missing = append(missing, "bucket")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing %s", ErrConfiguration, strings.Join(missing, ", "))
	}

	switch c.Share.Backend {
	case "", ShareBackendS3:
	case ShareBackendPostgres:
		if c.Share.DatabaseURL == "" {
			return fmt.Errorf("%w: share backend %q requires databaseurl", ErrConfiguration, c.Share.Backend)
		}
	default:
		return fmt.Errorf("%w: unknown share backend %q", ErrConfiguration, c.Share.Backend)
	}
	return nil
}

// ShareBackend returns the configured share backend, s3 by default.
func (c Config) ShareBackend() string {
	if c.Share.Backend == "" {
		return ShareBackendS3
	}
	return c.Share.Backend
}

// ServeAddr returns the listen address of the HTTP API.
func (c Config) ServeAddr() string {
	if c.Serve.Addr == "" {
		return DefaultServeAddr
	}
	return c.Serve.Addr
}

// PurgeSchedule returns the cron schedule of the share code purge job.
func (c Config) PurgeSchedule() string {
	if c.Share.PurgeSchedule == "" {
		return DefaultPurgeSchedule
	}
	return c.Share.PurgeSchedule
}
