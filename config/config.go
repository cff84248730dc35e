// Package config loads the YAML configuration of configconsole and opens
// the repositories it declares.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// Repository types.
const (
	TypeFile   = "fs"
	TypeGit    = "git"
	TypeS3     = "s3"
	TypeGCS    = "gcs"
	TypeSQLite = "sqlite"
	TypeHTTP   = "http"
)

const (
	DefaultAddr            = ":8080"
	DefaultRefreshInterval = 30 * time.Second
	MinRefreshInterval     = 5 * time.Second
)

// reservedNames collide with the server's own routes.
var reservedNames = map[string]bool{"health": true, "ready": true, "status": true, "metrics": true}

type Config struct {
	LogLevel     string             `yaml:"log_level"`
	LogFormat    string             `yaml:"log_format"`
	Server       ServerConfig       `yaml:"server"`
	Repositories []RepositoryConfig `yaml:"repositories"`
}

type ServerConfig struct {
	Addr            string        `yaml:"addr"`
	AuthKey         string        `yaml:"auth_key"`
	RefreshInterval time.Duration `yaml:"refresh_interval"`
}

// RepositoryConfig declares one store. Which fields apply depends on Type.
type RepositoryConfig struct {
	Name      string `yaml:"name"`
	Type      string `yaml:"type"`
	Path      string `yaml:"path"`
	URL       string `yaml:"url"`
	Branch    string `yaml:"branch"`
	Bucket    string `yaml:"bucket"`
	Object    string `yaml:"object"`
	Region    string `yaml:"region"`
	Anonymous bool   `yaml:"anonymous"`
	APIKey    string `yaml:"api_key"`
	Username  string `yaml:"username"`
	Password  string `yaml:"password"`
	Watch     bool   `yaml:"watch"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	c := &Config{}
	c.applyDefaults()
	return c
}

// Load reads, defaults and validates the configuration file at path.
// Unknown fields are rejected.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	return Parse(data)
}

// Parse decodes, defaults and validates a YAML configuration.
func Parse(data []byte) (*Config, error) {
	c := &Config{}
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	c.applyDefaults()
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Config) applyDefaults() {
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.LogFormat == "" {
		c.LogFormat = "text"
	}
	if c.Server.Addr == "" {
		c.Server.Addr = DefaultAddr
	}
	if c.Server.RefreshInterval == 0 {
		c.Server.RefreshInterval = DefaultRefreshInterval
	}
	if c.Server.RefreshInterval < MinRefreshInterval {
		logrus.WithField("refresh_interval", c.Server.RefreshInterval).Warn("refresh interval too low, setting it to 5 seconds")
		c.Server.RefreshInterval = MinRefreshInterval
	}
	for i := range c.Repositories {
		if c.Repositories[i].Type == "" {
			c.Repositories[i].Type = TypeFile
		}
	}
}

// Validate checks the log settings and every repository declaration.
func (c *Config) Validate() error {
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		return err
	}
	if c.LogFormat != "text" && c.LogFormat != "json" {
		return fmt.Errorf("unknown log format %q", c.LogFormat)
	}
	seen := map[string]bool{}
	for _, rc := range c.Repositories {
		if err := rc.Validate(); err != nil {
			return err
		}
		if seen[rc.Name] {
			return fmt.Errorf("duplicate repository name %q", rc.Name)
		}
		seen[rc.Name] = true
	}
	return nil
}

// Validate checks that the fields Type needs are set.
func (rc RepositoryConfig) Validate() error {
	if rc.Name == "" {
		return errors.New("repository name is required")
	}
	if strings.ContainsAny(rc.Name, "/ {}") || reservedNames[rc.Name] {
		return fmt.Errorf("invalid repository name %q", rc.Name)
	}
	var missing []string
	need := func(field, value string) {
		if value == "" {
			missing = append(missing, field)
		}
	}
	switch rc.Type {
	case TypeFile, TypeSQLite:
		need("path", rc.Path)
	case TypeGit:
		need("url", rc.URL)
		need("path", rc.Path)
	case TypeS3, TypeGCS:
		need("bucket", rc.Bucket)
		need("object", rc.Object)
	case TypeHTTP:
		need("url", rc.URL)
	default:
		return fmt.Errorf("repository %q: unknown type %q", rc.Name, rc.Type)
	}
	if len(missing) > 0 {
		return fmt.Errorf("repository %q: %s is required", rc.Name, strings.Join(missing, ", "))
	}
	return nil
}

// Repository returns the declaration named name.
func (c *Config) Repository(name string) (RepositoryConfig, error) {
	for _, rc := range c.Repositories {
		if rc.Name == name {
			return rc, nil
		}
	}
	return RepositoryConfig{}, fmt.Errorf("repository %q is not configured", name)
}

// ConfigureLogging applies the log level and format to the logrus standard
// logger.
func (c *Config) ConfigureLogging() error {
	level, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		return err
	}
	logrus.SetLevel(level)
	if c.LogFormat == "json" {
		logrus.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	return nil
}
