// Package config handles configuration for the wallet glue runner.
package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/devicelab-dev/wallet-glue-runner/pkg/core"
)

// Defaults
const (
	DefaultAppiumURL      = "http://127.0.0.1:4723"
	DefaultBundleID       = "io.metamask.MetaMask"
	DefaultDeviceName     = "iPhone 13"
	DefaultXcodeOrgID     = "G28G5QGYX9"
	DefaultXcodeSigningID = "iPhone Developer"
	DefaultTestURL        = "https://wallet-test-framework.herokuapp.com/"
	DefaultPassword       = "ethereum1"
	DefaultSeed           = "basket cradle actor pizza similar liar suffer another all fade flag brave"
	DefaultGlueHost       = "127.0.0.1"
	DefaultGluePort       = 3001
	DefaultPollInterval   = 500 * time.Millisecond
	DefaultImplicitWait   = 10 * time.Second
	DefaultWaitTimeout    = 10 * time.Second
)

// Config represents the runner configuration (config.yaml).
type Config struct {
	// Automation server
	AppiumURL string `yaml:"appiumUrl"`

	// Device settings
	UDID            string `yaml:"udid"`
	PlatformVersion string `yaml:"platformVersion"`
	DeviceName      string `yaml:"deviceName"`
	XcodeOrgID      string `yaml:"xcodeOrgId"`
	XcodeSigningID  string `yaml:"xcodeSigningId"`

	// Wallet settings
	BundleID string `yaml:"bundleId"`
	Password string `yaml:"password"`
	Seed     string `yaml:"seed"`

	// Test page
	TestURL string     `yaml:"testUrl"`
	Glue    GlueConfig `yaml:"glue"`

	// Detectors names the wallet prompts the watcher looks for, in order.
	Detectors []string `yaml:"detectors"`

	// Timing
	PollInterval time.Duration `yaml:"pollInterval"` // watcher cycle delay
	ImplicitWait time.Duration `yaml:"implicitWait"` // server-side lookup timeout
	WaitTimeout  time.Duration `yaml:"waitTimeout"`  // client-side WaitFor* bound
}

// GlueConfig is where the glue server listens.
type GlueConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
	// AdvertiseHost is the host the device uses to reach the server.
	// Defaults to Host.
	AdvertiseHost string `yaml:"advertiseHost"`
}

// Default returns a configuration with every default filled in.
func Default() *Config {
	return &Config{
		AppiumURL:      DefaultAppiumURL,
		DeviceName:     DefaultDeviceName,
		XcodeOrgID:     DefaultXcodeOrgID,
		XcodeSigningID: DefaultXcodeSigningID,
		BundleID:       DefaultBundleID,
		Password:       DefaultPassword,
		Seed:           DefaultSeed,
		TestURL:        DefaultTestURL,
		Glue: GlueConfig{
			Host: DefaultGlueHost,
			Port: DefaultGluePort,
		},
		Detectors:    []string{"connectAccounts"},
		PollInterval: DefaultPollInterval,
		ImplicitWait: DefaultImplicitWait,
		WaitTimeout:  DefaultWaitTimeout,
	}
}

// Load loads configuration from a file on top of the defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path) //#nosec G304 -- user-provided config file
	if err != nil {
		return nil, err
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, core.ErrInvalidConfig.WithCause(err).WithDetails(map[string]interface{}{"path": path})
	}

	return cfg, nil
}

// LoadFromDir looks for config.yaml or config.yml in the directory.
func LoadFromDir(dir string) (*Config, error) {
	// Try config.yaml first
	configPath := filepath.Join(dir, "config.yaml")
	if _, err := os.Stat(configPath); err == nil {
		return Load(configPath)
	}

	// Try config.yml
	configPath = filepath.Join(dir, "config.yml")
	if _, err := os.Stat(configPath); err == nil {
		return Load(configPath)
	}

	// No config file found, return defaults
	return Default(), nil
}

// Validate checks that the device can be addressed and values are usable.
func (c *Config) Validate() error {
	if c.UDID == "" {
		return missing("udid")
	}
	if c.PlatformVersion == "" {
		return missing("platformVersion")
	}
	if c.BundleID == "" {
		return missing("bundleId")
	}
	if _, err := url.ParseRequestURI(c.AppiumURL); err != nil {
		return invalid("appiumUrl", err)
	}
	if _, err := url.ParseRequestURI(c.TestURL); err != nil {
		return invalid("testUrl", err)
	}
	if c.Glue.Port < 0 || c.Glue.Port > 65535 {
		return invalid("glue.port", fmt.Errorf("port %d out of range", c.Glue.Port))
	}
	if len(c.Detectors) == 0 {
		return missing("detectors")
	}
	if c.PollInterval <= 0 {
		return invalid("pollInterval", fmt.Errorf("must be positive, got %s", c.PollInterval))
	}
	return nil
}

func missing(field string) error {
	return core.ErrMissingRequired.
		WithMessage("missing required field: " + field).
		WithDetails(map[string]interface{}{"field": field})
}

func invalid(field string, cause error) error {
	return core.ErrInvalidConfig.
		WithMessage("invalid " + field).
		WithCause(cause).
		WithDetails(map[string]interface{}{"field": field})
}
