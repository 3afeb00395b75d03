// Package cli provides the command-line interface for the MetaMask iOS glue.
package cli

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"
)

// Version is set at build time.
var Version = "dev"

// newFlags returns the run flags. Unset flags fall back to the config file,
// then to built-in defaults.
func newFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:     "udid",
			Usage:    "UDID of the iOS device running MetaMask",
			Required: true,
			EnvVars:  []string{"GLUE_UDID"},
		},
		&cli.StringFlag{
			Name:     "platform-version",
			Usage:    "iOS version of the device",
			Required: true,
			EnvVars:  []string{"GLUE_PLATFORM_VERSION"},
		},
		&cli.StringFlag{
			Name:    "test-url",
			Usage:   "Wallet test framework page to open",
			Value:   "https://wallet-test-framework.herokuapp.com/",
			EnvVars: []string{"GLUE_TEST_URL"},
		},
		&cli.StringFlag{
			Name:    "appium-url",
			Usage:   "Appium server URL",
			Value:   "http://127.0.0.1:4723",
			EnvVars: []string{"APPIUM_URL"},
		},
		&cli.StringFlag{
			Name:  "glue-host",
			Usage: "Host the glue server binds to",
			Value: "127.0.0.1",
		},
		&cli.IntFlag{
			Name:  "glue-port",
			Usage: "Port the glue server binds to",
			Value: 3001,
		},
		&cli.StringFlag{
			Name:  "advertise-host",
			Usage: "Host the device uses to reach the glue server (default: --glue-host)",
		},
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Usage:   "Path to config.yaml (default: config.yaml in the runner home)",
		},
		&cli.BoolFlag{
			Name:    "verbose",
			Usage:   "Enable verbose logging",
			EnvVars: []string{"GLUE_VERBOSE"},
		},
		&cli.StringFlag{
			Name:  "log-file",
			Usage: "Log file path (default: <home>/logs/glue-<timestamp>.log)",
		},
	}
}

// NewApp builds the CLI application.
func NewApp() *cli.App {
	return &cli.App{
		Name:    "glue-metamask-ios",
		Usage:   "Wallet test framework glue for MetaMask on iOS",
		Version: Version,
		Description: `Drives MetaMask on an iOS device through Appium so the wallet test
framework can exercise it. On completion the test report is printed to
standard output.

Examples:
  glue-metamask-ios --udid 00008030-001A --platform-version 16.4
  glue-metamask-ios --udid 00008030-001A --platform-version 16.4 \
    --glue-host 0.0.0.0 --advertise-host 192.168.2.197`,
		Flags:  newFlags(),
		Action: runAction,
	}
}

// Execute runs the CLI.
func Execute() {
	if err := NewApp().Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
