package cli

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"

	"github.com/devicelab-dev/wallet-glue-runner/pkg/config"
	"github.com/devicelab-dev/wallet-glue-runner/pkg/glue"
	"github.com/devicelab-dev/wallet-glue-runner/pkg/logger"
	"github.com/devicelab-dev/wallet-glue-runner/pkg/metamask"
)

func runAction(c *cli.Context) error {
	cfg, err := buildConfig(c)
	if err != nil {
		return err
	}

	logger.SetConsole(c.App.ErrWriter)
	logger.SetVerbose(c.Bool("verbose"))
	logPath := c.String("log-file")
	if logPath == "" {
		if logPath, err = config.DefaultLogPath(time.Now()); err != nil {
			fmt.Fprintf(c.App.ErrWriter, "Warning: %v\n", err)
		}
	}
	if err := logger.Init(logPath); err != nil {
		fmt.Fprintf(c.App.ErrWriter, "Warning: Failed to initialize logger: %v\n", err)
	}
	defer logger.Close()

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	value, err := Run(ctx, cfg)
	if err != nil {
		logger.Error("%v", err)
		return err
	}
	_, err = fmt.Fprint(c.App.Writer, value)
	return err
}

// buildConfig layers flags over the config file over defaults.
func buildConfig(c *cli.Context) (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if path := c.String("config"); path != "" {
		cfg, err = config.Load(path)
	} else {
		cfg, err = config.LoadHome()
	}
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	if c.IsSet("udid") {
		cfg.UDID = c.String("udid")
	}
	if c.IsSet("platform-version") {
		cfg.PlatformVersion = c.String("platform-version")
	}
	if c.IsSet("test-url") {
		cfg.TestURL = c.String("test-url")
	}
	if c.IsSet("appium-url") {
		cfg.AppiumURL = c.String("appium-url")
	}
	if c.IsSet("glue-host") {
		cfg.Glue.Host = c.String("glue-host")
	}
	if c.IsSet("glue-port") {
		cfg.Glue.Port = c.Int("glue-port")
	}
	if c.IsSet("advertise-host") {
		cfg.Glue.AdvertiseHost = c.String("advertise-host")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Run serves the glue, prepares the wallet, opens the test page and waits for
// the final report. It returns the report text.
func Run(ctx context.Context, cfg *config.Config, opts ...metamask.Option) (string, error) {
	srv := glue.NewServer(glue.ServerConfig{
		Host:          cfg.Glue.Host,
		Port:          cfg.Glue.Port,
		AdvertiseHost: cfg.Glue.AdvertiseHost,
	})
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Close(shutdownCtx); err != nil {
			logger.Warn("Closing glue server: %v", err)
		}
	}()

	wallet, err := metamask.New(ctx, cfg, srv, opts...)
	if err != nil {
		return "", err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := wallet.Close(closeCtx); err != nil {
			logger.Warn("Releasing device: %v", err)
		}
	}()
	if err := srv.Start(wallet); err != nil {
		return "", err
	}

	pageURL, err := testPageURL(cfg.TestURL, srv.URL())
	if err != nil {
		return "", err
	}

	var report glue.Report
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return wallet.Launch(gctx, pageURL)
	})
	g.Go(func() error {
		var err error
		report, err = wallet.WaitReport(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return "", err
	}

	logger.Info("Report received (%s)", report.Format)
	return report.Text()
}

// testPageURL points the test page at the glue server through its fragment.
func testPageURL(testURL, glueURL string) (string, error) {
	u, err := url.Parse(testURL)
	if err != nil {
		return "", fmt.Errorf("invalid test url %q: %w", testURL, err)
	}
	u.Fragment = "glue=" + glueURL
	return u.String(), nil
}
