// Package metamask drives the MetaMask iOS app for the wallet test framework.
package metamask

import (
	"context"
	"fmt"

	"github.com/devicelab-dev/wallet-glue-runner/pkg/config"
	"github.com/devicelab-dev/wallet-glue-runner/pkg/core"
	"github.com/devicelab-dev/wallet-glue-runner/pkg/driver/appium"
	"github.com/devicelab-dev/wallet-glue-runner/pkg/glue"
	"github.com/devicelab-dev/wallet-glue-runner/pkg/lock"
	"github.com/devicelab-dev/wallet-glue-runner/pkg/logger"
	"github.com/devicelab-dev/wallet-glue-runner/pkg/session"
	"github.com/devicelab-dev/wallet-glue-runner/pkg/watcher"
)

// Dialer opens an automation session against serverURL.
type Dialer func(serverURL string, caps map[string]interface{}) (session.Automation, error)

// DialAppium connects a new Appium session.
func DialAppium(serverURL string, caps map[string]interface{}) (session.Automation, error) {
	client := appium.NewClient(serverURL)
	if err := client.Connect(caps); err != nil {
		return nil, core.ErrServerUnreachable.WithCause(err).WithDetails(map[string]interface{}{
			"url": serverURL,
		})
	}
	return client, nil
}

// Option customises a Driver.
type Option func(*options)

type options struct {
	dial Dialer
}

// WithDialer replaces the Appium dialer.
func WithDialer(d Dialer) Option {
	return func(o *options) { o.dial = d }
}

// Driver owns the wallet session, the lock guarding it and the watcher.
type Driver struct {
	cfg     *config.Config
	dial    Dialer
	lock    *lock.Lock[*session.Session]
	watcher *watcher.Watcher
}

// NewDriver connects to the wallet app and prepares the watcher. The watcher
// does not poll until Start.
func NewDriver(ctx context.Context, cfg *config.Config, emitter glue.Emitter, opts ...Option) (*Driver, error) {
	o := options{dial: DialAppium}
	for _, opt := range opts {
		opt(&o)
	}

	detectors, err := detectorsByName(cfg.Detectors)
	if err != nil {
		return nil, err
	}

	logger.Info("Connecting to %s (%s)", cfg.AppiumURL, cfg.BundleID)
	auto, err := o.dial(cfg.AppiumURL, walletCapabilities(cfg))
	if err != nil {
		return nil, err
	}
	s := session.New(auto, sessionOptions(cfg))
	if err := s.SetImplicitWait(cfg.ImplicitWait); err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("set implicit wait: %w", err)
	}

	d := &Driver{
		cfg:  cfg,
		dial: o.dial,
		lock: lock.New(s),
	}
	d.watcher = watcher.New(watcher.Config{
		Interval:  cfg.PollInterval,
		Lock:      d.lock,
		Probe:     d.foreground,
		Prelude:   d.UnlockWithPassword,
		Detectors: detectors,
		Emitter:   emitter,
	})
	return d, nil
}

func sessionOptions(cfg *config.Config) session.Options {
	return session.Options{WaitTimeout: cfg.WaitTimeout}
}

// Lock returns the lock guarding the wallet session.
func (d *Driver) Lock() *lock.Lock[*session.Session] {
	return d.lock
}

// Gate returns the pending-event slot.
func (d *Driver) Gate() *watcher.Gate {
	return d.watcher.Gate()
}

// Watcher returns the background watcher.
func (d *Driver) Watcher() *watcher.Watcher {
	return d.watcher
}

// Start runs the watcher until Stop or ctx ends.
func (d *Driver) Start(ctx context.Context) {
	go d.watcher.Run(ctx)
}

// Stop halts the watcher and deletes the wallet session once every queued
// task has run.
func (d *Driver) Stop(ctx context.Context) error {
	d.watcher.Stop()
	return d.lock.Run(ctx, func(s *session.Session) error {
		logger.Info("Deleting wallet session")
		return s.Close()
	})
}

func (d *Driver) foreground(s *session.Session) (bool, error) {
	return s.IsForeground(d.cfg.BundleID)
}

// Setup walks through onboarding: imports the seed phrase, sets the password,
// restarts the app and unlocks it.
func (d *Driver) Setup(ctx context.Context) error {
	return d.lock.Run(ctx, func(s *session.Session) error {
		return d.setup(ctx, s)
	})
}

func (d *Driver) setup(ctx context.Context, s *session.Session) error {
	optional("get started", func() error {
		return waitAndClick(ctx, s, getStartedButton)
	})

	if err := waitAndClick(ctx, s, importWalletButton); err != nil {
		return fmt.Errorf("import wallet: %w", err)
	}

	if err := s.Scroll(ctx, "down", metricsScrollView); err != nil {
		return fmt.Errorf("scroll metrics opt-in: %w", err)
	}
	if err := s.Element(metricsDenyButton).Click(); err != nil {
		return fmt.Errorf("deny metrics: %w", err)
	}

	optional("terms of use", func() error {
		if err := s.Element(termsScrollEnd).Click(); err != nil {
			return err
		}
		if err := s.Element(termsCheckbox).Click(); err != nil {
			return err
		}
		accept := s.Element(termsAcceptButton)
		if err := accept.WaitForEnabled(ctx); err != nil {
			return err
		}
		return accept.Click()
	})

	if err := s.Element(showSeedButton).Click(); err != nil {
		return fmt.Errorf("show seed field: %w", err)
	}
	if err := typeInto(s, seedTextView, d.cfg.Seed); err != nil {
		return fmt.Errorf("enter seed phrase: %w", err)
	}
	if err := typeInto(s, newPasswordField, d.cfg.Password); err != nil {
		return fmt.Errorf("enter new password: %w", err)
	}
	if err := typeInto(s, confirmPassword, d.cfg.Password); err != nil {
		return fmt.Errorf("confirm password: %w", err)
	}
	if err := s.Element(importSeedButton).WaitForEnabled(ctx); err != nil {
		return fmt.Errorf("import button: %w", err)
	}
	if err := s.ClickWhilePresent(ctx, importSeedButton); err != nil {
		return fmt.Errorf("import: %w", err)
	}

	// The completion screen has no reliably clickable "Done"; a restart
	// lands on the lock screen instead.
	if err := s.TerminateApp(d.cfg.BundleID); err != nil {
		return fmt.Errorf("terminate app: %w", err)
	}
	if err := s.LaunchApp(d.cfg.BundleID); err != nil {
		return fmt.Errorf("launch app: %w", err)
	}

	if err := d.UnlockWithPassword(ctx, s); err != nil {
		return fmt.Errorf("unlock: %w", err)
	}
	logger.Info("Wallet imported and unlocked")
	return nil
}

// UnlockWithPassword types the password into the lock screen and presses
// unlock until it goes away. It succeeds without doing anything when the
// wallet is already unlocked. The caller must hold the lock.
func (d *Driver) UnlockWithPassword(ctx context.Context, s *session.Session) error {
	if err := s.ClearAndType(ctx, passwordField, d.cfg.Password); err != nil {
		return err
	}
	return s.ClickWhilePresent(ctx, unlockButton)
}

func optional(step string, fn func() error) {
	if err := fn(); err != nil {
		logger.Debug("Skipping optional step %q: %v", step, err)
	}
}

func waitAndClick(ctx context.Context, s *session.Session, sel session.Selector) error {
	el := s.Element(sel)
	if _, err := el.WaitForExist(ctx); err != nil {
		return err
	}
	return el.Click()
}

func typeInto(s *session.Session, sel session.Selector, text string) error {
	el := s.Element(sel)
	if err := el.Clear(); err != nil {
		return err
	}
	return el.AddValue(text)
}
