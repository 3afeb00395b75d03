package metamask

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/devicelab-dev/wallet-glue-runner/pkg/config"
	"github.com/devicelab-dev/wallet-glue-runner/pkg/core"
	"github.com/devicelab-dev/wallet-glue-runner/pkg/glue"
	"github.com/devicelab-dev/wallet-glue-runner/pkg/logger"
	"github.com/devicelab-dev/wallet-glue-runner/pkg/session"
)

var errReportReceived = errors.New("report already received")

// Glue answers glue actions by driving MetaMask.
type Glue struct {
	cfg    *config.Config
	driver *Driver

	state atomic.Int32

	mu      sync.Mutex
	browser *session.Session

	reportOnce sync.Once
	reported   atomic.Bool
	report     chan glue.Report
}

var _ glue.Handler = (*Glue)(nil)

// New connects to the wallet, onboards it and starts the watcher. Events are
// published through emitter.
func New(ctx context.Context, cfg *config.Config, emitter glue.Emitter, opts ...Option) (*Glue, error) {
	g := &Glue{
		cfg:    cfg,
		report: make(chan glue.Report, 1),
	}
	g.setState(core.StateInitializing)

	d, err := NewDriver(ctx, cfg, emitter, opts...)
	if err != nil {
		g.setState(core.StateStopped)
		return nil, err
	}
	if err := d.Setup(ctx); err != nil {
		g.setState(core.StateStopped)
		_ = d.Stop(context.Background())
		return nil, fmt.Errorf("setup: %w", err)
	}
	g.driver = d

	d.Start(ctx)
	g.setState(core.StateReady)
	return g, nil
}

// State returns the adapter's lifecycle state.
func (g *Glue) State() core.SessionState {
	return core.SessionState(g.state.Load())
}

func (g *Glue) setState(s core.SessionState) {
	logger.Debug("Adapter %s", s)
	g.state.Store(int32(s))
}

// Driver returns the wallet driver.
func (g *Glue) Driver() *Driver {
	return g.driver
}

// Launch opens url in Safari, connects it to MetaMask through WalletConnect
// and hands the device back to the wallet session.
func (g *Glue) Launch(ctx context.Context, url string) error {
	if err := g.accepting(); err != nil {
		return err
	}
	return g.driver.lock.Run(ctx, func(s *session.Session) error {
		logger.Info("Opening %s", url)
		auto, err := g.driver.dial(g.cfg.AppiumURL, browserCapabilities(g.cfg))
		if err != nil {
			return fmt.Errorf("browser session: %w", err)
		}
		b := session.New(auto, sessionOptions(g.cfg))
		g.mu.Lock()
		g.browser = b
		g.mu.Unlock()

		if err := b.SetImplicitWait(g.cfg.ImplicitWait); err != nil {
			return fmt.Errorf("browser implicit wait: %w", err)
		}
		if err := openWalletFromPage(ctx, b, url); err != nil {
			return err
		}

		// MetaMask is now in front; a session without bundleId attaches to it
		// instead of relaunching.
		return s.Reload(deviceCapabilities(g.cfg))
	})
}

// RequestAccounts answers the pending connect dialog.
func (g *Glue) RequestAccounts(ctx context.Context, action *glue.RequestAccounts) error {
	if err := g.accepting(); err != nil {
		return err
	}
	if len(action.Accounts) > 0 {
		addrs, err := glue.ParseAddresses(action.Accounts)
		if err != nil {
			return err
		}
		for _, a := range addrs {
			if a != Account1 {
				return core.NotImplemented("connecting account " + a.Hex())
			}
		}
	}

	gate := g.driver.Gate()
	return g.driver.lock.Run(ctx, func(s *session.Session) error {
		p, ok := gate.Current()
		if !ok || p.ID != action.UUID {
			return core.ErrCorrelationMismatch.WithDetails(map[string]interface{}{
				"uuid": string(action.UUID),
			})
		}

		button := connectApproveBtn
		if action.Action == glue.DecisionReject {
			button = connectCancelBtn
		}
		el := s.Element(button)
		if err := el.WaitForClickable(ctx); err != nil {
			return err
		}
		if err := el.Click(); err != nil {
			return err
		}

		gate.Resolve(action.UUID)
		logger.Info("Resolved %s (%s)", action.UUID, decision(action.Action))
		return nil
	})
}

// SignMessage is not supported yet.
func (g *Glue) SignMessage(ctx context.Context, _ *glue.SignMessage) error {
	return g.unsupported(ctx, glue.ActionSignMessage)
}

// SignTransaction is not supported yet.
func (g *Glue) SignTransaction(ctx context.Context, _ *glue.SignTransaction) error {
	return g.unsupported(ctx, glue.ActionSignTransaction)
}

// SendTransaction is not supported yet.
func (g *Glue) SendTransaction(ctx context.Context, _ *glue.SendTransaction) error {
	return g.unsupported(ctx, glue.ActionSendTransaction)
}

// ActivateChain is not supported yet.
func (g *Glue) ActivateChain(ctx context.Context, _ *glue.ActivateChain) error {
	return g.unsupported(ctx, glue.ActionActivateChain)
}

// SwitchEthereumChain is not supported yet. It fails without waiting for the
// device.
func (g *Glue) SwitchEthereumChain(context.Context, *glue.SwitchEthereumChain) error {
	return core.NotImplemented(glue.ActionSwitchEthereumChain)
}

// Report stops the watcher, deletes the sessions and publishes the report.
// Only the first report is accepted.
func (g *Glue) Report(ctx context.Context, action *glue.Report) error {
	first := false
	g.reportOnce.Do(func() { first = true })
	if !first {
		return errReportReceived
	}

	err := g.teardown(ctx)
	g.reported.Store(true)
	g.report <- *action
	close(g.report)
	return err
}

// Close releases the device without a report. It is a no-op once a report
// has been handled. Waiters on the report get core.ErrNoSession.
func (g *Glue) Close(ctx context.Context) error {
	first := false
	g.reportOnce.Do(func() { first = true })
	if !first {
		return nil
	}

	logger.Info("Shutting down without a report")
	err := g.teardown(ctx)
	close(g.report)
	return err
}

func (g *Glue) teardown(ctx context.Context) error {
	g.setState(core.StateStopping)
	err := g.driver.Stop(ctx)
	if err != nil {
		logger.Error("Stopping wallet session: %v", err)
	}

	g.mu.Lock()
	browser := g.browser
	g.browser = nil
	g.mu.Unlock()
	if browser != nil {
		if cerr := browser.Close(); cerr != nil {
			logger.Warn("Closing browser session: %v", cerr)
		}
	}

	g.setState(core.StateStopped)
	return err
}

// ReportReady yields the report once, then closes.
func (g *Glue) ReportReady() <-chan glue.Report {
	return g.report
}

// WaitReport blocks until the report arrives or ctx ends.
func (g *Glue) WaitReport(ctx context.Context) (glue.Report, error) {
	select {
	case r, ok := <-g.report:
		if !ok {
			if g.reported.Load() {
				return glue.Report{}, errReportReceived
			}
			return glue.Report{}, core.ErrNoSession
		}
		return r, nil
	case <-ctx.Done():
		return glue.Report{}, ctx.Err()
	}
}

func (g *Glue) unsupported(ctx context.Context, action string) error {
	if err := g.accepting(); err != nil {
		return err
	}
	return g.driver.lock.Run(ctx, func(*session.Session) error {
		return core.NotImplemented(action)
	})
}

func (g *Glue) accepting() error {
	if state := g.State(); !state.AcceptsActions() {
		return core.ErrNoSession.WithDetails(map[string]interface{}{"state": state.String()})
	}
	return nil
}

func decision(d glue.Decision) glue.Decision {
	if d == "" {
		return glue.DecisionApprove
	}
	return d
}
