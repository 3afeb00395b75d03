// Package session wraps a single device automation session.
//
// A Session does not serialize access to the device. Callers share it
// through a lock.Lock[*Session] and only touch it from inside a task.
package session

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/devicelab-dev/wallet-glue-runner/pkg/core"
	"github.com/devicelab-dev/wallet-glue-runner/pkg/driver/appium"
)

// Defaults for element waits and retries.
const (
	DefaultWaitTimeout  = 10 * time.Second
	DefaultPollInterval = 200 * time.Millisecond
	DefaultRetryDelay   = 250 * time.Millisecond
	// TypeAttempts is the number of clear+type attempts before giving up.
	TypeAttempts = 3
)

// Automation is the remote-control surface a Session drives.
// *appium.Client satisfies it.
type Automation interface {
	FindElement(strategy, value string) (string, error)
	FindElements(strategy, value string) ([]string, error)
	ClickElement(elementID string) error
	ClearElement(elementID string) error
	SetElementValue(elementID, text string) error
	GetElementText(elementID string) (string, error)
	GetElementAttribute(elementID, name string) (string, error)
	IsElementDisplayed(elementID string) (bool, error)
	IsElementEnabled(elementID string) (bool, error)

	QueryAppState(appID string) (int, error)
	LaunchApp(appID string) error
	TerminateApp(appID string) error
	Scroll(direction, elementID string) error
	ExecuteScript(script string, args ...interface{}) (interface{}, error)

	NavigateTo(url string) error
	AcceptAlert() error
	SetImplicitWait(timeout time.Duration) error
	ReloadSession(capabilities map[string]interface{}) error
	Disconnect() error
}

var _ Automation = (*appium.Client)(nil)

// AppState mirrors the XCUITest/UiAutomator2 application state values.
type AppState int

const (
	AppNotInstalled AppState = iota
	AppNotRunning
	AppRunningInBackgroundSuspended
	AppRunningInBackground
	AppRunningInForeground
)

// String returns the string representation of AppState
func (s AppState) String() string {
	switch s {
	case AppNotInstalled:
		return "not_installed"
	case AppNotRunning:
		return "not_running"
	case AppRunningInBackgroundSuspended:
		return "background_suspended"
	case AppRunningInBackground:
		return "background"
	case AppRunningInForeground:
		return "foreground"
	default:
		return "unknown"
	}
}

// Options tunes waits and retries.
type Options struct {
	WaitTimeout  time.Duration // bound for WaitFor* calls
	PollInterval time.Duration // delay between WaitFor* polls
	RetryDelay   time.Duration // delay between clear+type attempts, negative for none
}

func (o Options) withDefaults() Options {
	if o.WaitTimeout <= 0 {
		o.WaitTimeout = DefaultWaitTimeout
	}
	if o.PollInterval <= 0 {
		o.PollInterval = DefaultPollInterval
	}
	if o.RetryDelay == 0 {
		o.RetryDelay = DefaultRetryDelay
	}
	if o.RetryDelay < 0 {
		o.RetryDelay = 0
	}
	return o
}

// Session is one live automation session.
type Session struct {
	auto   Automation
	opts   Options
	closed atomic.Bool
}

// New wraps an already connected automation session.
func New(auto Automation, opts Options) *Session {
	return &Session{auto: auto, opts: opts.withDefaults()}
}

// Automation returns the underlying automation handle.
func (s *Session) Automation() Automation {
	return s.auto
}

// Element returns a lazy handle for sel. Nothing is looked up until used.
func (s *Session) Element(sel Selector) *Element {
	return &Element{s: s, sel: sel}
}

// AppState queries the target app's state.
func (s *Session) AppState(appID string) (AppState, error) {
	if err := s.check(); err != nil {
		return AppNotInstalled, err
	}
	state, err := s.auto.QueryAppState(appID)
	if err != nil {
		return AppNotInstalled, fmt.Errorf("query app state: %w", err)
	}
	return AppState(state), nil
}

// IsForeground reports whether appID is running in the foreground.
func (s *Session) IsForeground(appID string) (bool, error) {
	state, err := s.AppState(appID)
	if err != nil {
		return false, err
	}
	return state == AppRunningInForeground, nil
}

// LaunchApp brings appID to the foreground.
func (s *Session) LaunchApp(appID string) error {
	if err := s.check(); err != nil {
		return err
	}
	return s.auto.LaunchApp(appID)
}

// TerminateApp kills appID.
func (s *Session) TerminateApp(appID string) error {
	if err := s.check(); err != nil {
		return err
	}
	return s.auto.TerminateApp(appID)
}

// Scroll scrolls inside the element matched by sel.
func (s *Session) Scroll(ctx context.Context, direction string, sel Selector) error {
	id, err := s.Element(sel).WaitForExist(ctx)
	if err != nil {
		return err
	}
	return s.auto.Scroll(direction, id)
}

// Execute runs a host-level automation script.
func (s *Session) Execute(script string, args ...interface{}) (interface{}, error) {
	if err := s.check(); err != nil {
		return nil, err
	}
	return s.auto.ExecuteScript(script, args...)
}

// NavigateTo opens url (browser sessions only).
func (s *Session) NavigateTo(url string) error {
	if err := s.check(); err != nil {
		return err
	}
	return s.auto.NavigateTo(url)
}

// AcceptAlert accepts the current system alert.
func (s *Session) AcceptAlert() error {
	if err := s.check(); err != nil {
		return err
	}
	return s.auto.AcceptAlert()
}

// SetImplicitWait sets the server-side element lookup timeout.
func (s *Session) SetImplicitWait(timeout time.Duration) error {
	if err := s.check(); err != nil {
		return err
	}
	return s.auto.SetImplicitWait(timeout)
}

// Reload replaces the session with one created from capabilities.
func (s *Session) Reload(capabilities map[string]interface{}) error {
	if err := s.check(); err != nil {
		return err
	}
	if err := s.auto.ReloadSession(capabilities); err != nil {
		return fmt.Errorf("reload session: %w", err)
	}
	return nil
}

// Close deletes the remote session. Later calls fail with core.ErrNoSession.
func (s *Session) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	return s.auto.Disconnect()
}

// Closed reports whether Close has been called.
func (s *Session) Closed() bool {
	return s.closed.Load()
}

func (s *Session) check() error {
	if s.closed.Load() {
		return core.ErrNoSession
	}
	return nil
}
