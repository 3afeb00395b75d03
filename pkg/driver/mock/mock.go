// Package mock provides a scriptable automation session for testing without
// a real device.
package mock

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/devicelab-dev/wallet-glue-runner/pkg/driver/appium"
)

// Element is a fake UI element keyed by its locator value.
type Element struct {
	ID         string
	Present    bool
	Enabled    bool
	Displayed  bool
	Text       string
	Attributes map[string]string

	// Value holds the text typed since the last clear.
	Value string

	// OnClick runs after a click is recorded. Returning an error fails the click.
	OnClick func(e *Element) error
	// OnValue runs before typed text is applied. Returning an error fails the call.
	OnValue func(e *Element, text string) error

	Clicks int
	Clears int
	Typed  []string

	implicit bool
}

// Config configures mock automation behavior.
type Config struct {
	// Platform reported by the session (default "ios").
	Platform string
	// AppState returned by QueryAppState (default 4, foreground).
	AppState int
	// AppStateErr makes QueryAppState fail.
	AppStateErr error
	// Delay is added to every call.
	Delay time.Duration
	// OnExecute answers ExecuteScript. Nil returns (nil, nil).
	OnExecute func(script string, args []interface{}) (interface{}, error)
	// AlertFailures is how many AcceptAlert calls fail before one succeeds.
	AlertFailures int
	// Permissive makes unknown locators resolve to a present element that
	// disappears after its first click.
	Permissive bool
}

// Automation is a fake session satisfying session.Automation.
type Automation struct {
	mu       sync.Mutex
	cfg      Config
	elements map[string]*Element
	byID     map[string]*Element
	nextID   int

	calls        []string
	reloads      []map[string]interface{}
	navigated    []string
	disconnected bool
}

// New creates a new mock automation session.
func New(cfg Config) *Automation {
	if cfg.Platform == "" {
		cfg.Platform = "ios"
	}
	if cfg.AppState == 0 && cfg.AppStateErr == nil {
		cfg.AppState = 4
	}
	return &Automation{
		cfg:      cfg,
		elements: make(map[string]*Element),
		byID:     make(map[string]*Element),
	}
}

// Add registers a present, enabled, displayed element reachable by value
// (the locator string) and returns it for further tweaking.
func (a *Automation) Add(value string) *Element {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.addLocked(value)
}

func (a *Automation) addLocked(value string) *Element {
	a.nextID++
	e := &Element{
		ID:         fmt.Sprintf("mock-%d", a.nextID),
		Present:    true,
		Enabled:    true,
		Displayed:  true,
		Attributes: make(map[string]string),
	}
	a.elements[value] = e
	a.byID[e.ID] = e
	return e
}

// Get returns the element registered for value, or nil.
func (a *Automation) Get(value string) *Element {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.elements[value]
}

// SetPresent toggles an element's presence.
func (a *Automation) SetPresent(value string, present bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if e := a.elements[value]; e != nil {
		e.Present = present
	}
}

// SetAppState changes the value returned by QueryAppState.
func (a *Automation) SetAppState(state int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.cfg.AppState = state
	a.cfg.AppStateErr = nil
}

// Calls returns a copy of the recorded calls.
func (a *Automation) Calls() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]string(nil), a.calls...)
}

// CountCalls returns how many recorded calls start with prefix.
func (a *Automation) CountCalls(prefix string) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	n := 0
	for _, c := range a.calls {
		if strings.HasPrefix(c, prefix) {
			n++
		}
	}
	return n
}

// Reloads returns the capabilities passed to ReloadSession.
func (a *Automation) Reloads() []map[string]interface{} {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]map[string]interface{}(nil), a.reloads...)
}

// Navigated returns the URLs passed to NavigateTo.
func (a *Automation) Navigated() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]string(nil), a.navigated...)
}

// Disconnected reports whether Disconnect was called.
func (a *Automation) Disconnected() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.disconnected
}

func (a *Automation) record(format string, v ...interface{}) {
	a.mu.Lock()
	a.calls = append(a.calls, fmt.Sprintf(format, v...))
	delay := a.cfg.Delay
	a.mu.Unlock()

	if delay > 0 {
		time.Sleep(delay)
	}
}

func noSuchElement(what string) error {
	return &appium.WebDriverError{Status: 404, Code: "no such element", Message: what}
}

func (a *Automation) lookupID(id string) (*Element, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	e := a.byID[id]
	if e == nil || !e.Present {
		return nil, &appium.WebDriverError{Status: 404, Code: "stale element reference", Message: id}
	}
	return e, nil
}

// lookupLocked must be called with mu held.
func (a *Automation) lookupLocked(value string) *Element {
	e := a.elements[value]
	if e == nil && a.cfg.Permissive {
		e = a.addLocked(value)
		e.implicit = true
	}
	return e
}

// FindElement returns the ID of a present element.
func (a *Automation) FindElement(strategy, value string) (string, error) {
	a.record("find %s", value)
	a.mu.Lock()
	defer a.mu.Unlock()
	e := a.lookupLocked(value)
	if e == nil || !e.Present {
		return "", noSuchElement(value)
	}
	return e.ID, nil
}

// FindElements returns zero or one IDs.
func (a *Automation) FindElements(strategy, value string) ([]string, error) {
	a.record("findAll %s", value)
	a.mu.Lock()
	defer a.mu.Unlock()
	e := a.lookupLocked(value)
	if e == nil || !e.Present {
		return nil, nil
	}
	return []string{e.ID}, nil
}

// ClickElement records a click.
func (a *Automation) ClickElement(elementID string) error {
	a.record("click %s", elementID)
	e, err := a.lookupID(elementID)
	if err != nil {
		return err
	}
	a.mu.Lock()
	e.Clicks++
	if e.implicit {
		e.Present = false
	}
	hook := e.OnClick
	a.mu.Unlock()
	if hook != nil {
		return hook(e)
	}
	return nil
}

// ClearElement empties the element's value.
func (a *Automation) ClearElement(elementID string) error {
	a.record("clear %s", elementID)
	e, err := a.lookupID(elementID)
	if err != nil {
		return err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	e.Clears++
	e.Value = ""
	return nil
}

// SetElementValue appends typed text.
func (a *Automation) SetElementValue(elementID, text string) error {
	a.record("type %s", elementID)
	e, err := a.lookupID(elementID)
	if err != nil {
		return err
	}
	a.mu.Lock()
	hook := e.OnValue
	a.mu.Unlock()
	if hook != nil {
		if err := hook(e, text); err != nil {
			return err
		}
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	e.Typed = append(e.Typed, text)
	e.Value += text
	return nil
}

// GetElementText returns the element's text.
func (a *Automation) GetElementText(elementID string) (string, error) {
	a.record("text %s", elementID)
	e, err := a.lookupID(elementID)
	if err != nil {
		return "", err
	}
	return e.Text, nil
}

// GetElementAttribute returns an attribute value.
func (a *Automation) GetElementAttribute(elementID, name string) (string, error) {
	a.record("attribute %s %s", elementID, name)
	e, err := a.lookupID(elementID)
	if err != nil {
		return "", err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	return e.Attributes[name], nil
}

// IsElementDisplayed returns the element's displayed flag.
func (a *Automation) IsElementDisplayed(elementID string) (bool, error) {
	e, err := a.lookupID(elementID)
	if err != nil {
		return false, err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	return e.Displayed, nil
}

// IsElementEnabled returns the element's enabled flag.
func (a *Automation) IsElementEnabled(elementID string) (bool, error) {
	e, err := a.lookupID(elementID)
	if err != nil {
		return false, err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	return e.Enabled, nil
}

// QueryAppState returns the configured app state.
func (a *Automation) QueryAppState(appID string) (int, error) {
	a.record("queryAppState %s", appID)
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.cfg.AppState, a.cfg.AppStateErr
}

// LaunchApp records an app launch.
func (a *Automation) LaunchApp(appID string) error {
	a.record("launchApp %s", appID)
	return nil
}

// TerminateApp records an app termination.
func (a *Automation) TerminateApp(appID string) error {
	a.record("terminateApp %s", appID)
	return nil
}

// Scroll records a scroll.
func (a *Automation) Scroll(direction, elementID string) error {
	a.record("scroll %s %s", direction, elementID)
	return nil
}

// ExecuteScript records a script execution.
func (a *Automation) ExecuteScript(script string, args ...interface{}) (interface{}, error) {
	a.record("execute %s", script)
	a.mu.Lock()
	hook := a.cfg.OnExecute
	a.mu.Unlock()
	if hook != nil {
		return hook(script, args)
	}
	return nil, nil
}

// NavigateTo records a navigation.
func (a *Automation) NavigateTo(url string) error {
	a.record("navigate %s", url)
	a.mu.Lock()
	defer a.mu.Unlock()
	a.navigated = append(a.navigated, url)
	return nil
}

// AcceptAlert records an alert acceptance.
func (a *Automation) AcceptAlert() error {
	a.record("acceptAlert")
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.cfg.AlertFailures > 0 {
		a.cfg.AlertFailures--
		return &appium.WebDriverError{Status: 404, Code: "no such alert", Message: "no alert open"}
	}
	return nil
}

// SetImplicitWait records the timeout.
func (a *Automation) SetImplicitWait(timeout time.Duration) error {
	a.record("implicitWait %s", timeout)
	return nil
}

// ReloadSession records the new capabilities.
func (a *Automation) ReloadSession(capabilities map[string]interface{}) error {
	a.record("reloadSession")
	a.mu.Lock()
	defer a.mu.Unlock()
	a.reloads = append(a.reloads, capabilities)
	return nil
}

// Disconnect marks the session closed.
func (a *Automation) Disconnect() error {
	a.record("disconnect")
	a.mu.Lock()
	defer a.mu.Unlock()
	a.disconnected = true
	return nil
}
