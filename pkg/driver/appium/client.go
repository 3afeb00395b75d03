// Package appium is a W3C WebDriver client for an Appium server.
package appium

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"
)

// W3C WebDriver element identifier key (standard constant)
const w3cElementKey = "element-6066-11e4-a52e-4f735466cecf"

// WebDriverError is an error reported by the server in a W3C error body.
type WebDriverError struct {
	Status  int
	Code    string // e.g. "no such element", "stale element reference"
	Message string
}

func (e *WebDriverError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// IsNoSuchElement reports whether err means the element could not be located
// or is no longer attached to the UI tree.
func IsNoSuchElement(err error) bool {
	var wdErr *WebDriverError
	if !errors.As(err, &wdErr) {
		return false
	}
	return wdErr.Code == "no such element" || wdErr.Code == "stale element reference"
}

// Client handles HTTP communication with Appium server.
// Session state is guarded by mu since app state queries may run while a
// session is being reloaded.
type Client struct {
	serverURL string
	client    *http.Client

	mu        sync.RWMutex
	sessionID string
	platform  string // ios, android
}

// NewClient creates a new Appium client.
func NewClient(serverURL string) *Client {
	return &Client{
		serverURL: strings.TrimSuffix(serverURL, "/"),
		client: &http.Client{
			Timeout: 5 * time.Minute, // Long timeout for WDA build on first session
		},
	}
}

// Connect creates a new session with the given capabilities.
func (c *Client) Connect(capabilities map[string]interface{}) error {
	body := map[string]interface{}{
		"capabilities": map[string]interface{}{
			"alwaysMatch": capabilities,
		},
	}

	resp, err := c.post("/session", body)
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}

	value, ok := resp["value"].(map[string]interface{})
	if !ok {
		return fmt.Errorf("invalid session response")
	}

	sessionID, _ := value["sessionId"].(string)
	if sessionID == "" {
		return fmt.Errorf("no session ID in response")
	}

	// Extract platform from capabilities
	var platform string
	if caps, ok := value["capabilities"].(map[string]interface{}); ok {
		if p, ok := caps["platformName"].(string); ok {
			platform = strings.ToLower(p)
		}
	}
	if platform == "" {
		if p, ok := capabilities["platformName"].(string); ok {
			platform = strings.ToLower(p)
		}
	}

	c.mu.Lock()
	c.sessionID = sessionID
	c.platform = platform
	c.mu.Unlock()
	return nil
}

// Disconnect closes the session.
func (c *Client) Disconnect() error {
	sessionID := c.SessionID()
	if sessionID == "" {
		return nil
	}
	_, err := c.delete("/session/" + sessionID)

	c.mu.Lock()
	if c.sessionID == sessionID {
		c.sessionID = ""
	}
	c.mu.Unlock()
	return err
}

// ReloadSession replaces the current session with a fresh one created from
// capabilities.
func (c *Client) ReloadSession(capabilities map[string]interface{}) error {
	if err := c.Disconnect(); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return c.Connect(capabilities)
}

// SessionID returns the active session ID, empty when disconnected.
func (c *Client) SessionID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.sessionID
}

// Platform returns the platform (ios/android).
func (c *Client) Platform() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.platform
}

// Element Operations

// FindElement finds a single element.
func (c *Client) FindElement(strategy, value string) (string, error) {
	body := map[string]interface{}{
		"using": strategy,
		"value": value,
	}

	resp, err := c.post(c.sessionPath()+"/element", body)
	if err != nil {
		return "", err
	}

	elemValue, ok := resp["value"].(map[string]interface{})
	if !ok {
		return "", &WebDriverError{Code: "no such element", Message: value}
	}

	id := extractElementID(elemValue)
	if id == "" {
		return "", &WebDriverError{Code: "no such element", Message: value}
	}
	return id, nil
}

// FindElements finds multiple elements.
func (c *Client) FindElements(strategy, value string) ([]string, error) {
	body := map[string]interface{}{
		"using": strategy,
		"value": value,
	}

	resp, err := c.post(c.sessionPath()+"/elements", body)
	if err != nil {
		return nil, err
	}

	values, ok := resp["value"].([]interface{})
	if !ok {
		return nil, nil
	}

	var ids []string
	for _, v := range values {
		if elem, ok := v.(map[string]interface{}); ok {
			if id := extractElementID(elem); id != "" {
				ids = append(ids, id)
			}
		}
	}
	return ids, nil
}

// ClickElement clicks an element using WebDriver standard endpoint.
func (c *Client) ClickElement(elementID string) error {
	_, err := c.post(c.elementPath(elementID)+"/click", nil)
	return err
}

// ClearElement clears an element's text.
func (c *Client) ClearElement(elementID string) error {
	_, err := c.post(c.elementPath(elementID)+"/clear", nil)
	return err
}

// SetElementValue types text into an element.
func (c *Client) SetElementValue(elementID, text string) error {
	_, err := c.post(c.elementPath(elementID)+"/value", map[string]interface{}{
		"text": text,
	})
	return err
}

// GetElementText returns an element's text.
func (c *Client) GetElementText(elementID string) (string, error) {
	resp, err := c.get(c.elementPath(elementID) + "/text")
	if err != nil {
		return "", err
	}
	text, _ := resp["value"].(string)
	return text, nil
}

// GetElementAttribute returns an element's attribute value.
func (c *Client) GetElementAttribute(elementID, name string) (string, error) {
	resp, err := c.get(c.elementPath(elementID) + "/attribute/" + name)
	if err != nil {
		return "", err
	}
	value, _ := resp["value"].(string)
	return value, nil
}

// IsElementDisplayed checks if element is visible.
func (c *Client) IsElementDisplayed(elementID string) (bool, error) {
	resp, err := c.get(c.elementPath(elementID) + "/displayed")
	if err != nil {
		return false, err
	}
	displayed, _ := resp["value"].(bool)
	return displayed, nil
}

// IsElementEnabled checks if element is enabled.
func (c *Client) IsElementEnabled(elementID string) (bool, error) {
	resp, err := c.get(c.elementPath(elementID) + "/enabled")
	if err != nil {
		return false, err
	}
	enabled, _ := resp["value"].(bool)
	return enabled, nil
}

// App Management

// LaunchApp activates an app.
func (c *Client) LaunchApp(appID string) error {
	if c.Platform() == "ios" {
		_, err := c.ExecuteMobile("launchApp", map[string]interface{}{"bundleId": appID})
		return err
	}
	_, err := c.post(c.sessionPath()+"/appium/device/activate_app", map[string]interface{}{
		"appId": appID,
	})
	return err
}

// TerminateApp terminates an app.
func (c *Client) TerminateApp(appID string) error {
	if c.Platform() == "ios" {
		_, err := c.ExecuteMobile("terminateApp", map[string]interface{}{"bundleId": appID})
		return err
	}
	_, err := c.post(c.sessionPath()+"/appium/device/terminate_app", map[string]interface{}{
		"appId": appID,
	})
	return err
}

// QueryAppState returns the raw app state reported by the driver
// (0 not installed ... 4 running in foreground).
func (c *Client) QueryAppState(appID string) (int, error) {
	key := "appId"
	if c.Platform() == "ios" {
		key = "bundleId"
	}
	value, err := c.ExecuteMobile("queryAppState", map[string]interface{}{key: appID})
	if err != nil {
		return 0, err
	}
	state, ok := value.(float64)
	if !ok {
		return 0, fmt.Errorf("invalid app state response: %v", value)
	}
	return int(state), nil
}

// Scroll scrolls in direction inside the given element, or the whole screen
// when elementID is empty.
func (c *Client) Scroll(direction, elementID string) error {
	args := map[string]interface{}{"direction": direction}
	if elementID != "" {
		args["element"] = elementID
	}
	_, err := c.ExecuteMobile("scroll", args)
	return err
}

// Browser

// NavigateTo opens url in the session's browser.
func (c *Client) NavigateTo(url string) error {
	_, err := c.post(c.sessionPath()+"/url", map[string]interface{}{
		"url": url,
	})
	return err
}

// AcceptAlert accepts the currently displayed system alert.
func (c *Client) AcceptAlert() error {
	_, err := c.post(c.sessionPath()+"/alert/accept", nil)
	return err
}

// Timeouts

// SetImplicitWait sets the implicit wait timeout.
func (c *Client) SetImplicitWait(timeout time.Duration) error {
	_, err := c.post(c.sessionPath()+"/timeouts", map[string]interface{}{
		"implicit": timeout.Milliseconds(),
	})
	return err
}

// ExecuteScript runs a script synchronously and returns its value.
func (c *Client) ExecuteScript(script string, args ...interface{}) (interface{}, error) {
	if args == nil {
		args = []interface{}{}
	}
	resp, err := c.post(c.sessionPath()+"/execute/sync", map[string]interface{}{
		"script": script,
		"args":   args,
	})
	if err != nil {
		return nil, err
	}
	return resp["value"], nil
}

// ExecuteMobile executes a mobile: command.
func (c *Client) ExecuteMobile(command string, args map[string]interface{}) (interface{}, error) {
	return c.ExecuteScript("mobile: "+command, args)
}

// HTTP Helpers

func (c *Client) sessionPath() string {
	return "/session/" + c.SessionID()
}

func (c *Client) elementPath(elementID string) string {
	return c.sessionPath() + "/element/" + elementID
}

func (c *Client) get(path string) (map[string]interface{}, error) {
	return c.request("GET", path, nil)
}

func (c *Client) post(path string, body interface{}) (map[string]interface{}, error) {
	if body == nil {
		body = map[string]interface{}{}
	}
	return c.request("POST", path, body)
}

func (c *Client) delete(path string) (map[string]interface{}, error) {
	return c.request("DELETE", path, nil)
}

func (c *Client) request(method, path string, body interface{}) (map[string]interface{}, error) {
	url := c.serverURL + path

	var bodyReader io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		bodyReader = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequest(method, url, bodyReader)
	if err != nil {
		return nil, err
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	if resp == nil {
		return nil, fmt.Errorf("nil response from server")
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	var result map[string]interface{}
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, fmt.Errorf("failed to parse response (HTTP %d): %w", resp.StatusCode, err)
	}

	// Check for WebDriver error
	if errValue, ok := result["value"].(map[string]interface{}); ok {
		if errType, ok := errValue["error"].(string); ok {
			msg, _ := errValue["message"].(string)
			return result, &WebDriverError{Status: resp.StatusCode, Code: errType, Message: msg}
		}
	}

	return result, nil
}

func extractElementID(value map[string]interface{}) string {
	// W3C format
	if id, ok := value[w3cElementKey].(string); ok {
		return id
	}
	// Legacy format
	if id, ok := value["ELEMENT"].(string); ok {
		return id
	}
	return ""
}
