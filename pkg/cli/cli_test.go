package cli

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/urfave/cli/v2"

	"github.com/devicelab-dev/wallet-glue-runner/pkg/config"
	"github.com/devicelab-dev/wallet-glue-runner/pkg/core"
	"github.com/devicelab-dev/wallet-glue-runner/pkg/driver/mock"
	"github.com/devicelab-dev/wallet-glue-runner/pkg/metamask"
	"github.com/devicelab-dev/wallet-glue-runner/pkg/session"
)

func TestTestPageURL(t *testing.T) {
	got, err := testPageURL("https://wallet-test-framework.herokuapp.com/", "ws://127.0.0.1:3001/")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := "https://wallet-test-framework.herokuapp.com/#glue=ws://127.0.0.1:3001/"
	if got != want {
		t.Errorf("testPageURL() = %q, want %q", got, want)
	}
}

func TestTestPageURL_ReplacesFragment(t *testing.T) {
	got, err := testPageURL("http://localhost:8080/index.html#old", "ws://10.0.0.2:4000/")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "http://localhost:8080/index.html#glue=ws://10.0.0.2:4000/" {
		t.Errorf("unexpected url %q", got)
	}
}

// captureConfig runs the flag set and returns the config buildConfig makes.
func captureConfig(t *testing.T, args ...string) (*config.Config, error) {
	t.Helper()
	config.ResetHome()
	t.Setenv("WALLET_GLUE_HOME", t.TempDir())

	var cfg *config.Config
	app := &cli.App{
		Name:  "glue-metamask-ios",
		Flags: newFlags(),
		Action: func(c *cli.Context) error {
			var err error
			cfg, err = buildConfig(c)
			return err
		},
		Writer:    &bytes.Buffer{},
		ErrWriter: &bytes.Buffer{},
	}
	err := app.Run(append([]string{"glue-metamask-ios"}, args...))
	return cfg, err
}

func TestBuildConfig_Defaults(t *testing.T) {
	cfg, err := captureConfig(t, "--udid", "00008030-001A", "--platform-version", "16.4")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.UDID != "00008030-001A" || cfg.PlatformVersion != "16.4" {
		t.Errorf("device flags not applied: %+v", cfg)
	}
	if cfg.TestURL != config.DefaultTestURL {
		t.Errorf("expected default test url, got %s", cfg.TestURL)
	}
	if cfg.Glue.Host != "127.0.0.1" || cfg.Glue.Port != 3001 {
		t.Errorf("expected glue 127.0.0.1:3001, got %s:%d", cfg.Glue.Host, cfg.Glue.Port)
	}
}

func TestBuildConfig_FlagsOverrideFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "glue.yaml")
	content := `
appiumUrl: http://10.0.0.5:4723
glue:
  port: 4001
deviceName: iPhone 15
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := captureConfig(t,
		"--config", path,
		"--udid", "u", "--platform-version", "17.0",
		"--appium-url", "http://127.0.0.1:4724",
		"--glue-host", "0.0.0.0",
		"--advertise-host", "192.168.2.197",
		"--test-url", "http://localhost:8080/",
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.AppiumURL != "http://127.0.0.1:4724" {
		t.Errorf("flag should override file, got %s", cfg.AppiumURL)
	}
	if cfg.Glue.Port != 4001 {
		t.Errorf("file value should survive unset flag, got %d", cfg.Glue.Port)
	}
	if cfg.Glue.Host != "0.0.0.0" || cfg.Glue.AdvertiseHost != "192.168.2.197" {
		t.Errorf("unexpected glue config %+v", cfg.Glue)
	}
	if cfg.DeviceName != "iPhone 15" {
		t.Errorf("expected deviceName from file, got %s", cfg.DeviceName)
	}
	if cfg.TestURL != "http://localhost:8080/" {
		t.Errorf("expected test url flag, got %s", cfg.TestURL)
	}
}

func TestBuildConfig_RequiredFlags(t *testing.T) {
	_, err := captureConfig(t, "--udid", "u")
	if err == nil {
		t.Fatal("expected error without --platform-version")
	}
	if !strings.Contains(err.Error(), "platform-version") {
		t.Errorf("expected error to name platform-version, got %v", err)
	}
}

func TestBuildConfig_InvalidValues(t *testing.T) {
	_, err := captureConfig(t, "--udid", "u", "--platform-version", "16.4", "--glue-port", "70000")
	if !errors.Is(err, core.ErrInvalidConfig) {
		t.Errorf("expected ErrInvalidConfig, got %v", err)
	}
}

func TestNewApp(t *testing.T) {
	app := NewApp()
	if app.Name != "glue-metamask-ios" {
		t.Errorf("unexpected app name %s", app.Name)
	}
	if app.Action == nil {
		t.Error("expected an action")
	}
}

// device serves a permissive wallet session, then a permissive browser
// session whose scripts always succeed.
type device struct {
	wallet  *mock.Automation
	browser *mock.Automation
	dialed  int
}

func newDevice() *device {
	return &device{
		wallet: mock.New(mock.Config{Permissive: true}),
		browser: mock.New(mock.Config{
			Permissive: true,
			OnExecute:  func(string, []interface{}) (interface{}, error) { return true, nil },
		}),
	}
}

func (d *device) dial(string, map[string]interface{}) (session.Automation, error) {
	d.dialed++
	if d.dialed == 1 {
		return d.wallet, nil
	}
	return d.browser, nil
}

func runConfig() *config.Config {
	cfg := config.Default()
	cfg.UDID = "00008030-001A"
	cfg.PlatformVersion = "16.4"
	cfg.Glue.Port = 0
	cfg.PollInterval = 10 * time.Millisecond
	cfg.WaitTimeout = 500 * time.Millisecond
	return cfg
}

// sendReport waits for the test page to be opened, then acts as the page and
// sends a report action to the glue URL in its fragment.
func sendReport(t *testing.T, browser *mock.Automation, value string) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for len(browser.Navigated()) == 0 {
		if time.Now().After(deadline) {
			t.Error("test page never opened")
			return
		}
		time.Sleep(5 * time.Millisecond)
	}

	parts := strings.SplitN(browser.Navigated()[0], "#glue=", 2)
	if len(parts) != 2 {
		t.Errorf("no glue fragment in %q", browser.Navigated()[0])
		return
	}
	conn, _, err := websocket.DefaultDialer.Dial(parts[1], nil)
	if err != nil {
		t.Errorf("dial glue: %v", err)
		return
	}
	defer conn.Close()

	frame := `{"id":1,"action":"report","params":{"format":"tap","value":` + value + `}}`
	if err := conn.WriteMessage(websocket.TextMessage, []byte(frame)); err != nil {
		t.Errorf("send report: %v", err)
	}
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func TestRun_PrintsStringReport(t *testing.T) {
	dev := newDevice()
	go sendReport(t, dev.browser, `"TAP version 13\nok 1 - connect"`)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	got, err := Run(ctx, runConfig(), metamask.WithDialer(dev.dial))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "TAP version 13\nok 1 - connect" {
		t.Errorf("unexpected report %q", got)
	}
	if !dev.wallet.Disconnected() {
		t.Error("expected wallet session to be deleted")
	}
	if len(dev.wallet.Reloads()) != 1 {
		t.Errorf("expected wallet session reload after launch, got %d", len(dev.wallet.Reloads()))
	}
}

func TestRun_RejectsNonStringReport(t *testing.T) {
	dev := newDevice()
	go sendReport(t, dev.browser, `{"passed":1}`)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err := Run(ctx, runConfig(), metamask.WithDialer(dev.dial))
	if !errors.Is(err, core.ErrUnsupportedReport) {
		t.Errorf("expected ErrUnsupportedReport, got %v", err)
	}
}

func TestRun_SetupFailure(t *testing.T) {
	cfg := runConfig()
	dial := func(string, map[string]interface{}) (session.Automation, error) {
		return nil, core.ErrServerUnreachable
	}

	_, err := Run(context.Background(), cfg, metamask.WithDialer(dial))
	if !errors.Is(err, core.ErrServerUnreachable) {
		t.Errorf("expected ErrServerUnreachable, got %v", err)
	}
}

func TestRun_LaunchFailureClosesSessions(t *testing.T) {
	dev := newDevice()
	dev.browser = mock.New(mock.Config{
		Permissive: true,
		OnExecute:  func(string, []interface{}) (interface{}, error) { return false, nil },
	})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err := Run(ctx, runConfig(), metamask.WithDialer(dev.dial))
	if err == nil {
		t.Fatal("expected launch error")
	}
	if !dev.wallet.Disconnected() {
		t.Error("expected wallet session to be deleted")
	}
	if !dev.browser.Disconnected() {
		t.Error("expected browser session to be deleted")
	}
}

func TestRun_CancelledBeforeReportClosesSessions(t *testing.T) {
	dev := newDevice()
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		deadline := time.Now().Add(5 * time.Second)
		for len(dev.wallet.Reloads()) == 0 && time.Now().Before(deadline) {
			time.Sleep(5 * time.Millisecond)
		}
		cancel()
	}()

	_, err := Run(ctx, runConfig(), metamask.WithDialer(dev.dial))
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	if !dev.wallet.Disconnected() || !dev.browser.Disconnected() {
		t.Error("expected both sessions to be deleted")
	}
}
