package metamask

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devicelab-dev/wallet-glue-runner/pkg/core"
	"github.com/devicelab-dev/wallet-glue-runner/pkg/driver/mock"
	"github.com/devicelab-dev/wallet-glue-runner/pkg/glue"
	"github.com/devicelab-dev/wallet-glue-runner/pkg/session"
	"github.com/devicelab-dev/wallet-glue-runner/pkg/watcher"
)

func newTestDriver(t *testing.T, auto *mock.Automation) *Driver {
	t.Helper()
	dev := &fakeDevice{wallet: auto}
	d, err := NewDriver(context.Background(), testConfig(), &sink{}, WithDialer(dev.dial))
	require.NoError(t, err)
	return d
}

func fixedID(id glue.CorrelationID) watcher.NextID {
	return func() glue.CorrelationID { return id }
}

func unlock(d *Driver) error {
	return d.Lock().Run(context.Background(), func(s *session.Session) error {
		return d.UnlockWithPassword(context.Background(), s)
	})
}

func TestUnlockWithPassword(t *testing.T) {
	auto := mock.New(mock.Config{})
	field := auto.Add(passwordField.Value)
	btn := auto.Add(unlockButton.Value)
	btn.OnClick = func(e *mock.Element) error {
		if e.Clicks == 2 {
			auto.SetPresent(unlockButton.Value, false)
		}
		return nil
	}
	d := newTestDriver(t, auto)

	require.NoError(t, unlock(d))
	assert.Equal(t, "ethereum1", field.Value)
	assert.Equal(t, 2, btn.Clicks)
}

func TestUnlockRetryThenDisappearance(t *testing.T) {
	auto := mock.New(mock.Config{})
	field := auto.Add(passwordField.Value)
	btn := auto.Add(unlockButton.Value)
	attempts := 0
	field.OnValue = func(*mock.Element, string) error {
		attempts++
		if attempts == 3 {
			auto.SetPresent(passwordField.Value, false)
		}
		return errors.New("element not interactable")
	}
	btn.Present = false
	d := newTestDriver(t, auto)

	require.NoError(t, unlock(d))
	assert.Equal(t, 3, attempts)
}

func TestUnlockRetryExhaustion(t *testing.T) {
	auto := mock.New(mock.Config{})
	field := auto.Add(passwordField.Value)
	btn := auto.Add(unlockButton.Value)
	attempts := 0
	field.OnValue = func(*mock.Element, string) error {
		attempts++
		return errors.New("keyboard not visible")
	}
	d := newTestDriver(t, auto)

	err := unlock(d)

	assert.EqualError(t, err, "keyboard not visible")
	assert.Equal(t, 3, attempts)
	assert.Equal(t, 0, btn.Clicks)
}

func TestUnlockOnUnlockedWalletIsNoop(t *testing.T) {
	auto := mock.New(mock.Config{})
	d := newTestDriver(t, auto)

	require.NoError(t, unlock(d))
	assert.Equal(t, 0, auto.CountCalls("type"))
	assert.Equal(t, 0, auto.CountCalls("click"))
}

func TestDriverStopClosesSession(t *testing.T) {
	auto := mock.New(mock.Config{})
	d := newTestDriver(t, auto)
	d.Start(context.Background())

	require.NoError(t, d.Stop(context.Background()))
	<-d.Watcher().Done()

	assert.True(t, auto.Disconnected())
	assert.False(t, d.Watcher().Running())
}

func TestDetectConnectAccounts(t *testing.T) {
	auto := mock.New(mock.Config{})
	s := session.New(auto, session.Options{})

	ev, err := detectConnectAccounts(context.Background(), s, fixedID("id-1"))
	require.NoError(t, err)
	assert.Nil(t, ev)

	auto.Add(connectAccountModal.Value)
	_, err = detectConnectAccounts(context.Background(), s, fixedID("id-1"))
	assert.ErrorIs(t, err, errAccountMissing)

	auto.Add(account1Row.Value)
	ev, err = detectConnectAccounts(context.Background(), s, fixedID("id-1"))
	require.NoError(t, err)
	require.NotNil(t, ev)
	assert.Equal(t, glue.CorrelationID("id-1"), ev.Correlation())
}

func TestUnrecognisedPromptDetectors(t *testing.T) {
	s := session.New(mock.New(mock.Config{}), session.Options{})
	for _, name := range []string{DetectSendTransaction, DetectSignTransaction, DetectSignMessage} {
		ds, err := detectorsByName([]string{name})
		require.NoError(t, err)
		require.Len(t, ds, 1)

		ev, err := ds[0].Detect(context.Background(), s, fixedID("x"))
		assert.Nil(t, ev)
		assert.ErrorIs(t, err, core.ErrNotImplemented, name)
	}
}

func TestWalletCapabilities(t *testing.T) {
	cfg := testConfig()

	caps := walletCapabilities(cfg)
	assert.Equal(t, "iOS", caps["platformName"])
	assert.Equal(t, "xcuitest", caps["appium:automationName"])
	assert.Equal(t, "G28G5QGYX9", caps["appium:xcodeOrgId"])
	assert.Equal(t, "16.4", caps["appium:platformVersion"])
	assert.Equal(t, "io.metamask.MetaMask", caps["appium:bundleId"])

	_, ok := deviceCapabilities(cfg)["appium:bundleId"]
	assert.False(t, ok)
}
