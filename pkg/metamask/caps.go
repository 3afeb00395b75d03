package metamask

import (
	"github.com/devicelab-dev/wallet-glue-runner/pkg/config"
)

// deviceCapabilities addresses the device without selecting an app.
func deviceCapabilities(cfg *config.Config) map[string]interface{} {
	return map[string]interface{}{
		"platformName":             "iOS",
		"appium:automationName":    "xcuitest",
		"appium:xcodeOrgId":        cfg.XcodeOrgID,
		"appium:xcodeSigningId":    cfg.XcodeSigningID,
		"appium:platformVersion":   cfg.PlatformVersion,
		"appium:deviceName":        cfg.DeviceName,
		"appium:udid":              cfg.UDID,
		"appium:showXcodeLog":      true,
		"appium:prebuildWDA":       true,
		"appium:newCommandTimeout": 120,
	}
}

// walletCapabilities starts a session on the wallet app.
func walletCapabilities(cfg *config.Config) map[string]interface{} {
	caps := deviceCapabilities(cfg)
	caps["appium:bundleId"] = cfg.BundleID
	return caps
}

// browserCapabilities starts a Safari session that leaves other apps running.
func browserCapabilities(cfg *config.Config) map[string]interface{} {
	return map[string]interface{}{
		"platformName":              "iOS",
		"browserName":               "Safari",
		"appium:automationName":     "xcuitest",
		"appium:xcodeOrgId":         cfg.XcodeOrgID,
		"appium:xcodeSigningId":     cfg.XcodeSigningID,
		"appium:platformVersion":    cfg.PlatformVersion,
		"appium:deviceName":         cfg.DeviceName,
		"appium:udid":               cfg.UDID,
		"appium:shouldTerminateApp": false,
	}
}
