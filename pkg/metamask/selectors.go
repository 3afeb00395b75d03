package metamask

import (
	"github.com/ethereum/go-ethereum/common"

	"github.com/devicelab-dev/wallet-glue-runner/pkg/session"
)

// Account1 is the first account derived from the default seed phrase.
// The connect dialog shows only an abbreviated form of it.
var Account1 = common.HexToAddress("0xb7b4d68047536a87f0926a76dd0b96b3a044c8cf")

// Wallet app locators.
var (
	getStartedButton   = session.XPath(`//XCUIElementTypeButton[@name="Get started"]`)
	importWalletButton = session.XPath(`//XCUIElementTypeOther[@name="Import using Secret Recovery Phrase"]`)
	metricsScrollView  = session.XPath(`//XCUIElementTypeStaticText[@name="optin-metrics-title-id"]/..`)
	metricsDenyButton  = session.XPath(`//XCUIElementTypeButton[@name="optin-metrics-no-thanks-button-id"]`)
	termsScrollEnd     = session.XPath(`//XCUIElementTypeOther[@name="terms-of-use-scroll-end-arrow-button-id"]`)
	termsCheckbox      = session.XPath(`//XCUIElementTypeOther[@name="terms-of-use-checkbox"]`)
	termsAcceptButton  = session.XPath(`//XCUIElementTypeButton[@name="terms-of-use-accept-button-id"]`)
	showSeedButton     = session.XPath(`(//XCUIElementTypeOther[@name="Show"])[2]`)
	seedTextView       = session.XPath(`//XCUIElementTypeTextView`)
	newPasswordField   = session.XPath(`(//XCUIElementTypeOther[@name="New Password"])[5]`)
	confirmPassword    = session.XPath(`(//XCUIElementTypeOther[@name="Confirm password"])[4]`)
	importSeedButton   = session.XPath(`//XCUIElementTypeButton[@name="import-from-seed-screen-submit-button-id"]`)

	passwordField = session.XPath(`(//XCUIElementTypeOther[@name="Password"])[4]`)
	unlockButton  = session.XPath(`//XCUIElementTypeButton[@name="UNLOCK"]`)

	connectAccountModal = session.XPath(`//XCUIElementTypeOther[@name="connect-account-modal"]`)
	account1Row         = session.XPath(`//XCUIElementTypeOther[@label="Account 1 0xb7B4...C8Cf"]`)
	connectApproveBtn   = session.XPath(`//XCUIElementTypeButton[@name="connect-approve-button"]`)
	connectCancelBtn    = session.XPath(`//XCUIElementTypeButton[@name="connect-cancel-button"]`)
)

// Test page locators. Paths cross shadow roots one part at a time.
var (
	walletConnectButton = session.CSS("#walletConnect")
	viewAllWallets      = shadowPath{"wcm-view-all-wallets-button", "button"}
	walletSearchInput   = shadowPath{"wcm-search-input", "input"}
	metamaskWalletBtn   = shadowPath{`wcm-wallet-button[walletid="` + metamaskWalletID + `"]`, "button"}
)

// metamaskWalletID is MetaMask's WalletConnect registry id.
const metamaskWalletID = "c57ca95b47569778a828d19178114f4db188b89b763c899ba0be274e97267d96"
