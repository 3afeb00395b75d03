// Package glue implements the wallet test framework's glue protocol: typed
// actions sent by the test harness, events raised by the wallet, and a
// WebSocket transport carrying both.
package glue

import (
	"encoding/json"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/google/uuid"

	"github.com/devicelab-dev/wallet-glue-runner/pkg/core"
)

// CorrelationID ties a wallet-initiated event to the action resolving it.
type CorrelationID string

// NewCorrelationID returns a fresh random identifier.
func NewCorrelationID() CorrelationID {
	return CorrelationID(uuid.NewString())
}

// Action names as sent on the wire.
const (
	ActionRequestAccounts     = "requestAccounts"
	ActionSignMessage         = "signMessage"
	ActionSignTransaction     = "signTransaction"
	ActionSendTransaction     = "sendTransaction"
	ActionSwitchEthereumChain = "switchEthereumChain"
	ActionActivateChain       = "activateChain"
	ActionReport              = "report"
)

// Decision is the harness' verdict on a wallet prompt.
type Decision string

const (
	DecisionApprove Decision = "approve"
	DecisionReject  Decision = "reject"
)

// RequestAccounts resolves a pending accounts-connection prompt.
type RequestAccounts struct {
	UUID     CorrelationID `json:"uuid"`
	Action   Decision      `json:"action"`
	Accounts []string      `json:"accounts,omitempty"`
}

// SignMessage resolves a pending message-signing prompt.
type SignMessage struct {
	UUID   CorrelationID `json:"uuid"`
	Action Decision      `json:"action"`
}

// SignTransaction resolves a pending transaction-signing prompt.
type SignTransaction struct {
	UUID   CorrelationID `json:"uuid"`
	Action Decision      `json:"action"`
}

// SendTransaction resolves a pending send-transaction prompt.
type SendTransaction struct {
	UUID   CorrelationID `json:"uuid"`
	Action Decision      `json:"action"`
}

// SwitchEthereumChain resolves a pending chain-switch prompt.
type SwitchEthereumChain struct {
	UUID   CorrelationID `json:"uuid"`
	Action Decision      `json:"action"`
}

// ActivateChain asks the wallet to add and select a chain.
type ActivateChain struct {
	ChainID *big.Int `json:"-"`
	RPCURL  string   `json:"rpcUrl"`
}

// UnmarshalJSON accepts the chain id as a 0x-prefixed hex string, a decimal
// string or a JSON number.
func (a *ActivateChain) UnmarshalJSON(data []byte) error {
	var raw struct {
		ChainID json.RawMessage `json:"chainId"`
		RPCURL  string          `json:"rpcUrl"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	id, err := ParseChainID(raw.ChainID)
	if err != nil {
		return err
	}
	a.ChainID = id
	a.RPCURL = raw.RPCURL
	return nil
}

// Report is the terminal action carrying the harness' test report.
type Report struct {
	Format string          `json:"format"`
	Value  json.RawMessage `json:"value"`
}

// Text returns the report value when it is a string. Any other shape is
// core.ErrUnsupportedReport.
func (r Report) Text() (string, error) {
	var s string
	if err := json.Unmarshal(r.Value, &s); err != nil {
		return "", core.ErrUnsupportedReport.WithCause(err).WithDetails(map[string]interface{}{
			"format": r.Format,
		})
	}
	return s, nil
}

// ParseChainID decodes a chain id given as a JSON string or number.
func ParseChainID(raw json.RawMessage) (*big.Int, error) {
	text := strings.TrimSpace(string(raw))
	if text == "" || text == "null" {
		return nil, fmt.Errorf("missing chainId")
	}
	if strings.HasPrefix(text, `"`) {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, err
		}
		text = s
	}
	if strings.HasPrefix(text, "0x") || strings.HasPrefix(text, "0X") {
		id, err := hexutil.DecodeBig(strings.ToLower(text))
		if err != nil {
			return nil, fmt.Errorf("invalid chainId %q: %w", text, err)
		}
		return id, nil
	}
	id, ok := new(big.Int).SetString(text, 10)
	if !ok || id.Sign() < 0 {
		return nil, fmt.Errorf("invalid chainId %q", text)
	}
	return id, nil
}

// ParseAddresses validates hex account addresses.
func ParseAddresses(values []string) ([]common.Address, error) {
	out := make([]common.Address, 0, len(values))
	for _, v := range values {
		if !common.IsHexAddress(v) {
			return nil, fmt.Errorf("invalid address %q", v)
		}
		out = append(out, common.HexToAddress(v))
	}
	return out, nil
}
