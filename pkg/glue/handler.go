package glue

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/tidwall/gjson"

	"github.com/devicelab-dev/wallet-glue-runner/pkg/core"
)

// Handler receives harness actions. A wallet adapter implements one method
// per action; returning core.ErrNotImplemented is a valid answer.
type Handler interface {
	RequestAccounts(ctx context.Context, action *RequestAccounts) error
	SignMessage(ctx context.Context, action *SignMessage) error
	SignTransaction(ctx context.Context, action *SignTransaction) error
	SendTransaction(ctx context.Context, action *SendTransaction) error
	SwitchEthereumChain(ctx context.Context, action *SwitchEthereumChain) error
	ActivateChain(ctx context.Context, action *ActivateChain) error
	Report(ctx context.Context, action *Report) error
}

// Decode parses an action frame's name and params into a typed action.
func Decode(frame []byte) (interface{}, error) {
	if !gjson.ValidBytes(frame) {
		return nil, fmt.Errorf("invalid frame")
	}
	name := gjson.GetBytes(frame, "action").String()
	params := gjson.GetBytes(frame, "params")

	var action interface{}
	switch name {
	case ActionRequestAccounts:
		action = &RequestAccounts{}
	case ActionSignMessage:
		action = &SignMessage{}
	case ActionSignTransaction:
		action = &SignTransaction{}
	case ActionSendTransaction:
		action = &SendTransaction{}
	case ActionSwitchEthereumChain:
		action = &SwitchEthereumChain{}
	case ActionActivateChain:
		action = &ActivateChain{}
	case ActionReport:
		action = &Report{}
	default:
		return nil, core.ErrUnknownAction.WithDetails(map[string]interface{}{"action": name})
	}

	raw := params.Raw
	if raw == "" {
		raw = "{}"
	}
	if err := json.Unmarshal([]byte(raw), action); err != nil {
		return nil, fmt.Errorf("decode %s params: %w", name, err)
	}
	if ra, ok := action.(*RequestAccounts); ok && len(ra.Accounts) > 0 {
		if _, err := ParseAddresses(ra.Accounts); err != nil {
			return nil, fmt.Errorf("decode %s params: %w", name, err)
		}
	}
	return action, nil
}

// Dispatch routes a decoded action to the matching handler method.
func Dispatch(ctx context.Context, h Handler, action interface{}) error {
	switch a := action.(type) {
	case *RequestAccounts:
		return h.RequestAccounts(ctx, a)
	case *SignMessage:
		return h.SignMessage(ctx, a)
	case *SignTransaction:
		return h.SignTransaction(ctx, a)
	case *SendTransaction:
		return h.SendTransaction(ctx, a)
	case *SwitchEthereumChain:
		return h.SwitchEthereumChain(ctx, a)
	case *ActivateChain:
		return h.ActivateChain(ctx, a)
	case *Report:
		return h.Report(ctx, a)
	default:
		return core.ErrUnknownAction.WithDetails(map[string]interface{}{"type": fmt.Sprintf("%T", action)})
	}
}
