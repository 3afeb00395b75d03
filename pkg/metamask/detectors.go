package metamask

import (
	"context"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"github.com/devicelab-dev/wallet-glue-runner/pkg/core"
	"github.com/devicelab-dev/wallet-glue-runner/pkg/glue"
	"github.com/devicelab-dev/wallet-glue-runner/pkg/logger"
	"github.com/devicelab-dev/wallet-glue-runner/pkg/session"
	"github.com/devicelab-dev/wallet-glue-runner/pkg/watcher"
)

// Detector names accepted in config.
const (
	DetectConnectAccounts = "connectAccounts"
	DetectSendTransaction = "sendTransaction"
	DetectSignTransaction = "signTransaction"
	DetectSignMessage     = "signMessage"
)

var errAccountMissing = errors.New("couldn't find account in request accounts")

var detectors = map[string]func(context.Context, *session.Session, watcher.NextID) (glue.Event, error){
	DetectConnectAccounts: detectConnectAccounts,
	DetectSendTransaction: detectSendTransaction,
	DetectSignTransaction: detectSignTransaction,
	DetectSignMessage:     detectSignMessage,
}

func detectorsByName(names []string) ([]watcher.Detector, error) {
	out := make([]watcher.Detector, 0, len(names))
	for _, name := range names {
		fn, ok := detectors[name]
		if !ok {
			return nil, core.ErrInvalidConfig.
				WithMessage(fmt.Sprintf("unknown detector %q", name)).
				WithDetails(map[string]interface{}{"field": "detectors"})
		}
		out = append(out, watcher.Detector{Name: name, Detect: fn})
	}
	return out, nil
}

// detectConnectAccounts recognises the dapp connection dialog. The dialog
// never shows a full address, so the event reports the address the default
// seed derives once its abbreviated row is on screen.
func detectConnectAccounts(_ context.Context, s *session.Session, next watcher.NextID) (glue.Event, error) {
	open, err := s.Element(connectAccountModal).Exists()
	if err != nil || !open {
		return nil, err
	}

	logger.Debug("Connect dialog open")
	found, err := s.Element(account1Row).Exists()
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, errAccountMissing
	}
	return &glue.RequestAccountsEvent{UUID: next(), Accounts: []common.Address{Account1}}, nil
}

// The prompts below are not recognised yet.

func detectSendTransaction(context.Context, *session.Session, watcher.NextID) (glue.Event, error) {
	return nil, core.NotImplemented("sendtransaction detection")
}

func detectSignTransaction(context.Context, *session.Session, watcher.NextID) (glue.Event, error) {
	return nil, core.NotImplemented("signtransaction detection")
}

func detectSignMessage(context.Context, *session.Session, watcher.NextID) (glue.Event, error) {
	return nil, core.NotImplemented("signmessage detection")
}
