package glue

import (
	"encoding/json"

	"github.com/ethereum/go-ethereum/common"
)

// Event names as sent on the wire.
const (
	EventRequestAccounts = "requestaccounts"
	EventSendTransaction = "sendtransaction"
	EventSignTransaction = "signtransaction"
	EventSignMessage     = "signmessage"
)

// Event is a wallet-initiated notification for the harness.
type Event interface {
	Name() string
	Correlation() CorrelationID
}

// Emitter publishes events to the harness.
type Emitter interface {
	Emit(ev Event) error
}

// EmitterFunc adapts a function to Emitter.
type EmitterFunc func(ev Event) error

// Emit calls f(ev).
func (f EmitterFunc) Emit(ev Event) error {
	return f(ev)
}

// RequestAccountsEvent reports that the wallet is asking to connect accounts.
type RequestAccountsEvent struct {
	UUID     CorrelationID    `json:"uuid"`
	Accounts []common.Address `json:"accounts"`
}

func (e *RequestAccountsEvent) Name() string               { return EventRequestAccounts }
func (e *RequestAccountsEvent) Correlation() CorrelationID { return e.UUID }

// TransactionDetails describes a transaction shown in a wallet prompt.
type TransactionDetails struct {
	From  string `json:"from"`
	To    string `json:"to"`
	Data  string `json:"data"`
	Value string `json:"value"`
}

// SendTransactionEvent reports a send-transaction prompt.
type SendTransactionEvent struct {
	UUID CorrelationID `json:"uuid"`
	TransactionDetails
}

func (e *SendTransactionEvent) Name() string               { return EventSendTransaction }
func (e *SendTransactionEvent) Correlation() CorrelationID { return e.UUID }

// SignTransactionEvent reports a sign-transaction prompt.
type SignTransactionEvent struct {
	UUID CorrelationID `json:"uuid"`
	TransactionDetails
}

func (e *SignTransactionEvent) Name() string               { return EventSignTransaction }
func (e *SignTransactionEvent) Correlation() CorrelationID { return e.UUID }

// SignMessageEvent reports a message-signing prompt.
type SignMessageEvent struct {
	UUID    CorrelationID `json:"uuid"`
	Message string        `json:"message"`
}

func (e *SignMessageEvent) Name() string               { return EventSignMessage }
func (e *SignMessageEvent) Correlation() CorrelationID { return e.UUID }

// eventFrame is the outbound wire shape of an event.
type eventFrame struct {
	Event string        `json:"event"`
	UUID  CorrelationID `json:"uuid"`
	Data  Event         `json:"data"`
}

// EncodeEvent renders ev as a wire frame.
func EncodeEvent(ev Event) ([]byte, error) {
	return json.Marshal(eventFrame{Event: ev.Name(), UUID: ev.Correlation(), Data: ev})
}
