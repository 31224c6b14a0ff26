package cmdchannel

import (
	"time"

	"github.com/google/uuid"

	"github.com/braidwire/hcicore/hcidefs"
	"github.com/braidwire/hcicore/herr"
	"github.com/braidwire/hcicore/packet"
)

// TransactionID identifies one queued-or-in-flight command, returned
// from Send/SendLEAsync and accepted by Cancel. Built on google/uuid
// so every transaction has a process-wide-unique, log-correlatable
// identity rather than a reused integer counter.
type TransactionID string

func newTransactionID() TransactionID {
	return TransactionID(uuid.NewString())
}

// Result is delivered to a transaction's callback exactly once.
type Result struct {
	Status       herr.Status
	ReturnParams []byte
	Err          error // set for Canceled, Timeout, IOError, or a non-success Status; nil otherwise
}

// Callback receives the outcome of a Send/SendLEAsync call.
type Callback func(Result)

// EventAction is returned by an EventHandler/LEEventHandler to tell
// the dispatcher whether to keep the handler registered.
type EventAction int

const (
	Continue EventAction = iota
	RemoveMe
)

// EventHandler processes one non-command-completion HCI event.
type EventHandler func(params []byte) EventAction

// LEEventHandler processes one LE Meta subevent.
type LEEventHandler func(params []byte) EventAction

type txState int

const (
	txQueued txState = iota
	txSent
	txAwaitingComplete
)

// awaitKind distinguishes what terminal signal finalizes a
// txAwaitingComplete transaction.
type awaitKind int

const (
	awaitNone awaitKind = iota
	awaitEventCode
	awaitLESubevent
)

type transaction struct {
	id       TransactionID
	opcode   hcidefs.OpCode
	pkt      *packet.Packet
	callback Callback

	// await selects the signal that finalizes this transaction:
	// eventCode is used when await == awaitEventCode;
	// leSubevent is used when await == awaitLESubevent.
	await      awaitKind
	eventCode  hcidefs.EventCode
	leSubevent hcidefs.LEEventCode

	state txState
	timer *time.Timer
}
