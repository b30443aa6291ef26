package messenger

import (
	"context"
	"time"

	amqp "github.com/Azure/go-amqp"
	"github.com/pkg/errors"

	"github.com/deviceiot-go/amqpmessenger/internal/debug"
)

// linkState mirrors the observed lifecycle of a single AMQP link. The
// messenger tracks this itself: go-amqp's Sender/Receiver expose no
// polling API for link state, so creation and attach are run on a
// bridging goroutine and the observed state is derived from whether
// that goroutine is still running, succeeded, or failed.
type linkState int

const (
	linkStateIdle linkState = iota
	linkStateOpening
	linkStateOpen
	linkStateClosing
	linkStateError
)

func (s linkState) String() string {
	switch s {
	case linkStateIdle:
		return "idle"
	case linkStateOpening:
		return "opening"
	case linkStateOpen:
		return "open"
	case linkStateClosing:
		return "closing"
	case linkStateError:
		return "error"
	default:
		return "unknown"
	}
}

const (
	senderMaxMessageSize   uint64 = 1<<64 - 1
	receiverMaxMessageSize uint64 = 65536
)

// linkObserver records the latest (current, previous, lastChangeTime)
// triple for a link, the shape the messenger mirrors from observed
// transport state. It never drives a transition itself.
type linkObserver struct {
	current        linkState
	previous        linkState
	lastChangeTime time.Time
}

// record updates the observer and reports whether this was an actual
// transition (current != previous), matching the invariant that the
// state-changed callback only fires when old != new.
func (o *linkObserver) record(s linkState, now time.Time) bool {
	if o.current == s {
		return false
	}
	o.previous = o.current
	o.current = s
	o.lastChangeTime = now
	return true
}

// senderLink bundles the attached go-amqp sender with the bridging
// goroutine that created it and the observer tracking its lifecycle.
type senderLink struct {
	amqp     *amqp.Sender
	linkName string
	observer linkObserver

	creating   bool
	createDone chan senderCreateResult
}

type senderCreateResult struct {
	sender *amqp.Sender
	err    error
}

// receiverLink is the inbound symmetric counterpart of senderLink, plus
// the pump goroutine continuously calling Receive.
type receiverLink struct {
	amqp     *amqp.Receiver
	linkName string
	observer linkObserver

	creating   bool
	createDone chan receiverCreateResult

	// receiveFunc defaults to amqp.Receive but is a field, not a direct
	// call, so tests can drive startReceivePump with a stub instead of
	// a live transport receiver.
	receiveFunc func(ctx context.Context, opts *amqp.ReceiveOptions) (*amqp.Message, error)

	pumpCancel context.CancelFunc
	pumpDone   chan struct{}
	received   chan receivedMessage

	// nextDeliveryID is a locally-assigned, monotonically increasing
	// sequence number identifying each inbound message within this
	// link. go-amqp's public Message carries no exported delivery id,
	// so the receiver tracks it itself; deliveries arrive on the pump
	// in order, so a simple counter is sufficient.
	nextDeliveryID uint64
}

type receiverCreateResult struct {
	receiver *amqp.Receiver
	err      error
}

type receivedMessage struct {
	msg        *amqp.Message
	linkName   string
	deliveryID uint64
}

// beginSenderCreate builds the devices path, the sender addressing, the
// attach properties, and starts a goroutine that performs the actual
// (blocking) session.NewSender call. The messenger observes the result
// on the next tick via pollSenderCreate; no Messenger field is touched
// from the goroutine itself.
func beginSenderCreate(m *Messenger) (*senderLink, error) {
	linkName, _, targetAddress, err := senderAddressing(m)
	if err != nil {
		return nil, errors.Wrap(err, "failed creating the message sender")
	}

	props, err := attachPropertiesToAMQP(m.sendLinkAttachProperties)
	if err != nil {
		return nil, errors.Wrap(err, "failed creating the message sender (attach properties)")
	}

	opts := &amqp.SenderOptions{
		Name:           linkName,
		Properties:     props,
		MaxMessageSize: senderMaxMessageSize,
	}

	sl := &senderLink{
		linkName:   linkName,
		creating:   true,
		createDone: make(chan senderCreateResult, 1),
	}
	sl.observer.record(linkStateOpening, m.now())

	session := m.session
	debug.Log(1, "sender %s: attaching to %s", linkName, targetAddress)
	go func() {
		s, err := session.NewSender(context.Background(), targetAddress, opts)
		sl.createDone <- senderCreateResult{sender: s, err: err}
	}()
	return sl, nil
}

// pollSenderCreate drains the creation goroutine's result, if any,
// updating the observer. It never blocks.
func pollSenderCreate(sl *senderLink, now time.Time) {
	if sl == nil || !sl.creating {
		return
	}
	select {
	case res := <-sl.createDone:
		sl.creating = false
		if res.err != nil {
			debug.Log(1, "sender %s: attach failed: %v", sl.linkName, res.err)
			sl.observer.record(linkStateError, now)
			return
		}
		sl.amqp = res.sender
		sl.observer.record(linkStateOpen, now)
	default:
	}
}

// closeSender closes the underlying link synchronously. stop never
// waits on transport I/O per the messenger's no-suspension-point
// contract for do_work, but stop itself is allowed a bounded,
// synchronous close call exactly as the C original's
// message_sender_destroy does.
func closeSender(sl *senderLink) error {
	if sl == nil || sl.amqp == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return sl.amqp.Close(ctx)
}

// beginReceiverCreate is the symmetric counterpart for the inbound link.
func beginReceiverCreate(m *Messenger) (*receiverLink, error) {
	linkName, sourceAddress, _, err := receiverAddressing(m)
	if err != nil {
		return nil, errors.Wrap(err, "failed creating the message receiver")
	}

	props, err := attachPropertiesToAMQP(m.receiveLinkAttachProperties)
	if err != nil {
		return nil, errors.Wrap(err, "failed creating the message receiver (attach properties)")
	}

	settleMode := amqp.ModeFirst
	opts := &amqp.ReceiverOptions{
		Name:           linkName,
		Properties:     props,
		SettlementMode: &settleMode,
		MaxMessageSize: receiverMaxMessageSize,
	}

	rl := &receiverLink{
		linkName:   linkName,
		creating:   true,
		createDone: make(chan receiverCreateResult, 1),
		received:   make(chan receivedMessage, 64),
	}
	rl.observer.record(linkStateOpening, m.now())

	session := m.session
	debug.Log(1, "receiver %s: attaching to %s", linkName, sourceAddress)
	go func() {
		r, err := session.NewReceiver(context.Background(), sourceAddress, opts)
		rl.createDone <- receiverCreateResult{receiver: r, err: err}
	}()
	return rl, nil
}

func pollReceiverCreate(rl *receiverLink, now time.Time) {
	if rl == nil || !rl.creating {
		return
	}
	select {
	case res := <-rl.createDone:
		rl.creating = false
		if res.err != nil {
			debug.Log(1, "receiver %s: attach failed: %v", rl.linkName, res.err)
			rl.observer.record(linkStateError, now)
			return
		}
		rl.amqp = res.receiver
		rl.observer.record(linkStateOpen, now)
		rl.receiveFunc = rl.amqp.Receive
		startReceivePump(rl)
	default:
	}
}

// startReceivePump launches the goroutine that repeatedly calls the
// blocking Receive and forwards each message to rl.received, which
// do_work drains non-blockingly. This is the same bridging shape used
// for link creation: the goroutine performs I/O only, never mutates
// Messenger state; it assigns each message the next delivery id in
// sequence before handing it off, since it is the only writer of
// rl.nextDeliveryID.
func startReceivePump(rl *receiverLink) {
	ctx, cancel := context.WithCancel(context.Background())
	rl.pumpCancel = cancel
	rl.pumpDone = make(chan struct{})
	go func() {
		defer close(rl.pumpDone)
		for {
			msg, err := rl.receiveFunc(ctx, nil)
			if err != nil {
				return
			}
			rl.nextDeliveryID++
			rm := receivedMessage{msg: msg, linkName: rl.linkName, deliveryID: rl.nextDeliveryID}
			select {
			case rl.received <- rm:
			case <-ctx.Done():
				return
			}
		}
	}()
}

// closeReceiver cancels the pump's context and waits, bounded, for the
// pump goroutine to actually exit before closing the underlying link,
// so the pump is reaped rather than merely signalled.
func closeReceiver(rl *receiverLink) error {
	if rl == nil {
		return nil
	}
	if rl.pumpCancel != nil {
		rl.pumpCancel()
	}
	if rl.pumpDone != nil {
		select {
		case <-rl.pumpDone:
		case <-time.After(5 * time.Second):
			debug.Log(1, "receiver %s: pump did not exit within the close timeout", rl.linkName)
		}
	}
	if rl.amqp == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return rl.amqp.Close(ctx)
}
