package messenger

import (
	"context"
	"time"

	amqp "github.com/Azure/go-amqp"

	"github.com/deviceiot-go/amqpmessenger/internal/debug"
)

// DispositionResult is the application's verdict on an inbound message.
// None means no disposition is sent at all.
type DispositionResult int

const (
	DispositionNone DispositionResult = iota
	DispositionAccepted
	DispositionRejected
	DispositionReleased
)

func (d DispositionResult) String() string {
	switch d {
	case DispositionNone:
		return "none"
	case DispositionAccepted:
		return "accepted"
	case DispositionRejected:
		return "rejected"
	case DispositionReleased:
		return "released"
	default:
		return "unknown"
	}
}

const rejectedDescription = "Rejected by application"

// DispositionHandle is surfaced to the application for each inbound
// message. Its fields are captured before the receive callback runs, so
// they remain valid even if the receiver link is later torn down. It is
// consumed exactly once, either by a successful SendDisposition or by an
// explicit DestroyDispositionInfo call.
type DispositionHandle struct {
	DeliveryID uint64
	LinkName   string

	message  *amqp.Message
	consumed bool
}

// ReceiveCallback is invoked once per inbound message. The returned
// verdict is translated into an AMQP disposition and sent back to the
// peer, unless it is DispositionNone.
type ReceiveCallback func(payload []byte, handle *DispositionHandle) DispositionResult

// Subscribe arms the receive path: receive_messages becomes true and a
// receiver link is created lazily on the next do_work while Started.
func (m *Messenger) Subscribe(cb ReceiveCallback) error {
	if cb == nil {
		return newError("Subscribe", ErrInvalidArgument, nil)
	}
	if m.receiveMessages {
		return newError("Subscribe", ErrInvalidArgument, nil)
	}
	m.receiveMessages = true
	m.onMessageReceived = cb
	return nil
}

// Unsubscribe clears the callback; the receiver link, if any, is torn
// down on the next do_work tick.
func (m *Messenger) Unsubscribe() error {
	if !m.receiveMessages {
		return newError("Unsubscribe", ErrInvalidArgument, nil)
	}
	m.receiveMessages = false
	m.onMessageReceived = nil
	return nil
}

// drainReceived delivers every message waiting in the receiver's pump
// channel to the application callback, then applies the returned
// verdict. Called once per do_work tick while a receiver is open.
func drainReceived(m *Messenger) {
	if m.receiver == nil || m.receiver.amqp == nil || m.onMessageReceived == nil {
		return
	}
	for {
		select {
		case rm := <-m.receiver.received:
			handle := &DispositionHandle{
				DeliveryID: rm.deliveryID,
				LinkName:   rm.linkName,
				message:    rm.msg,
			}
			verdict := m.onMessageReceived(rm.msg.GetData(), handle)
			if err := m.applyDisposition(handle, verdict); err != nil {
				debug.Log(1, "disposition for delivery %d on %s failed: %v", handle.DeliveryID, handle.LinkName, err)
			}
		default:
			return
		}
	}
}

// SendDisposition lets the application defer its verdict past the
// original receive callback. Valid only while the receiver link that
// produced handle is still alive.
func (m *Messenger) SendDisposition(handle *DispositionHandle, verdict DispositionResult) error {
	if handle == nil {
		return newError("SendDisposition", ErrInvalidArgument, nil)
	}
	if m.receiver == nil || m.receiver.amqp == nil {
		return newError("SendDisposition", ErrTransportFailure, nil)
	}
	return m.applyDisposition(handle, verdict)
}

// applyDisposition always attempts to notify the peer except for
// DispositionNone, regardless of outcome; it marks handle consumed only
// when the attempt succeeds, so a failed disposition still requires the
// caller to release the handle explicitly.
func (m *Messenger) applyDisposition(handle *DispositionHandle, verdict DispositionResult) error {
	if handle.consumed {
		return nil
	}
	if verdict == DispositionNone {
		handle.consumed = true
		return nil
	}
	if m.receiver == nil || m.receiver.amqp == nil {
		return newError("applyDisposition", ErrTransportFailure, nil)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var err error
	switch verdict {
	case DispositionAccepted:
		err = m.receiver.amqp.AcceptMessage(ctx, handle.message)
	case DispositionRejected:
		err = m.receiver.amqp.RejectMessage(ctx, handle.message, &amqp.Error{
			Condition:   "amqp:rejected",
			Description: rejectedDescription,
		})
	case DispositionReleased:
		err = m.receiver.amqp.ReleaseMessage(ctx, handle.message)
	default:
		return newError("applyDisposition", ErrUnsupported, nil)
	}
	if err != nil {
		return newError("applyDisposition", ErrTransportFailure, err)
	}
	handle.consumed = true
	return nil
}

// DestroyDispositionInfo releases handle without sending any
// disposition. Safe to call on an already-consumed handle.
func DestroyDispositionInfo(handle *DispositionHandle) {
	if handle == nil {
		return
	}
	handle.consumed = true
}
