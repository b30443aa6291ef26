package messenger

import (
	"context"
	"time"

	amqp "github.com/Azure/go-amqp"

	"github.com/deviceiot-go/amqpmessenger/internal/debug"
	"github.com/deviceiot-go/amqpmessenger/internal/sendqueue"
)

// SendResult is the outcome reported to a send_async completion
// callback, the closed set from the completion-routing table.
type SendResult int

const (
	SendOK SendResult = iota
	SendErrorCannotParse
	SendErrorFailSending
	SendErrorTimeout
	SendMessengerDestroyed
)

func (r SendResult) String() string {
	switch r {
	case SendOK:
		return "ok"
	case SendErrorCannotParse:
		return "cannot parse"
	case SendErrorFailSending:
		return "fail sending"
	case SendErrorTimeout:
		return "timeout"
	case SendMessengerDestroyed:
		return "messenger destroyed"
	default:
		return "unknown"
	}
}

// SendCallback is invoked exactly once per accepted send_async call.
type SendCallback func(result SendResult, userContext any)

// SendContext is the per-enqueued-send record the queue tracks. It
// holds a non-owning back-reference to the messenger: the context's
// lifetime is strictly bounded by its time in the queue, so the cycle
// never outlives a single slot.
type SendContext struct {
	messenger   *Messenger
	message     *amqp.Message
	callback    SendCallback
	userContext any
	released    bool
}

// SendAsync clones msg's payload into an owned outbound message,
// enqueues it, and returns. The callback fires exactly once when the
// item completes, from inside a later do_work tick (or synchronously
// from Destroy, for anything still queued).
func (m *Messenger) SendAsync(payload []byte, cb SendCallback, userContext any) error {
	if cb == nil {
		return newError("SendAsync", ErrInvalidArgument, nil)
	}
	if payload == nil {
		return newError("SendAsync", ErrInvalidArgument, nil)
	}

	cloned := make([]byte, len(payload))
	copy(cloned, payload)

	sc := &SendContext{
		messenger:   m,
		message:     amqp.NewMessage(cloned),
		callback:    cb,
		userContext: userContext,
	}
	m.sendQueue.Enqueue(sc)
	return nil
}

// onProcessSend is wired as the SendQueue's OnProcessMessage callback.
// It starts the (blocking) transport send on a bridging goroutine and
// arranges for complete to be invoked once that goroutine finishes;
// do_work itself never blocks.
func onProcessSend(sc *SendContext, complete sendqueue.CompleteFunc) {
	m := sc.messenger
	if m.sender == nil || m.sender.amqp == nil {
		complete(sendqueue.ResultError)
		return
	}
	sender := m.sender.amqp
	msg := sc.message
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		err := sender.Send(ctx, msg, nil)
		if err != nil {
			debug.Log(1, "send failed: %v", err)
			complete(sendqueue.ResultError)
			return
		}
		complete(sendqueue.ResultSuccess)
	}()
}

// onSendCompleted is wired as the SendQueue's OnItemCompleted callback.
// It translates a queue result into the user-facing SendResult per the
// completion-routing table and fires the caller's callback.
func onSendCompleted(sc *SendContext, result sendqueue.Result) {
	if sc.released {
		return
	}
	sc.released = true

	m := sc.messenger
	var sendResult SendResult
	switch result {
	case sendqueue.ResultSuccess:
		sendResult = SendOK
	case sendqueue.ResultTimeout:
		sendResult = SendErrorTimeout
	case sendqueue.ResultCancelled:
		sendResult = SendMessengerDestroyed
	case sendqueue.ResultError:
		sendResult = SendErrorFailSending
		m.sendErrorCount++
	default:
		sendResult = SendErrorFailSending
	}
	sc.callback(sendResult, sc.userContext)
}

// GetSendStatus reports IDLE when the send queue has no pending or
// in-flight work, BUSY otherwise.
func (m *Messenger) GetSendStatus() SendStatus {
	if m.sendQueue.IsEmpty() {
		return SendStatusIdle
	}
	return SendStatusBusy
}

// SendStatus is the closed result of GetSendStatus.
type SendStatus int

const (
	SendStatusIdle SendStatus = iota
	SendStatusBusy
)

func (s SendStatus) String() string {
	if s == SendStatusBusy {
		return "busy"
	}
	return "idle"
}
