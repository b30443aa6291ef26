package messenger

import (
	"testing"

	amqp "github.com/Azure/go-amqp"
	"github.com/stretchr/testify/assert"
)

func TestSubscribeAndUnsubscribeTogglesReceiveMessages(t *testing.T) {
	m := newTestMessenger(t)
	assert.False(t, m.receiveMessages)

	assert.NoError(t, m.Subscribe(func([]byte, *DispositionHandle) DispositionResult { return DispositionAccepted }))
	assert.True(t, m.receiveMessages)

	assert.Error(t, m.Subscribe(func([]byte, *DispositionHandle) DispositionResult { return DispositionNone }), "subscribing twice must fail")

	assert.NoError(t, m.Unsubscribe())
	assert.False(t, m.receiveMessages)
	assert.Nil(t, m.onMessageReceived)

	assert.Error(t, m.Unsubscribe(), "unsubscribing while not subscribed must fail")
}

func TestApplyDispositionNoneConsumesHandleWithoutTouchingTransport(t *testing.T) {
	m := newTestMessenger(t)
	handle := &DispositionHandle{DeliveryID: 7, LinkName: "link-rcv-d1-abc"}

	err := m.applyDisposition(handle, DispositionNone)
	assert.NoError(t, err)
	assert.True(t, handle.consumed)
}

func TestApplyDispositionIsIdempotentOnceConsumed(t *testing.T) {
	m := newTestMessenger(t)
	handle := &DispositionHandle{DeliveryID: 1, LinkName: "l"}
	handle.consumed = true

	err := m.applyDisposition(handle, DispositionAccepted)
	assert.NoError(t, err, "a consumed handle is a no-op, not an error")
}

func TestSendDispositionFailsWithoutALiveReceiver(t *testing.T) {
	m := newTestMessenger(t)
	handle := &DispositionHandle{DeliveryID: 7, LinkName: "link-rcv-d1-abc"}

	err := m.SendDisposition(handle, DispositionAccepted)
	assert.Error(t, err)
	assert.False(t, handle.consumed)
}

func TestDrainReceivedDeliversARealMessageAndAppliesTheVerdict(t *testing.T) {
	m := newTestMessenger(t)
	rl := &receiverLink{
		linkName: "link-rcv-d1-abc",
		amqp:     &amqp.Receiver{},
		received: make(chan receivedMessage, 1),
	}
	m.receiver = rl

	rl.received <- receivedMessage{
		msg:        amqp.NewMessage([]byte("hello")),
		linkName:   rl.linkName,
		deliveryID: 42,
	}

	var gotPayload []byte
	var gotHandle *DispositionHandle
	m.onMessageReceived = func(payload []byte, handle *DispositionHandle) DispositionResult {
		gotPayload = payload
		gotHandle = handle
		return DispositionNone
	}

	drainReceived(m)

	assert.Equal(t, []byte("hello"), gotPayload)
	assert.Equal(t, uint64(42), gotHandle.DeliveryID)
	assert.Equal(t, "link-rcv-d1-abc", gotHandle.LinkName)
	assert.True(t, gotHandle.consumed, "DispositionNone must still consume the handle")
}

func TestDestroyDispositionInfoIsSafeOnNilAndConsumesHandle(t *testing.T) {
	assert.NotPanics(t, func() { DestroyDispositionInfo(nil) })

	handle := &DispositionHandle{DeliveryID: 1, LinkName: "l"}
	DestroyDispositionInfo(handle)
	assert.True(t, handle.consumed)
}
