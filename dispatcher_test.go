package messenger

import (
	"testing"
	"time"

	"github.com/fortytw2/leaktest"
	"github.com/stretchr/testify/assert"

	"github.com/deviceiot-go/amqpmessenger/internal/sendqueue"
)

func TestReconcileReceiverTearsDownWhenUnsubscribed(t *testing.T) {
	m := newTestMessenger(t)
	m.receiver = &receiverLink{linkName: "link-rcv-d1-abc"}
	m.receiveMessages = false

	m.reconcileReceiver()

	assert.Nil(t, m.receiver)
}

func TestReconcileReceiverLeavesAnOpenReceiverAloneWhileSubscribed(t *testing.T) {
	m := newTestMessenger(t)
	rl := &receiverLink{linkName: "link-rcv-d1-abc"}
	rl.observer.record(linkStateOpen, time.Now())
	m.receiver = rl
	m.receiveMessages = true

	m.reconcileReceiver()

	assert.Same(t, rl, m.receiver)
}

func TestDoWorkDoesNotPumpSendQueueWhileStopped(t *testing.T) {
	defer leaktest.Check(t)()

	m := newTestMessenger(t)
	m.state = StateStopped

	presented := false
	m.sendQueue.OnProcessMessage = func(sc *SendContext, complete sendqueue.CompleteFunc) {
		presented = true
	}
	assert.NoError(t, m.SendAsync([]byte("x"), func(SendResult, any) {}, nil))

	m.DoWork()

	assert.False(t, presented, "do_work must not advance the queue outside Started")
}
