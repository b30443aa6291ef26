package messenger

import "github.com/deviceiot-go/amqpmessenger/internal/debug"

// DoWork is the single non-blocking tick the host must call regularly.
// It makes no independent progress between calls: ordering inside a
// tick is state observation first, then link creation/teardown for the
// current phase, then the send queue, then the receive path, so stale
// observations never trap the machine and every phase sees fresh state.
func (m *Messenger) DoWork() {
	now := m.now()

	pollSenderCreate(m.sender, now)
	pollReceiverCreate(m.receiver, now)

	m.evaluateStatePolicy(now)

	switch m.state {
	case StateStarting:
		if m.sender == nil {
			sl, err := beginSenderCreate(m)
			if err != nil {
				debug.Log(1, "sender creation failed: %v", err)
				m.setState(StateError)
				return
			}
			m.sender = sl
		}
	case StateStarted:
		m.reconcileReceiver()
		m.sendQueue.DoWork()
		drainReceived(m)
	}
}

// reconcileReceiver creates the receiver link lazily when a
// subscription is active and none exists, and tears it down once the
// subscription is cleared. Receiver creation failure is a soft failure:
// it is logged and retried on a later tick, it never demotes the
// messenger state (unlike sender creation, which gates Starting).
func (m *Messenger) reconcileReceiver() {
	if m.receiveMessages && m.receiver == nil {
		rl, err := beginReceiverCreate(m)
		if err != nil {
			debug.Log(1, "receiver creation failed: %v", err)
			return
		}
		m.receiver = rl
		return
	}
	if !m.receiveMessages && m.receiver != nil {
		if err := closeReceiver(m.receiver); err != nil {
			debug.Log(1, "receiver close failed: %v", err)
		}
		m.receiver = nil
	}
}
