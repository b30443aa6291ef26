// Package messenger implements a per-device AMQP 1.0 sender/receiver
// pair: it provisions two unidirectional links over a caller-supplied
// session, serializes outbound sends through a retry/timeout-aware
// queue, tracks link lifecycle via observed state transitions, and
// surfaces a coarse started/stopped/error state to a host that drives
// it by calling DoWork in a loop.
//
// The package never opens a connection, authenticates, or persists
// anything across process restarts; the host owns the AMQP session and
// all of that surrounding machinery.
package messenger

import (
	"time"

	amqp "github.com/Azure/go-amqp"
	"github.com/pkg/errors"

	"github.com/deviceiot-go/amqpmessenger/internal/sendqueue"
)

const (
	defaultMaxSendErrorCount  = 10
	defaultSendTimeout        = 600 * time.Second
	defaultStateChangeTimeout = 300 * time.Second
)

// Config is supplied once, to Create. All string fields are required;
// the attach-property maps and timeouts are optional and default to
// the same values the original C messenger hard-codes.
type Config struct {
	DeviceID       string
	IoTHubHostFQDN string

	// DevicesPathFormat must carry exactly two substitutions: host then
	// device id, e.g. "%s/devices/%s".
	DevicesPathFormat string

	SendLinkTargetSuffix    string
	ReceiveLinkSourceSuffix string

	SendLinkAttachProperties    map[string]string
	ReceiveLinkAttachProperties map[string]string

	OnStateChanged OnStateChanged

	// MaxSendErrorCount defaults to 10 when zero.
	MaxSendErrorCount int
	// SendTimeout defaults to 600s when zero.
	SendTimeout time.Duration
	// SenderStateChangeTimeout/ReceiverStateChangeTimeout default to
	// 300s when zero; exposed for tests that need to exercise the
	// boundary without a real-time wait.
	SenderStateChangeTimeout   time.Duration
	ReceiverStateChangeTimeout time.Duration

	// Now overrides time.Now; nil means real time. Tests use this to
	// make age-based timeouts deterministic.
	Now func() time.Time
}

// Messenger is the core per-device sender/receiver pair. Create a value
// with Create; zero values are not ready to use.
type Messenger struct {
	deviceID       string
	iothubHostFQDN string

	devicesPathFormat       string
	sendLinkTargetSuffix    string
	receiveLinkSourceSuffix string

	sendLinkAttachProperties    map[string]string
	receiveLinkAttachProperties map[string]string

	onStateChanged OnStateChanged
	state          State

	session *amqp.Session

	sender   *senderLink
	receiver *receiverLink

	receiveMessages   bool
	onMessageReceived ReceiveCallback

	sendQueue *sendqueue.Queue[*SendContext]

	sendErrorCount             int
	maxSendErrorCount          int
	senderStateChangeTimeout   time.Duration
	receiverStateChangeTimeout time.Duration

	nowFunc func() time.Time
}

func (m *Messenger) now() time.Time {
	if m.nowFunc != nil {
		return m.nowFunc()
	}
	return time.Now()
}

// Create validates cfg and returns a new messenger in state Stopped.
func Create(cfg Config) (*Messenger, error) {
	if cfg.DeviceID == "" || cfg.IoTHubHostFQDN == "" || cfg.DevicesPathFormat == "" {
		return nil, newError("Create", ErrInvalidArgument, errors.New("device id, host and devices path format are required"))
	}
	if cfg.SendLinkTargetSuffix == "" || cfg.ReceiveLinkSourceSuffix == "" {
		return nil, newError("Create", ErrInvalidArgument, errors.New("both link suffixes are required"))
	}

	maxSendErrorCount := cfg.MaxSendErrorCount
	if maxSendErrorCount == 0 {
		maxSendErrorCount = defaultMaxSendErrorCount
	}
	sendTimeout := cfg.SendTimeout
	if sendTimeout == 0 {
		sendTimeout = defaultSendTimeout
	}
	senderTimeout := cfg.SenderStateChangeTimeout
	if senderTimeout == 0 {
		senderTimeout = defaultStateChangeTimeout
	}
	receiverTimeout := cfg.ReceiverStateChangeTimeout
	if receiverTimeout == 0 {
		receiverTimeout = defaultStateChangeTimeout
	}

	m := &Messenger{
		deviceID:                    cfg.DeviceID,
		iothubHostFQDN:              cfg.IoTHubHostFQDN,
		devicesPathFormat:           cfg.DevicesPathFormat,
		sendLinkTargetSuffix:        cfg.SendLinkTargetSuffix,
		receiveLinkSourceSuffix:     cfg.ReceiveLinkSourceSuffix,
		sendLinkAttachProperties:    cfg.SendLinkAttachProperties,
		receiveLinkAttachProperties: cfg.ReceiveLinkAttachProperties,
		onStateChanged:              cfg.OnStateChanged,
		state:                       StateStopped,
		maxSendErrorCount:           maxSendErrorCount,
		senderStateChangeTimeout:    senderTimeout,
		receiverStateChangeTimeout:  receiverTimeout,
		nowFunc:                     cfg.Now,
	}

	q := sendqueue.New[*SendContext]()
	q.MaxEnqueuedTime = sendTimeout
	q.Now = m.nowFunc
	q.OnProcessMessage = func(sc *SendContext, complete sendqueue.CompleteFunc) {
		onProcessSend(sc, complete)
	}
	q.OnItemCompleted = func(sc *SendContext, result sendqueue.Result) {
		onSendCompleted(sc, result)
	}
	m.sendQueue = q

	return m, nil
}

// Start transitions a Stopped messenger to Starting, recording the
// caller-owned session that link creation will attach to.
func (m *Messenger) Start(session *amqp.Session) error {
	if m.state != StateStopped {
		return newError("Start", ErrInvalidArgument, nil)
	}
	if session == nil {
		return newError("Start", ErrInvalidArgument, nil)
	}
	m.session = session
	m.setState(StateStarting)
	return nil
}

// Stop tears down both links synchronously and moves any in-flight
// queue items back to pending so they survive a later Start. It never
// waits on a do_work tick.
func (m *Messenger) Stop() error {
	if m.state == StateStopped {
		return newError("Stop", ErrInvalidArgument, nil)
	}

	m.setState(StateStopping)

	if err := closeSender(m.sender); err != nil {
		m.setState(StateError)
		return newError("Stop", ErrTransportFailure, err)
	}
	if err := closeReceiver(m.receiver); err != nil {
		m.setState(StateError)
		return newError("Stop", ErrTransportFailure, err)
	}
	m.sender = nil
	m.receiver = nil

	m.sendQueue.MoveAllInFlightToPending()
	m.session = nil
	m.setState(StateStopped)
	return nil
}

// Destroy is idempotent: it stops the messenger if it isn't already
// Stopped, cancels every remaining queued send with
// SendMessengerDestroyed, and releases the attach-property maps.
func (m *Messenger) Destroy() {
	if m.state != StateStopped {
		_ = m.Stop()
	}
	m.sendQueue.CancelAll()
	m.sendLinkAttachProperties = nil
	m.receiveLinkAttachProperties = nil
}
