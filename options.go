package messenger

import "time"

// Option names recognized by SetOption. Any other name fails with
// ErrUnsupported.
const (
	OptionSendTimeoutSecs = "amqp_event_send_timeout_secs"
	// OptionMessageQueueOptions names the nested snapshot embedded in
	// OptionsSnapshot, mirroring the opaque "amqp_message_queue_options"
	// sub-handle the source embeds inside its own option snapshot.
	OptionMessageQueueOptions = "amqp_message_queue_options"
)

// QueueOptionsSnapshot is the nested, independently cloneable snapshot
// of the send queue's own knobs.
type QueueOptionsSnapshot struct {
	MaxEnqueuedTime   time.Duration
	MaxRetryCount     int
	MaxProcessingTime time.Duration
}

// Clone returns an independent copy. The struct holds only value
// fields, so a plain copy already satisfies the deep-copy requirement.
func (s QueueOptionsSnapshot) Clone() QueueOptionsSnapshot {
	return s
}

// OptionsSnapshot is the value returned by RetrieveOptions: the send
// timeout plus the embedded queue snapshot named by
// OptionMessageQueueOptions.
type OptionsSnapshot struct {
	SendTimeout  time.Duration
	QueueOptions QueueOptionsSnapshot
}

// Clone deep-copies the snapshot, including its nested queue snapshot.
func (s OptionsSnapshot) Clone() OptionsSnapshot {
	return OptionsSnapshot{
		SendTimeout:  s.SendTimeout,
		QueueOptions: s.QueueOptions.Clone(),
	}
}

// SetOption writes a single named knob through to the underlying
// component. Today the only recognized name is OptionSendTimeoutSecs.
func (m *Messenger) SetOption(name string, value any) error {
	switch name {
	case OptionSendTimeoutSecs:
		secs, ok := asSeconds(value)
		if !ok {
			return newError("SetOption", ErrInvalidArgument, nil)
		}
		m.sendQueue.MaxEnqueuedTime = time.Duration(secs) * time.Second
		return nil
	default:
		return newError("SetOption", ErrUnsupported, nil)
	}
}

// asSeconds accepts an int, uint or uint32 count of seconds, matching
// callers that pass a plain integer for amqp_event_send_timeout_secs.
// Any other type, including time.Duration, is rejected.
func asSeconds(value any) (int, bool) {
	switch v := value.(type) {
	case int:
		return v, true
	case uint:
		return int(v), true
	case uint32:
		return int(v), true
	default:
		return 0, false
	}
}

// RetrieveOptions snapshots the messenger's current configurable knobs.
func (m *Messenger) RetrieveOptions() OptionsSnapshot {
	return OptionsSnapshot{
		SendTimeout: m.sendQueue.MaxEnqueuedTime,
		QueueOptions: QueueOptionsSnapshot{
			MaxEnqueuedTime:   m.sendQueue.MaxEnqueuedTime,
			MaxRetryCount:     m.sendQueue.MaxRetryCount,
			MaxProcessingTime: m.sendQueue.MaxProcessingTime,
		},
	}
}

// ApplyOptions writes a previously retrieved snapshot into m, e.g. onto
// a freshly created messenger, restoring its queue timeout.
func (m *Messenger) ApplyOptions(snap OptionsSnapshot) {
	m.sendQueue.MaxEnqueuedTime = snap.QueueOptions.MaxEnqueuedTime
	m.sendQueue.MaxRetryCount = snap.QueueOptions.MaxRetryCount
	m.sendQueue.MaxProcessingTime = snap.QueueOptions.MaxProcessingTime
}
