package messenger

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
)

func TestSetOptionWritesThroughToSendQueueTimeout(t *testing.T) {
	m := newTestMessenger(t)

	assert.NoError(t, m.SetOption(OptionSendTimeoutSecs, 30))
	assert.Equal(t, 30*time.Second, m.sendQueue.MaxEnqueuedTime)
}

func TestSetOptionRejectsUnknownName(t *testing.T) {
	m := newTestMessenger(t)
	err := m.SetOption("not_a_real_option", 1)
	assert.Error(t, err)

	var me *Error
	assert.ErrorAs(t, err, &me)
	assert.Equal(t, ErrUnsupported, me.Kind)
}

func TestSetOptionRejectsWrongValueType(t *testing.T) {
	m := newTestMessenger(t)
	err := m.SetOption(OptionSendTimeoutSecs, "thirty")
	assert.Error(t, err)
}

func TestRetrieveThenApplyToFreshMessengerYieldsIdenticalQueueTimeout(t *testing.T) {
	m := newTestMessenger(t)
	assert.NoError(t, m.SetOption(OptionSendTimeoutSecs, 42))

	snap := m.RetrieveOptions().Clone()

	fresh := newTestMessenger(t)
	fresh.ApplyOptions(snap)

	assert.True(t, cmp.Equal(snap, fresh.RetrieveOptions()))
}

func TestOptionsSnapshotCloneIsIndependent(t *testing.T) {
	original := OptionsSnapshot{
		SendTimeout: 10 * time.Second,
		QueueOptions: QueueOptionsSnapshot{
			MaxEnqueuedTime: 10 * time.Second,
			MaxRetryCount:   3,
		},
	}
	clone := original.Clone()
	clone.QueueOptions.MaxRetryCount = 99

	assert.Equal(t, 3, original.QueueOptions.MaxRetryCount, "mutating the clone must not affect the original")
}
