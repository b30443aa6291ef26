package messenger

import (
	"context"
	"testing"

	amqp "github.com/Azure/go-amqp"
	"github.com/fortytw2/leaktest"
	"github.com/stretchr/testify/assert"
)

func TestStartReceivePumpForwardsMessagesWithIncreasingDeliveryIDs(t *testing.T) {
	rl := &receiverLink{
		linkName: "link-rcv-d1-abc",
		received: make(chan receivedMessage, 2),
	}
	calls := 0
	rl.receiveFunc = func(ctx context.Context, opts *amqp.ReceiveOptions) (*amqp.Message, error) {
		calls++
		if calls > 2 {
			<-ctx.Done()
			return nil, ctx.Err()
		}
		return amqp.NewMessage([]byte("m")), nil
	}

	startReceivePump(rl)

	first := <-rl.received
	second := <-rl.received
	assert.Equal(t, uint64(1), first.deliveryID)
	assert.Equal(t, uint64(2), second.deliveryID)

	assert.NoError(t, closeReceiver(rl))
}

// TestCloseReceiverReapsThePumpGoroutine guards against closeReceiver only
// cancelling the pump's context without waiting for it to actually exit.
func TestCloseReceiverReapsThePumpGoroutine(t *testing.T) {
	defer leaktest.Check(t)()

	rl := &receiverLink{
		linkName: "link-rcv-d1-abc",
		received: make(chan receivedMessage, 1),
	}
	blocked := make(chan struct{})
	rl.receiveFunc = func(ctx context.Context, opts *amqp.ReceiveOptions) (*amqp.Message, error) {
		close(blocked)
		<-ctx.Done()
		return nil, ctx.Err()
	}

	startReceivePump(rl)
	<-blocked

	assert.NoError(t, closeReceiver(rl))

	select {
	case <-rl.pumpDone:
	default:
		t.Fatal("closeReceiver returned before the pump goroutine exited")
	}
}
