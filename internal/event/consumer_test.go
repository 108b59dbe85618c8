package event

import (
	"context"
	"sync"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestConsumer(handler MessageHandler) *Consumer {
	return &Consumer{
		queueName:   "loan.transactions",
		consumerTag: "test",
		handler:     handler,
		logger:      logger,
		wg:          new(sync.WaitGroup),
	}
}

func runConsume(ctx context.Context, c *Consumer, deliveries <-chan amqp.Delivery) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		c.consume(ctx, deliveries)
		close(done)
	}()
	return done
}

func waitDone(t *testing.T, done <-chan struct{}) {
	t.Helper()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("consume loop did not exit")
	}
}

func TestConsumerHandlesDeliveriesUntilChannelCloses(t *testing.T) {
	handled := make(chan string, 2)
	c := newTestConsumer(func(_ context.Context, d amqp.Delivery) {
		handled <- d.MessageId
	})
	deliveries := make(chan amqp.Delivery, 2)
	deliveries <- amqp.Delivery{MessageId: "m-1"}
	deliveries <- amqp.Delivery{MessageId: "m-2"}
	close(deliveries)

	waitDone(t, runConsume(context.Background(), c, deliveries))

	require.Len(t, handled, 2)
	assert.Equal(t, "m-1", <-handled)
	assert.Equal(t, "m-2", <-handled)
}

func TestConsumerExitsOnCancel(t *testing.T) {
	called := false
	c := newTestConsumer(func(context.Context, amqp.Delivery) { called = true })
	ctx, cancel := context.WithCancel(context.Background())
	deliveries := make(chan amqp.Delivery)

	done := runConsume(ctx, c, deliveries)
	cancel()

	waitDone(t, done)
	assert.False(t, called)
}

func TestConsumerStopBeforeStart(t *testing.T) {
	c := newTestConsumer(nil)

	assert.NotPanics(t, c.Stop)
}
