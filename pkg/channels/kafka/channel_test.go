package kafka

import (
	"context"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	kafkaTc "github.com/testcontainers/testcontainers-go/modules/kafka"

	"github.com/dukex/flowpilot/pkg/eventbus"
	"github.com/dukex/flowpilot/pkg/events"
	"github.com/dukex/flowpilot/pkg/models"
)

func TestCreateChannel_NoBrokers(t *testing.T) {
	_, _, err := CreateChannel(watermill.NopLogger{}, nil, "flowpilot")
	assert.ErrorIs(t, err, errNoBrokers)

	_, _, err = CreateChannel(watermill.NopLogger{}, []string{""}, "flowpilot")
	assert.ErrorIs(t, err, errNoBrokers)
}

func TestCreateChannel_RoundTrip(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping Kafka container test in short mode")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	container, err := kafkaTc.Run(ctx, "confluentinc/confluent-local:7.7.0", testcontainers.WithEnv(map[string]string{
		"KAFKA_CREATE_TOPICS": "true",
	}))
	require.NoError(t, err)

	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	brokers, err := container.Brokers(ctx)
	require.NoError(t, err)

	pub, sub, err := CreateChannel(watermill.NopLogger{}, brokers, "flowpilot-test")
	require.NoError(t, err)

	bus := eventbus.NewWatermillEventBus(pub, sub)
	defer func() { _ = bus.Close() }()

	received := make(chan *events.WorkflowFinished, 1)
	require.NoError(t, bus.Handle(events.WorkflowFinishedEvent, func(_ context.Context, event any) error {
		received <- event.(*events.WorkflowFinished)

		return nil
	}))

	require.NoError(t, bus.Publish(ctx, "wf-1", events.WorkflowFinished{
		BaseEvent: events.NewBaseEvent(events.WorkflowFinishedEvent, "wf-1"),
		Status:    models.WorkflowStatusCompleted,
	}))

	require.NoError(t, bus.Subscribe(ctx))

	select {
	case event := <-received:
		assert.Equal(t, "wf-1", event.WorkflowID)
		assert.Equal(t, models.WorkflowStatusCompleted, event.Status)
	case <-ctx.Done():
		t.Fatal("event was not delivered")
	}
}
