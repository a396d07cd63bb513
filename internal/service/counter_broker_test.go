package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"postboard/internal/config"
	"postboard/internal/util"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// newTestBroker starts a throwaway RabbitMQ container and returns its config
func newTestBroker(t *testing.T) *config.Config {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping broker tests in short mode")
	}
	testcontainers.SkipIfProviderIsNotHealthy(t)

	ctx := context.Background()
	ctr, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "rabbitmq:3.13-alpine",
			ExposedPorts: []string{"5672/tcp"},
			Env: map[string]string{
				"RABBITMQ_DEFAULT_USER": "postboard",
				"RABBITMQ_DEFAULT_PASS": "postboard",
			},
			WaitingFor: wait.ForAll(
				wait.ForLog("Server startup complete"),
				wait.ForListeningPort("5672/tcp"),
			).WithDeadline(2 * time.Minute),
		},
		Started: true,
	})
	t.Cleanup(func() {
		if ctr != nil {
			require.NoError(t, ctr.Terminate(context.Background()))
		}
	})
	require.NoError(t, err)

	host, err := ctr.Host(ctx)
	require.NoError(t, err)
	port, err := ctr.MappedPort(ctx, "5672/tcp")
	require.NoError(t, err)

	return &config.Config{RabbitMQURL: fmt.Sprintf("amqp://postboard:postboard@%s:%s/", host, port.Port())}
}

func TestCounterEventsReachEveryInstance(t *testing.T) {
	cfg := newTestBroker(t)

	hubs := []*recordingHub{newRecordingHub(), newRecordingHub()}
	var clients []*util.RabbitMQClient
	for _, hub := range hubs {
		client, err := util.NewRabbitMQClient(cfg)
		require.NoError(t, err)
		t.Cleanup(func() { _ = client.Close() })
		clients = append(clients, client)

		worker := NewCounterWorker(client, hub)
		require.NoError(t, worker.Start())
		t.Cleanup(worker.Stop)
	}

	NewEventPublisher(clients[0], nil).Publish(CounterEvent{Type: EventPostLiked, PostID: 4, Likes: 1})

	for i, hub := range hubs {
		assert.Eventually(t, func() bool {
			return len(hub.forPost(4)) == 1
		}, 10*time.Second, 50*time.Millisecond, "instance %d missed the event", i)
	}
	assert.Equal(t, 1, hubs[1].forPost(4)[0]["likes"])
}
