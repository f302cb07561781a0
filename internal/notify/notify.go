// Package notify publishes deploy events to an AMQP queue.
package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/streadway/amqp"

	"github.com/eteu-technologies/slipway/internal/message"
)

// AMQPNotifier publishes one event per connection; deploys are rare
// enough that holding a connection open is not worth it.
type AMQPNotifier struct {
	URL   string
	Queue string
}

func (n *AMQPNotifier) Publish(ctx context.Context, event message.DeployEvent) (err error) {
	var data []byte
	if data, err = json.Marshal(&event); err != nil {
		err = fmt.Errorf("failed to marshal deploy event: %w", err)
		return
	}

	var conn *amqp.Connection
	var ch *amqp.Channel
	var q amqp.Queue

	if conn, err = amqp.Dial(n.URL); err != nil {
		err = fmt.Errorf("failed to connect to amqp broker: %w", err)
		return
	}
	defer conn.Close()

	if ch, err = conn.Channel(); err != nil {
		err = fmt.Errorf("failed to open a channel: %w", err)
		return
	}
	defer ch.Close()

	if q, err = ch.QueueDeclare(n.Queue, false, true, false, true, nil); err != nil {
		err = fmt.Errorf("failed to declare a queue: %w", err)
		return
	}

	err = ch.Publish("", q.Name, false, false, amqp.Publishing{
		DeliveryMode: amqp.Persistent,
		ContentType:  "application/json",
		Body:         data,
	})
	if err != nil {
		err = fmt.Errorf("failed publish a message: %w", err)
		return
	}

	return
}
