package messaging

import (
	"context"
	"encoding/json"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/messaging/azservicebus"
	"github.com/pkg/errors"

	"example.com/eventhub/config"
	"example.com/eventhub/internal/models"
)

// eventIngestedSubject labels notification messages for downstream consumers
const eventIngestedSubject = "event.ingested"

// Notifier announces newly ingested events on a Service Bus queue
type Notifier struct {
	client    *azservicebus.Client
	sender    *azservicebus.Sender
	queueName string
}

// NewNotifier creates a new Service Bus notifier
func NewNotifier(cfg config.AzureConfig) (*Notifier, error) {
	if cfg.QueueConnStr == "" {
		return nil, errors.New("Azure Service Bus connection string is empty")
	}

	client, err := azservicebus.NewClientFromConnectionString(cfg.QueueConnStr, nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create Service Bus client")
	}

	sender, err := client.NewSender(cfg.QueueName, nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create Service Bus sender")
	}

	return &Notifier{
		client:    client,
		sender:    sender,
		queueName: cfg.QueueName,
	}, nil
}

// PublishEventIngested sends an event.ingested notification
func (n *Notifier) PublishEventIngested(ctx context.Context, event *models.Event) error {
	body, err := json.Marshal(map[string]interface{}{
		"event_id":   event.ID,
		"name":       event.Name,
		"city":       event.City,
		"country":    event.Country,
		"created_at": event.CreatedAt,
	})
	if err != nil {
		return errors.Wrap(err, "failed to marshal notification body")
	}

	subject := eventIngestedSubject
	msg := &azservicebus.Message{
		Body:    body,
		Subject: &subject,
		ApplicationProperties: map[string]interface{}{
			"source": "eventhub-worker",
			"time":   time.Now().UTC().Format(time.RFC3339),
		},
	}

	return n.sender.SendMessage(ctx, msg, nil)
}

// Close closes the Service Bus client
func (n *Notifier) Close() error {
	if n.sender != nil {
		if err := n.sender.Close(context.Background()); err != nil {
			return err
		}
	}

	if n.client != nil {
		return n.client.Close(context.Background())
	}

	return nil
}
