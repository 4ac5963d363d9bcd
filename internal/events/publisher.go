// Package events publishes outreach lifecycle events (send outcomes and
// recorded coach replies) for downstream consumers such as the athlete
// dashboard and CRM sync.
package events

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/playbook/outreach/internal/pkg/logger"
)

type EventType string

const (
	MessageSent      EventType = "message.sent"
	MessageFailed    EventType = "message.failed"
	ResponseReceived EventType = "response.received"
)

// Event is one outreach lifecycle event.
type Event struct {
	Type       EventType `json:"type"`
	CampaignID string    `json:"campaign_id"`
	AthleteID  string    `json:"athlete_id"`
	CoachID    string    `json:"coach_id"`
	MessageID  string    `json:"message_id,omitempty"`
	ResponseID string    `json:"response_id,omitempty"`
	Provider   string    `json:"provider,omitempty"`
	Error      string    `json:"error,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// Publisher delivers events. Publish must not block the caller on the
// downstream transport.
type Publisher interface {
	Publish(ctx context.Context, evt Event)
}

// Noop discards events.
type Noop struct{}

func (Noop) Publish(context.Context, Event) {}

// SQSAPI is the subset of the SQS client the publisher calls.
type SQSAPI interface {
	SendMessage(ctx context.Context, in *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

// SQSPublisher sends each event as one SQS message in the background.
type SQSPublisher struct {
	client   SQSAPI
	queueURL string
	timeout  time.Duration
	log      *logger.Logger
	wg       sync.WaitGroup
}

// NewSQSPublisher creates a publisher for queueURL.
func NewSQSPublisher(client SQSAPI, queueURL string, l *logger.Logger) *SQSPublisher {
	return &SQSPublisher{
		client:   client,
		queueURL: queueURL,
		timeout:  5 * time.Second,
		log:      l.With("component", "events"),
	}
}

// Publish marshals evt and sends it asynchronously. Failures are logged.
func (p *SQSPublisher) Publish(_ context.Context, evt Event) {
	body, err := json.Marshal(evt)
	if err != nil {
		p.log.Error("marshal event", "type", evt.Type, "error", err)
		return
	}

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
		defer cancel()

		_, err := p.client.SendMessage(ctx, &sqs.SendMessageInput{
			QueueUrl:    aws.String(p.queueURL),
			MessageBody: aws.String(string(body)),
			MessageAttributes: map[string]types.MessageAttributeValue{
				"event_type": {DataType: aws.String("String"), StringValue: aws.String(string(evt.Type))},
			},
		})
		if err != nil {
			p.log.Error("publish event", "type", evt.Type, "campaign_id", evt.CampaignID, "error", err)
		}
	}()
}

// Close waits for in-flight publishes.
func (p *SQSPublisher) Close() {
	p.wg.Wait()
}
