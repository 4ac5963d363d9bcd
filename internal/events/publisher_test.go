package events

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/playbook/outreach/internal/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSQS struct {
	mu   sync.Mutex
	sent []*sqs.SendMessageInput
	err  error
}

func (f *fakeSQS) SendMessage(_ context.Context, in *sqs.SendMessageInput, _ ...func(*sqs.Options)) (*sqs.SendMessageOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, in)
	return &sqs.SendMessageOutput{}, f.err
}

func TestSQSPublisher_Publish(t *testing.T) {
	fake := &fakeSQS{}
	p := NewSQSPublisher(fake, "https://sqs.test/queue", logger.New(io.Discard, logger.INFO, true))

	p.Publish(context.Background(), Event{
		Type:       MessageSent,
		CampaignID: "c1",
		CoachID:    "k1",
		MessageID:  "m1",
		OccurredAt: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	})
	p.Close()

	require.Len(t, fake.sent, 1)
	in := fake.sent[0]
	assert.Equal(t, "https://sqs.test/queue", aws.ToString(in.QueueUrl))
	assert.Equal(t, "message.sent", aws.ToString(in.MessageAttributes["event_type"].StringValue))

	var got Event
	require.NoError(t, json.Unmarshal([]byte(aws.ToString(in.MessageBody)), &got))
	assert.Equal(t, "m1", got.MessageID)
	assert.Equal(t, MessageSent, got.Type)
}

func TestSQSPublisher_FailureIsSwallowed(t *testing.T) {
	fake := &fakeSQS{err: errors.New("throttled")}
	p := NewSQSPublisher(fake, "q", logger.New(io.Discard, logger.INFO, true))

	assert.NotPanics(t, func() {
		p.Publish(context.Background(), Event{Type: ResponseReceived})
		p.Close()
	})
	assert.Len(t, fake.sent, 1)
}
