// Package sns publishes stored events to an AWS SNS topic.
package sns

import (
	"context"
	"fmt"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sns/types"

	orderflow "github.com/orderflow-io/orderflow"
)

// Client defines the subset of the SNS API used by the publisher.
type Client interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

// Publisher sends events to a single SNS topic. Event identity travels
// as message attributes so subscribers can filter by event type.
type Publisher struct {
	client         Client
	topicARN       string
	messageGroupID string
}

// Option configures a Publisher.
type Option func(*Publisher)

// WithMessageGroupID sets the message group ID for FIFO topics.
// Stream-ordered delivery on a FIFO topic needs the stream ID as the
// group, so the ID given here is used only when no stream is known.
func WithMessageGroupID(groupID string) Option {
	return func(p *Publisher) {
		p.messageGroupID = groupID
	}
}

// New creates a Publisher for the given topic ARN.
func New(client Client, topicARN string, opts ...Option) *Publisher {
	p := &Publisher{
		client:   client,
		topicARN: topicARN,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Publish sends one event to the topic.
func (p *Publisher) Publish(ctx context.Context, event orderflow.StoredEvent) error {
	if p.client == nil {
		return fmt.Errorf("sns: client not configured")
	}

	input := &sns.PublishInput{
		TopicArn: &p.topicARN,
		Message:  stringPtr(string(event.Data)),
		MessageAttributes: map[string]types.MessageAttributeValue{
			"eventId": {
				DataType:    stringPtr("String"),
				StringValue: stringPtr(event.ID),
			},
			"eventType": {
				DataType:    stringPtr("String"),
				StringValue: stringPtr(event.Type),
			},
			"streamId": {
				DataType:    stringPtr("String"),
				StringValue: stringPtr(event.StreamID),
			},
			"version": {
				DataType:    stringPtr("Number"),
				StringValue: stringPtr(strconv.FormatInt(event.Version, 10)),
			},
		},
	}

	if p.messageGroupID != "" {
		input.MessageGroupId = &p.messageGroupID
	}

	if _, err := p.client.Publish(ctx, input); err != nil {
		return fmt.Errorf("sns: failed to publish to %s: %w", p.topicARN, err)
	}
	return nil
}

// Close is a no-op; the SNS client is owned by the caller.
func (p *Publisher) Close() error {
	return nil
}

func stringPtr(s string) *string {
	return &s
}
