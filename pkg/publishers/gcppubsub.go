package publishers

import (
	"context"
	"errors"
	"fmt"

	"cloud.google.com/go/pubsub"
	"google.golang.org/api/option"
)

// pubsubSender publishes to one Pub/Sub topic and owns the client.
type pubsubSender struct {
	client *pubsub.Client
	topic  *pubsub.Topic
}

func newPubSubSender(ctx context.Context, cfg *PubSubConfig) (queueSender, error) {
	if cfg == nil {
		return nil, errors.New("gcp pubsub configuration is missing")
	}

	var opts []option.ClientOption
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}

	client, err := pubsub.NewClient(ctx, cfg.ProjectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("create pubsub client: %w", err)
	}
	return &pubsubSender{client: client, topic: client.Topic(cfg.Topic)}, nil
}

// Send blocks until the server acknowledges the message or ctx ends.
func (s *pubsubSender) Send(ctx context.Context, body []byte, attrs map[string]string) (string, error) {
	id, err := s.topic.Publish(ctx, &pubsub.Message{Data: body, Attributes: attrs}).Get(ctx)
	if err != nil {
		return "", fmt.Errorf("pubsub publish: %w", err)
	}
	return id, nil
}

// Close flushes pending messages and closes the client.
func (s *pubsubSender) Close() error {
	s.topic.Stop()
	return s.client.Close()
}
