package pubsub

import (
	"context"
	"errors"
	"fmt"
	"strings"

	pubsub "cloud.google.com/go/pubsub/v2"
	"cloud.google.com/go/pubsub/v2/apiv1/pubsubpb"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/agrimandi/agrimarket-backend/pkg/config"
	"github.com/agrimandi/agrimarket-backend/pkg/logger"
)

var errProjectIDRequired = errors.New("gcp project id is required")

// Client wraps the Pub/Sub connection used by the outbox publisher.
type Client struct {
	client    *pubsub.Client
	projectID string
	cfg       config.PubSubConfig
}

// NewClient creates a Pub/Sub client and verifies the configured topics exist.
func NewClient(ctx context.Context, gcp config.GCPConfig, cfg config.PubSubConfig, logg *logger.Logger) (*Client, error) {
	if strings.TrimSpace(gcp.ProjectID) == "" {
		return nil, errProjectIDRequired
	}

	psClient, err := pubsub.NewClient(ctx, gcp.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("creating pubsub client: %w", err)
	}

	c := &Client{
		client:    psClient,
		projectID: gcp.ProjectID,
		cfg:       cfg,
	}

	for _, topic := range []string{cfg.SettlementTopic, cfg.NotificationTopic} {
		if err := c.ensureTopic(ctx, topic); err != nil {
			_ = psClient.Close()
			return nil, err
		}
	}

	if logg != nil {
		logg.Info(ctx, "pubsub client ready")
	}
	return c, nil
}

func (c *Client) ensureTopic(ctx context.Context, topic string) error {
	if strings.TrimSpace(topic) == "" {
		return errors.New("pubsub topic name is required")
	}
	name := c.topicName(topic)
	_, err := c.client.TopicAdminClient.GetTopic(ctx, &pubsubpb.GetTopicRequest{Topic: name})
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return fmt.Errorf("pubsub topic %s does not exist", name)
		}
		return fmt.Errorf("checking pubsub topic %s: %w", name, err)
	}
	return nil
}

func (c *Client) topicName(topic string) string {
	return fmt.Sprintf("projects/%s/topics/%s", c.projectID, topic)
}

// SettlementPublisher returns the publisher for settlement domain events.
func (c *Client) SettlementPublisher() *pubsub.Publisher {
	return c.client.Publisher(c.topicName(c.cfg.SettlementTopic))
}

// Publisher returns a publisher for an arbitrary configured topic.
func (c *Client) Publisher(topic string) *pubsub.Publisher {
	if strings.TrimSpace(topic) == "" {
		return nil
	}
	return c.client.Publisher(c.topicName(topic))
}

// Ping verifies the settlement topic is reachable.
func (c *Client) Ping(ctx context.Context) error {
	return c.ensureTopic(ctx, c.cfg.SettlementTopic)
}

// Close releases the underlying grpc connections.
func (c *Client) Close() error {
	return c.client.Close()
}
