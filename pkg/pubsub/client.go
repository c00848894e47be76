// Package pubsub owns the Pub/Sub connection used by the outbox publisher.
package pubsub

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	pubsub "cloud.google.com/go/pubsub/v2"
	"cloud.google.com/go/pubsub/v2/apiv1/pubsubpb"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

var (
	errProjectIDRequired = errors.New("gcp project id is required")
	errNoTopics          = errors.New("at least one pubsub topic must be configured")
	errClosed            = errors.New("pubsub client not initialized")
)

// Client hands out one ordered publisher per topic. Messages sharing an
// ordering key (the aggregate id) are delivered in publish order.
type Client struct {
	client  *pubsub.Client
	project string
	topics  []string

	mu         sync.Mutex
	publishers map[string]*pubsub.Publisher
}

// NewClient connects and checks every configured topic. With CreateTopics set
// (emulator and dev projects) missing topics are created instead of failing.
func NewClient(ctx context.Context, gcp config.GCPConfig, cfg config.PubSubConfig, logg *logger.Logger) (*Client, error) {
	project := strings.TrimSpace(gcp.ProjectID)
	if project == "" {
		return nil, errProjectIDRequired
	}
	topics := topicNames(cfg)
	if len(topics) == 0 {
		return nil, errNoTopics
	}

	raw, err := pubsub.NewClient(ctx, project)
	if err != nil {
		return nil, fmt.Errorf("creating pubsub client: %w", err)
	}
	c := &Client{
		client:     raw,
		project:    project,
		topics:     topics,
		publishers: make(map[string]*pubsub.Publisher, len(topics)),
	}
	for _, topic := range topics {
		if err := c.ensureTopic(ctx, topic, cfg.CreateTopics); err != nil {
			_ = raw.Close()
			return nil, err
		}
	}
	if logg != nil {
		logg.Info(logg.WithFields(ctx, map[string]any{"project": project, "topics": topics}), "pubsub.connected")
	}
	return c, nil
}

func topicNames(cfg config.PubSubConfig) []string {
	var names []string
	seen := map[string]struct{}{}
	for _, name := range []string{cfg.OrdersTopic, cfg.ReviewsTopic} {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		names = append(names, name)
	}
	return names
}

func (c *Client) ensureTopic(ctx context.Context, topic string, create bool) error {
	resource := c.topicResourceName(topic)
	if resource == "" {
		return fmt.Errorf("topic %q not configured", topic)
	}
	_, err := c.client.TopicAdminClient.GetTopic(ctx, &pubsubpb.GetTopicRequest{Topic: resource})
	switch {
	case err == nil:
		return nil
	case status.Code(err) != codes.NotFound:
		return fmt.Errorf("checking topic %q: %w", topic, err)
	case !create:
		return fmt.Errorf("topic %q does not exist", topic)
	}
	_, err = c.client.TopicAdminClient.CreateTopic(ctx, &pubsubpb.Topic{Name: resource})
	if err != nil && status.Code(err) != codes.AlreadyExists {
		return fmt.Errorf("creating topic %q: %w", topic, err)
	}
	return nil
}

// Publisher returns the cached ordered publisher for a topic id or full resource name.
func (c *Client) Publisher(topic string) *pubsub.Publisher {
	if c == nil || c.client == nil {
		return nil
	}
	resource := c.topicResourceName(topic)
	if resource == "" {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if pub, ok := c.publishers[resource]; ok {
		return pub
	}
	pub := c.client.Publisher(resource)
	pub.EnableMessageOrdering = true
	c.publishers[resource] = pub
	return pub
}

// Ping re-checks that the configured topics still exist.
func (c *Client) Ping(ctx context.Context) error {
	if c == nil || c.client == nil {
		return errClosed
	}
	for _, topic := range c.topics {
		if err := c.ensureTopic(ctx, topic, false); err != nil {
			return err
		}
	}
	return nil
}

// Close flushes pending messages and releases the connection.
func (c *Client) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	c.mu.Lock()
	for _, pub := range c.publishers {
		pub.Stop()
	}
	c.publishers = map[string]*pubsub.Publisher{}
	c.mu.Unlock()
	return c.client.Close()
}

func (c *Client) topicResourceName(topic string) string {
	topic = strings.TrimSpace(topic)
	switch {
	case topic == "":
		return ""
	case strings.HasPrefix(topic, "projects/") && strings.Contains(topic, "/topics/"):
		return topic
	case c == nil || c.project == "":
		return ""
	}
	return "projects/" + c.project + "/topics/" + topic
}
