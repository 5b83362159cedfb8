package pubsub

import (
	"context"
	"errors"
	"fmt"
	"strings"

	pubsub "cloud.google.com/go/pubsub/v2"
	"cloud.google.com/go/pubsub/v2/apiv1/pubsubpb"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/Nikul30701/E-Commerce-Plateform/pkg/config"
	"github.com/Nikul30701/E-Commerce-Plateform/pkg/logger"
)

var (
	errProjectIDRequired = errors.New("gcp project id is required")
	errNoTopic           = errors.New("pubsub orders topic is required")
	errNotInitialized    = errors.New("pubsub client not initialized")
)

// Client owns the Pub/Sub connection and the resolved orders topic.
type Client struct {
	client      *pubsub.Client
	ordersTopic string
}

// NewClient connects to Pub/Sub and checks the orders topic. With
// cfg.CreateTopic set, a missing topic is created instead of failing.
func NewClient(ctx context.Context, gcp config.GCPConfig, cfg config.PubSubConfig, logg *logger.Logger) (*Client, error) {
	projectID := strings.TrimSpace(gcp.ProjectID)
	if projectID == "" {
		return nil, errProjectIDRequired
	}
	topic := TopicResourceName(projectID, cfg.OrdersTopic)
	if topic == "" {
		return nil, errNoTopic
	}

	psClient, err := pubsub.NewClient(ctx, projectID, clientOptions(gcp)...)
	if err != nil {
		return nil, fmt.Errorf("creating pubsub client: %w", err)
	}
	c := &Client{client: psClient, ordersTopic: topic}

	created, err := c.ensureTopic(ctx, cfg.CreateTopic)
	if err != nil {
		_ = psClient.Close()
		return nil, err
	}

	if logg != nil {
		ctx = logg.WithFields(ctx, map[string]any{"topic": topic, "created": created})
		logg.Info(ctx, "pubsub client initialized")
	}
	return c, nil
}

func clientOptions(gcp config.GCPConfig) []option.ClientOption {
	var opts []option.ClientOption
	switch {
	case strings.TrimSpace(gcp.CredentialsJSON) != "":
		opts = append(opts, option.WithCredentialsJSON([]byte(gcp.CredentialsJSON)))
	case strings.TrimSpace(gcp.ApplicationCredentials) != "":
		opts = append(opts, option.WithCredentialsFile(gcp.ApplicationCredentials))
	}
	return opts
}

// ensureTopic reports whether it had to create the topic.
func (c *Client) ensureTopic(ctx context.Context, create bool) (bool, error) {
	admin := c.client.TopicAdminClient
	_, err := admin.GetTopic(ctx, &pubsubpb.GetTopicRequest{Topic: c.ordersTopic})
	switch {
	case err == nil:
		return false, nil
	case status.Code(err) != codes.NotFound:
		return false, fmt.Errorf("checking topic %q: %w", c.ordersTopic, err)
	case !create:
		return false, fmt.Errorf("topic %q does not exist", c.ordersTopic)
	}

	_, err = admin.CreateTopic(ctx, &pubsubpb.Topic{Name: c.ordersTopic})
	if err != nil && status.Code(err) != codes.AlreadyExists {
		return false, fmt.Errorf("creating topic %q: %w", c.ordersTopic, err)
	}
	return err == nil, nil
}

// OrdersPublisher returns the publisher for order lifecycle events.
func (c *Client) OrdersPublisher() *pubsub.Publisher {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Publisher(c.ordersTopic)
}

// OrdersTopic is the full resource name events are published to.
func (c *Client) OrdersTopic() string {
	if c == nil {
		return ""
	}
	return c.ordersTopic
}

// Ping checks that the orders topic is still reachable.
func (c *Client) Ping(ctx context.Context) error {
	if c == nil || c.client == nil {
		return errNotInitialized
	}
	_, err := c.ensureTopic(ctx, false)
	return err
}

func (c *Client) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}

// TopicResourceName expands a bare topic id into projects/<p>/topics/<t>.
// Full resource names pass through unchanged.
func TopicResourceName(projectID, name string) string {
	n := strings.TrimSpace(name)
	if n == "" {
		return ""
	}
	if strings.HasPrefix(n, "projects/") && strings.Contains(n, "/topics/") {
		return n
	}
	p := strings.TrimSpace(projectID)
	if p == "" {
		return ""
	}
	return "projects/" + p + "/topics/" + n
}
