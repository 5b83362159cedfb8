package pubsub

import (
	"context"
	"errors"
	"testing"

	"github.com/Nikul30701/E-Commerce-Plateform/pkg/config"
)

func TestTopicResourceName(t *testing.T) {
	cases := []struct {
		project, name, want string
	}{
		{"shop-prod", "ecom-order-events", "projects/shop-prod/topics/ecom-order-events"},
		{"shop-prod", " ecom-order-events ", "projects/shop-prod/topics/ecom-order-events"},
		{"other", "projects/shop-prod/topics/orders", "projects/shop-prod/topics/orders"},
		{"", "orders", ""},
		{"shop-prod", "", ""},
	}
	for _, tc := range cases {
		if got := TopicResourceName(tc.project, tc.name); got != tc.want {
			t.Fatalf("TopicResourceName(%q, %q) = %q, want %q", tc.project, tc.name, got, tc.want)
		}
	}
}

func TestNilClientIsSafe(t *testing.T) {
	var c *Client
	if c.OrdersPublisher() != nil {
		t.Fatalf("expected nil publisher from nil client")
	}
	if c.OrdersTopic() != "" {
		t.Fatalf("expected empty topic from nil client")
	}
	if err := c.Ping(context.Background()); !errors.Is(err, errNotInitialized) {
		t.Fatalf("expected ping error from nil client")
	}
	if err := c.Close(); err != nil {
		t.Fatalf("close on nil client should be a no-op: %v", err)
	}
}

func TestNewClientValidatesConfig(t *testing.T) {
	ctx := context.Background()
	if _, err := NewClient(ctx, config.GCPConfig{}, config.PubSubConfig{OrdersTopic: "orders"}, nil); !errors.Is(err, errProjectIDRequired) {
		t.Fatalf("expected project id error, got %v", err)
	}
	if _, err := NewClient(ctx, config.GCPConfig{ProjectID: "shop"}, config.PubSubConfig{OrdersTopic: " "}, nil); !errors.Is(err, errNoTopic) {
		t.Fatalf("expected topic error, got %v", err)
	}
}

func TestClientOptionsPreferInlineCredentials(t *testing.T) {
	if got := len(clientOptions(config.GCPConfig{ProjectID: "shop"})); got != 0 {
		t.Fatalf("expected default credentials, got %d options", got)
	}
	both := config.GCPConfig{CredentialsJSON: `{"type":"service_account"}`, ApplicationCredentials: "/tmp/sa.json"}
	if got := len(clientOptions(both)); got != 1 {
		t.Fatalf("expected a single credentials option, got %d", got)
	}
	if got := len(clientOptions(config.GCPConfig{ApplicationCredentials: "/tmp/sa.json"})); got != 1 {
		t.Fatalf("expected file credentials option, got %d", got)
	}
}
