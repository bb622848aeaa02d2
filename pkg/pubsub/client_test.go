package pubsub

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/angelmondragon/freshlane/pkg/config"
)

func TestNormalizeTopics(t *testing.T) {
	got := normalizeTopics([]string{"freshlane-order-events", " freshlane-billing-events ", "", "freshlane-order-events"})
	assert.Equal(t, []string{"freshlane-billing-events", "freshlane-order-events"}, got)
	assert.Empty(t, normalizeTopics(nil))
}

func TestTopicResourceName(t *testing.T) {
	cases := []struct {
		project, name, want string
	}{
		{"p1", "orders", "projects/p1/topics/orders"},
		{"p1", "projects/other/topics/orders", "projects/other/topics/orders"},
		{"", "orders", ""},
		{"p1", "  ", ""},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, topicResourceName(tc.project, tc.name), "%s/%s", tc.project, tc.name)
	}
}

func TestCredentialOptionsPreferInlineJSON(t *testing.T) {
	assert.Len(t, credentialOptions(config.GCPConfig{CredentialsJSON: "{}", ApplicationCredentials: "/tmp/key.json"}), 1)
	assert.Len(t, credentialOptions(config.GCPConfig{ApplicationCredentials: "/tmp/key.json"}), 1)
	assert.Empty(t, credentialOptions(config.GCPConfig{}))
}

func TestNewClientRequiresProject(t *testing.T) {
	_, err := NewClient(context.Background(), config.GCPConfig{ProjectID: " "}, []string{"orders"}, nil)
	assert.ErrorIs(t, err, errProjectIDRequired)
}

func TestNilClient(t *testing.T) {
	var c *Client
	assert.Nil(t, c.Publisher("orders"))
	assert.ErrorIs(t, c.Ping(context.Background()), errNotInitialized)
	assert.NoError(t, c.Close())
}
