package instagram

import (
	"encoding/json"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"igbackend/pkg/logger"
)

func TestProfileURL(t *testing.T) {
	c := NewClient(Options{}, logger.NewNopLogger())

	tests := []struct {
		name     string
		username string
		expected string
	}{
		{"simple username", "testuser", BaseURL + ProfileEndpoint + "?username=testuser"},
		{"username with underscore", "test_user", BaseURL + ProfileEndpoint + "?username=test_user"},
		{"username with dots", "test.user", BaseURL + ProfileEndpoint + "?username=test.user"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, c.profileURL(tt.username))
		})
	}
}

func TestMediaURL(t *testing.T) {
	c := NewClient(Options{BaseURL: "http://ig.test/"}, logger.NewNopLogger())

	tests := []struct {
		name      string
		limit     int
		wantFirst int
	}{
		{"default limit", 0, DefaultMediaLimit},
		{"custom limit", 20, 20},
		{"clamped limit", 500, MaxMediaLimit},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw := c.mediaURL("123456", "CURSOR==", tt.limit)
			u, err := url.Parse(raw)
			require.NoError(t, err)

			assert.Equal(t, "ig.test", u.Host)
			assert.Equal(t, MediaEndpoint, u.Path)
			assert.Equal(t, MediaQueryHash, u.Query().Get("query_hash"))

			var vars struct {
				ID    string `json:"id"`
				First int    `json:"first"`
				After string `json:"after"`
			}
			require.NoError(t, json.Unmarshal([]byte(u.Query().Get("variables")), &vars))
			assert.Equal(t, "123456", vars.ID)
			assert.Equal(t, tt.wantFirst, vars.First)
			assert.Equal(t, "CURSOR==", vars.After)
		})
	}
}

func TestReelsMediaURL(t *testing.T) {
	c := NewClient(Options{BaseURL: "http://ig.test"}, logger.NewNopLogger())
	u, err := url.Parse(c.reelsMediaURL("1", "2"))
	require.NoError(t, err)
	assert.Equal(t, []string{"1", "2"}, u.Query()["reel_ids"])
}

func TestPostURL(t *testing.T) {
	assert.Equal(t, "https://www.instagram.com/p/ABC123/", PostURL("ABC123"))
	assert.Empty(t, PostURL(""))
}

func TestIsValidUsername(t *testing.T) {
	tests := []struct {
		username string
		valid    bool
	}{
		{"testuser", true},
		{"test_user", true},
		{"test.user", true},
		{"TestUser123", true},
		{"a", true},
		{"", false},
		{"test-user", false},
		{"test user", false},
		{"test@user", false},
		{"1234567890123456789012345678901", false},
	}

	for _, tt := range tests {
		t.Run(tt.username, func(t *testing.T) {
			assert.Equal(t, tt.valid, IsValidUsername(tt.username))
		})
	}
}

func TestSanitizeUsername(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"@testuser", "testuser"},
		{"testuser/", "testuser"},
		{"  testuser  ", "testuser"},
		{"https://www.instagram.com/natgeo/", "natgeo"},
		{"instagram.com/natgeo", "natgeo"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, SanitizeUsername(tt.in))
		})
	}
}
