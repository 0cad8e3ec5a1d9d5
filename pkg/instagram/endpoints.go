package instagram

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
)

const (
	// BaseURL is the base URL for Instagram
	BaseURL = "https://www.instagram.com"

	// DefaultAppID is the X-IG-App-ID sent by the Instagram web client
	DefaultAppID = "936619743392459"

	// ProfileEndpoint is the endpoint for user profiles
	ProfileEndpoint = "/api/v1/users/web_profile_info/"

	// MediaEndpoint is the GraphQL query endpoint
	MediaEndpoint = "/graphql/query/"

	// MediaQueryHash is the query hash for fetching user media
	MediaQueryHash = "e769aa130647d2354c40ea6a439bfc08"

	// ViewerQueryHash is the query hash returning the logged-in user
	ViewerQueryHash = "d6f4427fbe92d846298cf93df0b937d3"

	// MediaInfoEndpoint returns the full item for a media id
	MediaInfoEndpoint = "/api/v1/media/%s/info/"

	// ReelsMediaEndpoint lists story reels for user ids
	ReelsMediaEndpoint = "/api/v1/feed/reels_media/"

	// LoginPageEndpoint seeds csrftoken and mid cookies
	LoginPageEndpoint = "/accounts/login/"

	// LoginEndpoint accepts the web login form
	LoginEndpoint = "/accounts/login/ajax/"

	// DefaultMediaLimit is the default number of media items to fetch per request
	DefaultMediaLimit = 12

	// MaxMediaLimit is the maximum number of media items that can be fetched per request
	MaxMediaLimit = 50
)

func (c *Client) profileURL(username string) string {
	params := url.Values{}
	params.Set("username", username)
	return fmt.Sprintf("%s%s?%s", c.baseURL, ProfileEndpoint, params.Encode())
}

func (c *Client) mediaURL(userID, after string, limit int) string {
	if limit <= 0 {
		limit = DefaultMediaLimit
	} else if limit > MaxMediaLimit {
		limit = MaxMediaLimit
	}

	variables, _ := json.Marshal(struct {
		ID    string `json:"id"`
		First int    `json:"first"`
		After string `json:"after"`
	}{userID, limit, after})

	params := url.Values{}
	params.Set("query_hash", MediaQueryHash)
	params.Set("variables", string(variables))
	return fmt.Sprintf("%s%s?%s", c.baseURL, MediaEndpoint, params.Encode())
}

func (c *Client) viewerURL() string {
	params := url.Values{}
	params.Set("query_hash", ViewerQueryHash)
	params.Set("variables", "{}")
	return fmt.Sprintf("%s%s?%s", c.baseURL, MediaEndpoint, params.Encode())
}

func (c *Client) mediaInfoURL(mediaID string) string {
	return c.baseURL + fmt.Sprintf(MediaInfoEndpoint, url.PathEscape(mediaID))
}

func (c *Client) reelsMediaURL(userIDs ...string) string {
	params := url.Values{}
	for _, id := range userIDs {
		params.Add("reel_ids", id)
	}
	return fmt.Sprintf("%s%s?%s", c.baseURL, ReelsMediaEndpoint, params.Encode())
}

// PostURL constructs the public URL for a post
func PostURL(shortcode string) string {
	if shortcode == "" {
		return ""
	}
	return fmt.Sprintf("%s/p/%s/", BaseURL, shortcode)
}

// IsValidUsername checks if a username is valid according to Instagram rules
func IsValidUsername(username string) bool {
	if username == "" || len(username) > 30 {
		return false
	}

	for _, char := range username {
		if !((char >= 'a' && char <= 'z') ||
			(char >= 'A' && char <= 'Z') ||
			(char >= '0' && char <= '9') ||
			char == '.' || char == '_') {
			return false
		}
	}

	return true
}

// SanitizeUsername strips a leading @, a pasted profile URL prefix and
// trailing slashes or spaces
func SanitizeUsername(username string) string {
	username = strings.TrimSpace(username)
	for _, prefix := range []string{"https://www.instagram.com/", "https://instagram.com/", "instagram.com/"} {
		username = strings.TrimPrefix(username, prefix)
	}
	username = strings.TrimPrefix(username, "@")
	return strings.TrimRight(username, "/ ")
}
