package instagram

import (
	"bytes"
	"time"
)

// InstagramResponse represents the top-level response of web_profile_info
// and the GraphQL timeline query
type InstagramResponse struct {
	RequiresToLogin bool   `json:"requires_to_login"`
	Data            Data   `json:"data"`
	Status          string `json:"status"`
	Message         string `json:"message"`
}

// Data wraps the user information in the response
type Data struct {
	User *User `json:"user"`
}

// User represents an Instagram user profile
type User struct {
	ID                       string                   `json:"id"`
	Username                 string                   `json:"username"`
	IsPrivate                bool                     `json:"is_private"`
	FollowedByViewer         bool                     `json:"followed_by_viewer"`
	EdgeOwnerToTimelineMedia EdgeOwnerToTimelineMedia `json:"edge_owner_to_timeline_media"`
}

// EdgeOwnerToTimelineMedia contains the user's media information
type EdgeOwnerToTimelineMedia struct {
	Count    int      `json:"count"`
	PageInfo PageInfo `json:"page_info"`
	Edges    []Edge   `json:"edges"`
}

// PageInfo contains pagination information
type PageInfo struct {
	HasNextPage bool   `json:"has_next_page"`
	EndCursor   string `json:"end_cursor"`
}

// Edge wraps a single media node
type Edge struct {
	Node Node `json:"node"`
}

// Node represents a single timeline item
type Node struct {
	ID                    string        `json:"id"`
	Typename              string        `json:"__typename"`
	Shortcode             string        `json:"shortcode"`
	DisplayURL            string        `json:"display_url"`
	VideoURL              string        `json:"video_url"`
	IsVideo               bool          `json:"is_video"`
	TakenAtTimestamp      int64         `json:"taken_at_timestamp"`
	EdgeSidecarToChildren *SidecarEdges `json:"edge_sidecar_to_children,omitempty"`
}

// SidecarEdges lists the children of a carousel post
type SidecarEdges struct {
	Edges []struct {
		Node Node `json:"node"`
	} `json:"edges"`
}

// mediaInfoResponse is returned by /api/v1/media/{id}/info/
type mediaInfoResponse struct {
	Items  []feedItem `json:"items"`
	Status string     `json:"status"`
}

// reelsMediaResponse is returned by the reels_media feed
type reelsMediaResponse struct {
	ReelsMedia []reel `json:"reels_media"`
	Status     string `json:"status"`
	Message    string `json:"message"`
}

type reel struct {
	ID   flexID `json:"id"`
	User struct {
		Username string `json:"username"`
	} `json:"user"`
	Items []feedItem `json:"items"`
}

// feedItem is the private API representation shared by stories and media info
type feedItem struct {
	ID             string         `json:"id"`
	Pk             flexID         `json:"pk"`
	Code           string         `json:"code"`
	MediaType      int            `json:"media_type"`
	TakenAt        int64          `json:"taken_at"`
	ImageVersions2 imageVersions  `json:"image_versions2"`
	VideoVersions  []videoVersion `json:"video_versions"`
	CarouselMedia  []feedItem     `json:"carousel_media"`
}

type imageVersions struct {
	Candidates []imageCandidate `json:"candidates"`
}

type imageCandidate struct {
	URL    string `json:"url"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

type videoVersion struct {
	URL string `json:"url"`
}

// flexID accepts ids sent either as JSON strings or as bare numbers
type flexID string

func (f *flexID) UnmarshalJSON(b []byte) error {
	*f = flexID(bytes.Trim(b, `"`))
	if *f == "null" {
		*f = ""
	}
	return nil
}

// loginResponse is returned by the web login form
type loginResponse struct {
	Authenticated     bool   `json:"authenticated"`
	User              bool   `json:"user"`
	UserID            string `json:"userId"`
	Status            string `json:"status"`
	Message           string `json:"message"`
	ErrorType         string `json:"error_type"`
	TwoFactorRequired bool   `json:"two_factor_required"`
	CheckpointURL     string `json:"checkpoint_url"`
	Lock              bool   `json:"lock"`
}

// Media type codes used by the private API
const (
	mediaTypeImage    = 1
	mediaTypeVideo    = 2
	mediaTypeCarousel = 8
)

// Typenames used by the GraphQL timeline
const (
	TypeImage   = "GraphImage"
	TypeVideo   = "GraphVideo"
	TypeSidecar = "GraphSidecar"
)

// Profile is a resolved account
type Profile struct {
	Username         string `json:"username"`
	UserID           string `json:"user_id"`
	MediaCount       int    `json:"mediacount"`
	IsPrivate        bool   `json:"is_private"`
	FollowedByViewer bool   `json:"followed_by_viewer"`

	// first timeline page returned with the profile
	timeline EdgeOwnerToTimelineMedia
}

// Media is one downloadable image or video
type Media struct {
	DisplayURL string
	VideoURL   string
	IsVideo    bool
}

// Post is a timeline item. Sidecar posts carry their children.
type Post struct {
	ID         string
	Shortcode  string
	Typename   string
	TakenAt    time.Time
	IsVideo    bool
	DisplayURL string
	VideoURL   string
	Children   []Media
}

// IsSidecar reports whether the post is a carousel
func (p *Post) IsSidecar() bool {
	return p.Typename == TypeSidecar || len(p.Children) > 0
}

// StoryItem is one story frame
type StoryItem struct {
	ID      string
	TakenAt time.Time
	IsVideo bool
	URL     string
}

// StoryContainer groups the story items of one account
type StoryContainer struct {
	UserID   string
	Username string
	Items    []StoryItem
}
