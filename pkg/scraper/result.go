package scraper

import (
	"fmt"
	"strings"
	"time"

	"igbackend/pkg/history"
	"igbackend/pkg/instagram"
	"igbackend/pkg/storage"
)

// StoriesStatus reports what happened to the stories of a run
type StoriesStatus string

const (
	StoriesNotRequested  StoriesStatus = "not_requested"
	StoriesLoginRequired StoriesStatus = "login_required"
	StoriesNone          StoriesStatus = "no_stories"
	StoriesEmpty         StoriesStatus = "empty"
	StoriesDownloaded    StoriesStatus = "downloaded"
	StoriesError         StoriesStatus = "error"
)

// StoriesLoginRequiredError is the entry recorded when stories are asked
// for without a session
const StoriesLoginRequiredError = "login_required_for_stories"

// dateLayout matches the naive UTC ISO timestamps clients already parse
const dateLayout = "2006-01-02T15:04:05"

// Request is one download call
type Request struct {
	Username       string
	Limit          int
	IncludePosts   bool
	IncludeReels   bool
	IncludeStories bool
	Delay          time.Duration
	Backoff        time.Duration
	StoriesLimit   int
}

// PostRecord is the outcome of one attempted post. Successful entries
// carry the media fields, failed ones carry Error.
type PostRecord struct {
	Shortcode string `json:"shortcode,omitempty"`
	DateUTC   string `json:"date_utc,omitempty"`
	IsVideo   *bool  `json:"is_video,omitempty"`
	Type      string `json:"type,omitempty"`
	Error     string `json:"error,omitempty"`
}

// Failed reports whether the entry records an error
func (r PostRecord) Failed() bool {
	return r.Error != ""
}

// StoryRecord is the outcome of one story item
type StoryRecord struct {
	DateUTC string `json:"date_utc,omitempty"`
	IsVideo *bool  `json:"is_video,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Failed reports whether the entry records an error
func (r StoryRecord) Failed() bool {
	return r.Error != ""
}

// Stats counts successes and retries
type Stats struct {
	PostsDownloaded  int `json:"posts_downloaded"`
	ReelsDownloaded  int `json:"reels_downloaded"`
	RateLimitRetries int `json:"rate_limit_retries"`
}

// ProfileInfo is the profile as seen when the run started
type ProfileInfo struct {
	Username   string `json:"username"`
	MediaCount int    `json:"mediacount"`
	IsPrivate  bool   `json:"is_private"`
	LoggedIn   bool   `json:"logged_in"`
}

// Result summarizes a finished run
type Result struct {
	RunID         string          `json:"run_id"`
	Username      string          `json:"username"`
	Folders       storage.Folders `json:"folders"`
	Posts         []PostRecord    `json:"posts"`
	Stories       []StoryRecord   `json:"stories"`
	StoriesStatus StoriesStatus   `json:"stories_status"`
	Stats         Stats           `json:"stats"`
	ProfileInfo   ProfileInfo     `json:"profile_info"`
	// Count is the number of attempted post items
	Count          int       `json:"count"`
	StoriesRequest bool      `json:"-"`
	StartedAt      time.Time `json:"started_at"`
	FinishedAt     time.Time `json:"finished_at"`
}

func newResult(runID, username string, started time.Time) *Result {
	return &Result{
		RunID:         runID,
		Username:      username,
		Posts:         []PostRecord{},
		Stories:       []StoryRecord{},
		StoriesStatus: StoriesNotRequested,
		StartedAt:     started,
	}
}

// Message is the one-line summary returned to clients
func (r *Result) Message() string {
	msg := fmt.Sprintf("Downloaded %d posts/reels for %s", r.Count, r.Username)
	if r.StoriesRequest {
		msg += " + stories"
	}
	return msg
}

// Errors counts failed post and story entries
func (r *Result) Errors() int {
	n := 0
	for _, p := range r.Posts {
		if p.Failed() {
			n++
		}
	}
	for _, s := range r.Stories {
		if s.Failed() {
			n++
		}
	}
	return n
}

// StoriesSaved counts successful story entries
func (r *Result) StoriesSaved() int {
	n := 0
	for _, s := range r.Stories {
		if !s.Failed() {
			n++
		}
	}
	return n
}

func (r *Result) addPost(post *instagram.Post, kind storage.Kind) {
	isVideo := post.IsVideo
	rec := PostRecord{
		Shortcode: post.Shortcode,
		DateUTC:   post.TakenAt.UTC().Format(dateLayout),
		IsVideo:   &isVideo,
		Type:      "post",
	}
	if kind == storage.KindReel {
		rec.Type = "reel"
		r.Stats.ReelsDownloaded++
	} else {
		r.Stats.PostsDownloaded++
	}
	r.Posts = append(r.Posts, rec)
}

func (r *Result) addPostError(shortcode string, err error) {
	r.Posts = append(r.Posts, PostRecord{Shortcode: shortcode, Error: err.Error()})
}

func (r *Result) addStory(item instagram.StoryItem) {
	isVideo := item.IsVideo
	r.Stories = append(r.Stories, StoryRecord{
		DateUTC: item.TakenAt.UTC().Format(dateLayout),
		IsVideo: &isVideo,
	})
}

func (r *Result) addStoryError(msg string) {
	r.Stories = append(r.Stories, StoryRecord{Error: msg})
}

// History converts the result into a history entry
func (r *Result) History() *history.Run {
	return &history.Run{
		ID:               r.RunID,
		Username:         r.Username,
		StartedAt:        r.StartedAt,
		FinishedAt:       r.FinishedAt,
		Attempted:        r.Count,
		PostsDownloaded:  r.Stats.PostsDownloaded,
		ReelsDownloaded:  r.Stats.ReelsDownloaded,
		StoriesStatus:    string(r.StoriesStatus),
		StoriesSaved:     r.StoriesSaved(),
		Errors:           r.Errors(),
		RateLimitRetries: r.Stats.RateLimitRetries,
	}
}

// runLog renders the plain-text block appended to the account log
func (r *Result) runLog() string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] run %s: %s\n", r.FinishedAt.UTC().Format(time.RFC3339), r.RunID, r.Message())
	fmt.Fprintf(&b, "  attempted=%d posts=%d reels=%d retries=%d stories=%s saved_stories=%d duration=%s\n",
		r.Count, r.Stats.PostsDownloaded, r.Stats.ReelsDownloaded, r.Stats.RateLimitRetries,
		r.StoriesStatus, r.StoriesSaved(), r.FinishedAt.Sub(r.StartedAt).Round(time.Millisecond))
	for _, p := range r.Posts {
		if p.Failed() {
			fmt.Fprintf(&b, "  post %s failed: %s\n", orDash(p.Shortcode), p.Error)
		}
	}
	for _, s := range r.Stories {
		if s.Failed() {
			fmt.Fprintf(&b, "  story failed: %s\n", s.Error)
		}
	}
	return b.String()
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
