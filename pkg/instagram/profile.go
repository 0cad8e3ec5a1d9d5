package instagram

import (
	"context"
	"iter"
	"net/http"
	"time"

	errs "igbackend/pkg/errors"
)

// ResolveProfile fetches the user profile and the first page of its timeline
func (c *Client) ResolveProfile(ctx context.Context, username string) (*Profile, error) {
	username = SanitizeUsername(username)
	if !IsValidUsername(username) {
		return nil, errs.New(errs.ErrorTypeNotFound, http.StatusNotFound, "Profile %q not found", username)
	}

	c.logger.DebugWithFields("fetching user profile", map[string]interface{}{
		"username": username,
	})

	var response InstagramResponse
	if err := c.getJSON(ctx, c.profileURL(username), &response); err != nil {
		if errs.Classify(err) == errs.ErrorTypeNotFound {
			return nil, errs.New(errs.ErrorTypeNotFound, http.StatusNotFound, "Profile %s not found", username)
		}
		c.logger.ErrorWithFields("failed to fetch user profile", map[string]interface{}{
			"username": username,
			"error":    err.Error(),
		})
		return nil, err
	}

	if response.RequiresToLogin {
		c.logger.WarnWithFields("authentication required for profile", map[string]interface{}{
			"username": username,
		})
		return nil, errs.New(errs.ErrorTypeLoginRequired, http.StatusUnauthorized,
			"Instagram requires login to view profile %s", username)
	}
	if err := apiStatus(response.Status, response.Message); err != nil {
		return nil, err
	}
	if response.Data.User == nil || response.Data.User.ID == "" {
		return nil, errs.New(errs.ErrorTypeNotFound, http.StatusNotFound, "Profile %s not found", username)
	}

	user := response.Data.User
	profile := &Profile{
		Username:         user.Username,
		UserID:           user.ID,
		MediaCount:       user.EdgeOwnerToTimelineMedia.Count,
		IsPrivate:        user.IsPrivate,
		FollowedByViewer: user.FollowedByViewer,
		timeline:         user.EdgeOwnerToTimelineMedia,
	}
	if profile.Username == "" {
		profile.Username = username
	}

	c.logger.DebugWithFields("successfully fetched user profile", map[string]interface{}{
		"username":   profile.Username,
		"mediacount": profile.MediaCount,
		"is_private": profile.IsPrivate,
	})

	return profile, nil
}

// Posts yields the profile's timeline lazily. The first page comes from the
// profile lookup; later pages are fetched only when the consumer asks for them.
func (c *Client) Posts(ctx context.Context, profile *Profile) iter.Seq2[*Post, error] {
	return func(yield func(*Post, error) bool) {
		if profile == nil {
			return
		}
		if profile.IsPrivate && !profile.FollowedByViewer && !c.IsLoggedIn() {
			yield(nil, errs.New(errs.ErrorTypeLoginRequired, http.StatusUnauthorized,
				"Profile %s is private and requires login", profile.Username))
			return
		}

		page := profile.timeline
		for {
			for _, edge := range page.Edges {
				if !yield(postFromNode(edge.Node), nil) {
					return
				}
			}
			if !page.PageInfo.HasNextPage || page.PageInfo.EndCursor == "" {
				return
			}

			next, err := c.fetchTimeline(ctx, profile.UserID, page.PageInfo.EndCursor)
			if err != nil {
				yield(nil, err)
				return
			}
			page = next
		}
	}
}

// fetchTimeline fetches one page of the GraphQL timeline
func (c *Client) fetchTimeline(ctx context.Context, userID, after string) (EdgeOwnerToTimelineMedia, error) {
	c.logger.DebugWithFields("fetching user media", map[string]interface{}{
		"user_id": userID,
		"after":   after,
	})

	var response InstagramResponse
	if err := c.getJSON(ctx, c.mediaURL(userID, after, DefaultMediaLimit), &response); err != nil {
		c.logger.ErrorWithFields("failed to fetch user media", map[string]interface{}{
			"user_id": userID,
			"after":   after,
			"error":   err.Error(),
		})
		return EdgeOwnerToTimelineMedia{}, err
	}
	if response.RequiresToLogin {
		return EdgeOwnerToTimelineMedia{}, errs.New(errs.ErrorTypeLoginRequired, http.StatusUnauthorized,
			"Instagram requires login to page through this timeline")
	}
	if err := apiStatus(response.Status, response.Message); err != nil {
		return EdgeOwnerToTimelineMedia{}, err
	}
	if response.Data.User == nil {
		return EdgeOwnerToTimelineMedia{}, errs.New(errs.ErrorTypeParsing, 0, "timeline response has no user")
	}

	return response.Data.User.EdgeOwnerToTimelineMedia, nil
}

func postFromNode(node Node) *Post {
	post := &Post{
		ID:         node.ID,
		Shortcode:  node.Shortcode,
		Typename:   node.Typename,
		TakenAt:    time.Unix(node.TakenAtTimestamp, 0).UTC(),
		IsVideo:    node.IsVideo,
		DisplayURL: node.DisplayURL,
		VideoURL:   node.VideoURL,
	}
	if node.EdgeSidecarToChildren != nil {
		for _, child := range node.EdgeSidecarToChildren.Edges {
			post.Children = append(post.Children, Media{
				DisplayURL: child.Node.DisplayURL,
				VideoURL:   child.Node.VideoURL,
				IsVideo:    child.Node.IsVideo,
			})
		}
	}
	return post
}

// fetchMediaInfo loads the private API item for a media id. The timeline
// omits video URLs and carousel children for some items.
func (c *Client) fetchMediaInfo(ctx context.Context, mediaID string) (*feedItem, error) {
	var response mediaInfoResponse
	if err := c.getJSON(ctx, c.mediaInfoURL(mediaID), &response); err != nil {
		return nil, err
	}
	if err := apiStatus(response.Status, ""); err != nil {
		return nil, err
	}
	if len(response.Items) == 0 {
		return nil, errs.New(errs.ErrorTypeNotFound, http.StatusNotFound, "media %s not found", mediaID)
	}
	return &response.Items[0], nil
}
