package instagram

import (
	"context"
	"net/http"
	"time"

	errs "igbackend/pkg/errors"
	"igbackend/pkg/storage"
)

// Stories lists the active story reels of the given users. Stories are
// only served to authenticated sessions.
func (c *Client) Stories(ctx context.Context, userIDs ...string) ([]StoryContainer, error) {
	if !c.IsLoggedIn() {
		return nil, errs.New(errs.ErrorTypeLoginRequired, http.StatusUnauthorized, "login required to fetch stories")
	}
	if len(userIDs) == 0 {
		return nil, nil
	}

	var response reelsMediaResponse
	if err := c.getJSON(ctx, c.reelsMediaURL(userIDs...), &response); err != nil {
		return nil, err
	}
	if err := apiStatus(response.Status, response.Message); err != nil {
		return nil, err
	}

	containers := make([]StoryContainer, 0, len(response.ReelsMedia))
	for _, r := range response.ReelsMedia {
		container := StoryContainer{
			UserID:   string(r.ID),
			Username: r.User.Username,
			Items:    make([]StoryItem, 0, len(r.Items)),
		}
		for _, item := range r.Items {
			container.Items = append(container.Items, storyFromItem(item))
		}
		containers = append(containers, container)
	}

	c.logger.DebugWithFields("fetched story reels", map[string]interface{}{
		"users": len(userIDs),
		"reels": len(containers),
	})
	return containers, nil
}

func storyFromItem(item feedItem) StoryItem {
	m := mediaFromItem(item)
	id := string(item.Pk)
	if id == "" {
		id = item.ID
	}
	return StoryItem{
		ID:      id,
		TakenAt: time.Unix(item.TakenAt, 0).UTC(),
		IsVideo: m.IsVideo,
		URL:     m.url(),
	}
}

// DownloadStoryItem saves a story frame under its timestamp and pk. The
// story_ prefix is applied by the workspace after the run.
func (c *Client) DownloadStoryItem(ctx context.Context, item StoryItem, ws *storage.Workspace) (string, error) {
	name := storage.FileName(item.TakenAt, item.ID, 0, extension(item.IsVideo))
	return c.saveMedia(ctx, ws, storage.KindStory, name, Media{
		DisplayURL: item.URL,
		VideoURL:   item.URL,
		IsVideo:    item.IsVideo,
	})
}
