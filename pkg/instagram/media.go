package instagram

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	errs "igbackend/pkg/errors"
	"igbackend/pkg/storage"
)

// sidecarParallelism bounds concurrent child downloads of one carousel post
const sidecarParallelism = 3

// DownloadPost saves a post's media into the kind folder of ws. Carousel
// children are fetched concurrently and get 1-based suffixes.
func (c *Client) DownloadPost(ctx context.Context, post *Post, ws *storage.Workspace, kind storage.Kind) ([]string, error) {
	if post == nil {
		return nil, errs.New(errs.ErrorTypeUnknown, 0, "nil post")
	}

	media, err := c.resolveMedia(ctx, post)
	if err != nil {
		return nil, err
	}

	if len(media) == 1 && !post.IsSidecar() {
		path, err := c.saveMedia(ctx, ws, kind, storage.FileName(post.TakenAt, post.Shortcode, 0, extension(media[0].IsVideo)), media[0])
		if err != nil {
			return nil, err
		}
		return []string{path}, nil
	}

	paths := make([]string, len(media))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(sidecarParallelism)
	for i, m := range media {
		name := storage.FileName(post.TakenAt, post.Shortcode, i+1, extension(m.IsVideo))
		g.Go(func() error {
			path, err := c.saveMedia(gctx, ws, kind, name, m)
			if err != nil {
				return fmt.Errorf("sidecar item %d: %w", i+1, err)
			}
			paths[i] = path
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return paths, nil
}

// resolveMedia returns the downloadable media of a post, consulting the
// media info endpoint when the timeline left URLs out
func (c *Client) resolveMedia(ctx context.Context, post *Post) ([]Media, error) {
	if post.IsSidecar() {
		if len(post.Children) > 0 && childrenComplete(post.Children) {
			return post.Children, nil
		}
		item, err := c.fetchMediaInfo(ctx, post.ID)
		if err != nil {
			return nil, err
		}
		children := make([]Media, 0, len(item.CarouselMedia))
		for _, child := range item.CarouselMedia {
			children = append(children, mediaFromItem(child))
		}
		if len(children) == 0 {
			return nil, errs.New(errs.ErrorTypeParsing, 0, "carousel %s has no children", post.Shortcode)
		}
		return children, nil
	}

	m := Media{DisplayURL: post.DisplayURL, VideoURL: post.VideoURL, IsVideo: post.IsVideo}
	if (m.IsVideo && m.VideoURL == "") || (!m.IsVideo && m.DisplayURL == "") {
		item, err := c.fetchMediaInfo(ctx, post.ID)
		if err != nil {
			return nil, err
		}
		m = mediaFromItem(*item)
	}
	return []Media{m}, nil
}

func childrenComplete(children []Media) bool {
	for _, child := range children {
		if child.url() == "" {
			return false
		}
	}
	return true
}

func mediaFromItem(item feedItem) Media {
	m := Media{IsVideo: item.MediaType == mediaTypeVideo}
	if len(item.ImageVersions2.Candidates) > 0 {
		m.DisplayURL = item.ImageVersions2.Candidates[0].URL
	}
	if len(item.VideoVersions) > 0 {
		m.VideoURL = item.VideoVersions[0].URL
	}
	return m
}

func (m Media) url() string {
	if m.IsVideo {
		return m.VideoURL
	}
	return m.DisplayURL
}

func extension(isVideo bool) string {
	if isVideo {
		return "mp4"
	}
	return "jpg"
}

// saveMedia downloads one media file unless it is already on disk
func (c *Client) saveMedia(ctx context.Context, ws *storage.Workspace, kind storage.Kind, name string, m Media) (string, error) {
	if ws.Exists(kind, name) {
		c.logger.DebugWithFields("media already on disk", map[string]interface{}{
			"file": name,
		})
		return ws.Path(kind, name), nil
	}
	if m.url() == "" {
		return "", errs.New(errs.ErrorTypeParsing, 0, "no media URL for %s", name)
	}
	return c.downloadTo(ctx, m.url(), ws, kind, name)
}

// downloadTo streams rawURL into the workspace
func (c *Client) downloadTo(ctx context.Context, rawURL string, ws *storage.Workspace, kind storage.Kind, name string) (string, error) {
	start := time.Now()
	resp, err := c.get(ctx, rawURL)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	path, err := ws.Save(kind, name, resp.Body)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		// a body cut short by the peer classifies as a network error by message
		return "", fmt.Errorf("failed to download %s: %w", name, err)
	}

	c.logger.DebugWithFields("media saved", map[string]interface{}{
		"file":     name,
		"kind":     string(kind),
		"duration": time.Since(start),
	})
	return path, nil
}
