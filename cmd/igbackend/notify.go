package main

import (
	"context"
	"fmt"
	"time"

	"igbackend/pkg/api"
	"igbackend/pkg/logger"
	"igbackend/pkg/scraper"
	"igbackend/pkg/ui"
)

const notifyTimeout = 10 * time.Second

// notifyingDownloader raises a desktop notification when a download ends
type notifyingDownloader struct {
	next     api.Downloader
	notifier *ui.Notifier
	log      logger.Logger
}

func (d *notifyingDownloader) Download(ctx context.Context, req scraper.Request) (*scraper.Result, error) {
	res, err := d.next.Download(ctx, req)

	title, message := "Instagram download finished", ""
	switch {
	case err != nil:
		title, message = "Instagram download failed", fmt.Sprintf("%s: %v", req.Username, err)
	default:
		message = res.Message()
		if n := res.Errors(); n > 0 {
			message += fmt.Sprintf(" (%d failed)", n)
		}
	}

	// the request context may already be gone once the client hangs up
	nctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), notifyTimeout)
	defer cancel()
	if nerr := d.notifier.Notify(nctx, title, message); nerr != nil {
		d.log.WithError(nerr).Debug("Desktop notification failed")
	}
	return res, err
}
