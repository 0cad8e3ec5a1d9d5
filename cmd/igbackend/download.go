package main

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"igbackend/internal/diagnose"
	"igbackend/pkg/ui"
)

var (
	downloadLimit   int
	downloadPosts   bool
	downloadReels   bool
	downloadStories bool
	downloadDelay   time.Duration
)

var downloadCmd = &cobra.Command{
	Use:   "download <username>",
	Short: "Download an account through a running backend",
	Long: `Ask the running backend to download the latest posts, reels and,
optionally, the current stories of an account.

Files land in the backend's download directory under per-account folders.
Stories need the backend to be logged in.`,
	Example: `  # Latest 5 posts and reels
  igbackend download natgeo

  # Only reels, plus stories, with a longer pause between items
  igbackend download natgeo --posts=false --stories --delay 5s`,
	Args: cobra.ExactArgs(1),
	RunE: runDownload,
}

func init() {
	rootCmd.AddCommand(downloadCmd)

	downloadCmd.Flags().IntVarP(&downloadLimit, "limit", "n", 5, "number of posts and reels to consider")
	downloadCmd.Flags().BoolVar(&downloadPosts, "posts", true, "download image posts")
	downloadCmd.Flags().BoolVar(&downloadReels, "reels", true, "download video posts")
	downloadCmd.Flags().BoolVarP(&downloadStories, "stories", "s", false, "download current stories")
	downloadCmd.Flags().DurationVarP(&downloadDelay, "delay", "d", 2*time.Second, "pause between items")
}

func runDownload(cmd *cobra.Command, args []string) error {
	p := newPrinter(cmd)
	client := newClient()
	params := diagnose.DownloadParams{
		Username:     args[0],
		Limit:        downloadLimit,
		IncludePosts: downloadPosts,
		IncludeReels: downloadReels,
		Stories:      downloadStories,
		Delay:        downloadDelay,
	}

	var report *diagnose.Report
	err := ui.Wait(cmd.Context(), p.Writer(), "Downloading "+params.Username+"...", func(ctx context.Context) error {
		var err error
		report, err = client.Download(ctx, params)
		return err
	})
	if err != nil {
		reportCallError(p, err)
		return errReported
	}

	diagnose.WriteReport(p, report)
	if !report.OK() {
		return errReported
	}

	if report.StoriesStatus != "" {
		p.Info("Stories", report.StoriesStatus)
	}
	if report.Folders != nil {
		p.Println()
		p.Info("Posts folder", report.Folders.Posts)
		p.Info("Reels folder", report.Folders.Reels)
		p.Info("Stories folder", report.Folders.Stories)
	}
	return nil
}
