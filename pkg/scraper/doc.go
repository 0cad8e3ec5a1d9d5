// Package scraper runs download requests against an Instagram account.
//
// A run resolves the profile, walks its timeline and saves up to Limit
// posts and reels, optionally saves the account's current stories, then
// tidies the account folder and returns a summary.
//
// Architecture:
//
// The Scraper coordinates:
//   - the active adapter, taken as a snapshot from a SessionSource
//   - the account Workspace under the download root
//   - per-item retries with linear backoff (pkg/retry)
//   - the per-account run log and an optional history.Recorder
//
// Runs for the same account are serialized; different accounts may run
// concurrently. Every wait honors the request context.
//
// Usage:
//
//	s := scraper.New(sessions, scraper.Options{Root: "/data/ig"})
//	res, err := s.Download(ctx, scraper.Request{
//	    Username:     "natgeo",
//	    Limit:        5,
//	    IncludePosts: true,
//	    IncludeReels: true,
//	    Backoff:      15 * time.Second,
//	})
//	if err != nil {
//	    return err
//	}
//	fmt.Println(res.Message())
//
// Failure handling:
//
// Profile resolution failures abort the run with a typed error from
// pkg/errors. Failures of single posts or story items are recorded in the
// result and the run continues. Rate limits and connection errors are
// retried up to three times per post, pausing Backoff × attempt after each
// failure.
package scraper
