// Package instagram is the session and client adapter used by the backend.
//
// It hides Instagram's web endpoints behind the Adapter interface:
//   - profile resolution through web_profile_info
//   - lazy post pagination through the GraphQL timeline query
//   - story enumeration through the reels_media feed
//   - media download into a storage.Workspace
//   - password login, session export/import and browser cookie import
//
// Failures leave the package as typed *errors.Error values so callers can
// classify them without inspecting message text.
//
// Example usage:
//
//	client := instagram.NewClient(instagram.Options{Timeout: 30 * time.Second}, log)
//	profile, err := client.ResolveProfile(ctx, "natgeo")
//	if err != nil {
//	    return err
//	}
//	for post, err := range client.Posts(ctx, profile) {
//	    if err != nil {
//	        break
//	    }
//	    fmt.Println(post.Shortcode)
//	}
package instagram
