package diagnose

import (
	"fmt"
	"strconv"
	"time"

	"igbackend/pkg/history"
	"igbackend/pkg/ui"
)

// MaxListedPosts bounds how many post entries a report prints
const MaxListedPosts = 5

// Verdict is the conclusion drawn from a test download
type Verdict string

const (
	// VerdictBlocked means the profile has posts but none came through
	VerdictBlocked Verdict = "blocked"
	// VerdictNoPosts means the profile reports no media at all
	VerdictNoPosts Verdict = "no_posts"
	// VerdictSuccess means at least one item was downloaded
	VerdictSuccess Verdict = "success"
	// VerdictInconclusive means the profile could not be inspected
	VerdictInconclusive Verdict = "inconclusive"
)

// Analysis explains a Report
type Analysis struct {
	Verdict    Verdict
	Downloaded int
	Total      int
	Causes     []string
	Solutions  []string
}

var blockedCauses = []string{
	"Instagram is blocking post enumeration (most common)",
	"Account requires higher authentication level",
	"Rate limiting affecting post listing",
	"Posts are in a format the API doesn't recognize",
}

var blockedSolutions = []string{
	"Wait 2-3 hours and try again",
	"Use a different Instagram account",
	"Try downloading stories only",
	"Enable both posts and reels in filters",
}

// Analyze draws a verdict from a test download
func Analyze(r *Report) Analysis {
	if r == nil || r.ProfileInfo == nil {
		return Analysis{Verdict: VerdictInconclusive}
	}

	a := Analysis{Downloaded: r.Downloaded(), Total: r.ProfileInfo.MediaCount}
	switch {
	case a.Total > 0 && a.Downloaded == 0:
		a.Verdict = VerdictBlocked
		a.Causes = blockedCauses
		a.Solutions = blockedSolutions
	case a.Total == 0 && a.Downloaded == 0:
		a.Verdict = VerdictNoPosts
	default:
		a.Verdict = VerdictSuccess
	}
	return a
}

// WriteStatus prints the login state of the backend
func WriteStatus(p *ui.Printer, st *StatusReply) {
	p.Highlight("Login Status:")
	p.Info("  Logged In", st.LoggedIn)
	p.Info("  Username", orNone(st.LoggedInAs))
	p.Info("  Status", st.Status)
	if st.Error != "" {
		p.Info("  Error", st.Error)
	}
}

// WriteReport prints the outcome of a test download
func WriteReport(p *ui.Printer, r *Report) {
	p.Info("Response Status", r.StatusCode)
	p.Info("Message", orDefault(r.Message, "No message"))

	p.Println()
	p.Highlight("Profile Information:")
	if info := r.ProfileInfo; info != nil {
		p.Info("  Username", info.Username)
		p.Info("  Total Posts", info.MediaCount)
		p.Info("  Private", info.IsPrivate)
		p.Info("  Logged In", info.LoggedIn)
	} else {
		p.Dim("  unknown")
	}

	p.Println()
	p.Highlight("Download Stats:")
	p.Info("  Posts Downloaded", r.Stats.PostsDownloaded)
	p.Info("  Reels Downloaded", r.Stats.ReelsDownloaded)
	p.Info("  Rate Retries", r.Stats.RateLimitRetries)

	p.Println()
	p.Highlight(fmt.Sprintf("Posts Metadata (%d items):", len(r.Posts)))
	for i, post := range r.Posts {
		if i == MaxListedPosts {
			p.Dim(fmt.Sprintf("  ... %d more", len(r.Posts)-MaxListedPosts))
			break
		}
		if post.Failed() {
			p.Error(fmt.Sprintf("  Error %d", i+1), post.Error)
			if post.Shortcode != "" {
				p.Printf("    Post: %s\n", post.Shortcode)
			}
			continue
		}
		p.Success(fmt.Sprintf("  Success %d: %s (%s)", i+1, orDefault(post.Shortcode, "unknown"), orDefault(post.Type, "unknown")))
	}

	if !r.OK() {
		p.Println()
		p.Error("Error Response:")
		p.Info("  Error", orDefault(r.Error, "Unknown error"))
		if r.Suggestion != "" {
			p.Info("  Suggestion", r.Suggestion)
		}
		if r.RateLimited != nil {
			p.Info("  Rate Limited", *r.RateLimited)
		}
	}
}

// WriteAnalysis prints the verdict of Analyze
func WriteAnalysis(p *ui.Printer, a Analysis) {
	p.Section("ANALYSIS")

	switch a.Verdict {
	case VerdictBlocked:
		p.Error("ISSUE: Profile has posts but none were downloaded")
		p.Println()
		p.Println("Possible causes:")
		writeNumbered(p, a.Causes)
		p.Println()
		p.Println("Solutions to try:")
		writeNumbered(p, a.Solutions)
	case VerdictNoPosts:
		p.Warning("Profile appears to have no posts")
	case VerdictSuccess:
		p.Success(fmt.Sprintf("SUCCESS: Downloaded %d out of %d total posts", a.Downloaded, a.Total))
	default:
		p.Warning("Profile could not be inspected; see the error response above")
	}
}

// WriteHistory prints recorded runs as a table
func WriteHistory(p *ui.Printer, runs []history.Run) {
	if len(runs) == 0 {
		p.Dim("No runs recorded yet")
		return
	}
	rows := make([][]string, 0, len(runs))
	for _, run := range runs {
		rows = append(rows, []string{
			run.StartedAt.Local().Format("2006-01-02 15:04"),
			run.Username,
			formatCount(run.PostsDownloaded),
			formatCount(run.ReelsDownloaded),
			run.StoriesStatus,
			formatCount(run.Errors),
			formatCount(run.RateLimitRetries),
			run.Duration().Round(time.Second).String(),
		})
	}
	p.Table([]string{"Started", "Account", "Posts", "Reels", "Stories", "Errors", "Retries", "Took"}, rows)
}

func writeNumbered(p *ui.Printer, items []string) {
	for i, item := range items {
		p.Printf("  %d. %s\n", i+1, item)
	}
}

func orNone(s string) string {
	return orDefault(s, "None")
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

// formatCount renders n or "-" for zero, for history tables
func formatCount(n int) string {
	if n == 0 {
		return "-"
	}
	return strconv.Itoa(n)
}
