package diagnose

import (
	"context"
	"errors"
	"fmt"

	"igbackend/pkg/ui"
)

// Run checks the backend's session, downloads a couple of items of username
// and prints what the result says about the profile. The returned error is
// set only when the backend could not be asked at all.
func Run(ctx context.Context, c *Client, p *ui.Printer, username string) (*Analysis, error) {
	p.Highlight("Instagram Post Access Diagnostic Tool")
	p.Rule("=")

	if !checkStatus(ctx, c, p) {
		p.Warning("Not logged in - some features may not work")
		p.Dim("   Log in from the browser extension or with `igbackend login` first")
	}
	p.Println()

	p.Highlight(fmt.Sprintf("Testing profile access for: %s", username))
	p.Rule("=")

	var report *Report
	err := ui.Wait(ctx, p.Writer(), "Making download request...", func(ctx context.Context) error {
		var err error
		report, err = c.Download(ctx, DiagnosticParams(username))
		return err
	})
	if err != nil {
		switch {
		case errors.Is(err, ErrTimeout):
			p.Error("Request timed out - Instagram may be heavily rate limiting")
		case errors.Is(err, ErrUnreachable):
			p.Error("Cannot connect to backend server")
			p.Dim(fmt.Sprintf("   Make sure `igbackend serve` is running on %s", c.BaseURL()))
		default:
			p.Error("Unexpected error", err)
		}
		return nil, err
	}

	WriteReport(p, report)
	analysis := Analyze(report)
	WriteAnalysis(p, analysis)
	p.Println()
	p.Highlight("Diagnostic complete!")
	return &analysis, nil
}

// checkStatus prints the backend's login state and reports whether a
// session is active
func checkStatus(ctx context.Context, c *Client, p *ui.Printer) bool {
	st, err := c.Status(ctx)
	if err != nil {
		p.Error("Cannot check login status", err)
		return false
	}
	WriteStatus(p, st)
	return st.LoggedIn
}
