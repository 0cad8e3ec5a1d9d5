package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"igbackend/internal/diagnose"
	"igbackend/pkg/auth"
	"igbackend/pkg/config"
	"igbackend/pkg/ui"
)

var loginBrowser bool

var loginCmd = &cobra.Command{
	Use:   "login [username]",
	Short: "Log a running backend in to Instagram",
	Long: `Log the running backend in to Instagram.

With a username the password is read from the terminal without echo (or
from the IGBACKEND_PASSWORD environment variable). With --browser the
backend imports the Instagram cookies of a locally installed browser
instead.`,
	Example: `  # Password login
  igbackend login myusername

  # Reuse the session of a browser that is logged in
  igbackend login --browser`,
	Args: cobra.MaximumNArgs(1),
	RunE: runLogin,
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Drop the session of a running backend",
	Args:  cobra.NoArgs,
	RunE:  runLogout,
}

func init() {
	rootCmd.AddCommand(loginCmd, logoutCmd)

	loginCmd.Flags().BoolVarP(&loginBrowser, "browser", "b", false, "import cookies from a local browser")
}

func runLogin(cmd *cobra.Command, args []string) error {
	p := newPrinter(cmd)
	client := newClient()

	var username, password string
	if !loginBrowser {
		in := bufio.NewReader(cmd.InOrStdin())
		var err error
		if len(args) > 0 {
			username = args[0]
		} else if username, err = prompt(in, p, "Instagram username: "); err != nil {
			return err
		}
		if username == "" {
			return errors.New("username is required")
		}
		if password, err = readPassword(cmd.InOrStdin(), in, p); err != nil {
			return err
		}
		if password == "" {
			return errors.New("password is required")
		}
	}

	var reply *diagnose.LoginReply
	err := ui.Wait(cmd.Context(), p.Writer(), "Logging in...", func(ctx context.Context) error {
		var err error
		reply, err = client.Login(ctx, username, password, loginBrowser)
		return err
	})
	if err != nil {
		reportCallError(p, err)
		return errReported
	}

	if !reply.OK() {
		p.Error(fmt.Sprintf("Login failed (HTTP %d)", reply.StatusCode), reply.Error)
		if reply.Suggestion != "" {
			p.Dim("   " + reply.Suggestion)
		}
		if loginBrowser {
			p.Println()
			auth.WriteBrowserLoginGuide(p.Writer(), configuredBrowsers())
		}
		return errReported
	}

	p.Success(reply.Message)
	if reply.Method != "" {
		p.Info("Method", reply.Method)
	}
	return nil
}

func runLogout(cmd *cobra.Command, args []string) error {
	p := newPrinter(cmd)

	reply, err := newClient().Logout(cmd.Context())
	if err != nil {
		reportCallError(p, err)
		return errReported
	}
	p.Success(reply.Message)
	return nil
}

// reportCallError explains why the backend could not be asked
func reportCallError(p *ui.Printer, err error) {
	switch {
	case errors.Is(err, diagnose.ErrUnreachable):
		p.Error("Cannot connect to backend server")
		p.Dim(fmt.Sprintf("   Make sure `igbackend serve` is running on %s", backendURL()))
	case errors.Is(err, diagnose.ErrTimeout):
		p.Error("Request timed out - Instagram may be heavily rate limiting")
	default:
		p.Error("Request failed", err)
	}
}

func prompt(in *bufio.Reader, p *ui.Printer, label string) (string, error) {
	p.Printf("%s", label)
	line, err := in.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", fmt.Errorf("failed to read input: %w", err)
	}
	return strings.TrimSpace(line), nil
}

// readPassword reads without echo from a terminal and falls back to a
// plain line read for pipes
func readPassword(stdin io.Reader, in *bufio.Reader, p *ui.Printer) (string, error) {
	if pw := os.Getenv("IGBACKEND_PASSWORD"); pw != "" {
		return pw, nil
	}
	if f, ok := stdin.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		p.Printf("Password: ")
		data, err := term.ReadPassword(int(f.Fd()))
		p.Println()
		if err != nil {
			return "", fmt.Errorf("failed to read password: %w", err)
		}
		return string(data), nil
	}
	return prompt(in, p, "Password: ")
}

func configuredBrowsers() []string {
	if cfg, err := config.Load(configFile, nil); err == nil && len(cfg.Session.Browsers) > 0 {
		return cfg.Session.Browsers
	}
	return config.DefaultBrowsers
}
