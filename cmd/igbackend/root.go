package main

import (
	"errors"
	"fmt"
	"net"
	"os"
	"runtime"
	"strconv"

	"github.com/spf13/cobra"

	"igbackend/internal/diagnose"
	"igbackend/pkg/config"
	"igbackend/pkg/logger"
	"igbackend/pkg/ui"
)

var (
	// Version information, set with -ldflags
	version   = "dev"
	gitCommit = "unknown"
	buildDate = "unknown"

	// Global flags
	configFile string
	logLevel   string
	logFile    string
	noColor    bool
	serverURL  string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "igbackend",
	Short: "Local backend for the IG Story Downloader browser extension",
	Long: `igbackend runs the local HTTP service the IG Story Downloader extension
talks to. It keeps one Instagram session, downloads posts, reels and
stories into per-account folders and reports what happened.

Start the service with 'igbackend serve'. The other commands talk to a
running service: log it in, check its session, run a download or a
diagnostic probe, and list past runs.`,
	Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, gitCommit, buildDate),
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// serve configures logging from its loaded config instead
		if cmd.Name() == "serve" {
			return nil
		}
		level := logLevel
		if level == "" {
			level = "warn"
		}
		return logger.Initialize(&config.LoggingConfig{Level: level, File: logFile})
	},
}

// errReported is returned by commands that already printed their failure
var errReported = errors.New("command failed")

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		if !errors.Is(err, errReported) {
			newPrinter(rootCmd).Error("Error", err)
		}
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file (default: ./.igbackend.yaml or ~/.config/igbackend/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "also write logs to this file")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "", "backend URL for client commands (default: from config, else "+diagnose.DefaultBaseURL+")")

	rootCmd.SetVersionTemplate(`igbackend {{.Version}}
Go Version: ` + runtime.Version() + `
OS/Arch: ` + runtime.GOOS + `/` + runtime.GOARCH + `
`)

	rootCmd.CompletionOptions.DisableDefaultCmd = true
}

// newPrinter writes to the command's stdout, colored when it is a terminal
func newPrinter(cmd *cobra.Command) *ui.Printer {
	out := cmd.OutOrStdout()
	return ui.NewPrinter(out, !noColor && ui.ColorEnabled(out))
}

// newClient builds a client for the backend the command should talk to
func newClient() *diagnose.Client {
	return diagnose.NewClient(backendURL(), logger.GetLogger())
}

// backendURL resolves --server, then the configured listener, then the default
func backendURL() string {
	if serverURL != "" {
		return serverURL
	}
	cfg, err := config.Load(configFile, nil)
	if err != nil {
		return diagnose.DefaultBaseURL
	}
	return listenerURL(cfg.Server)
}

// listenerURL turns a listen address into one a local client can dial
func listenerURL(s config.ServerConfig) string {
	host := s.Host
	if ip := net.ParseIP(host); host == "" || (ip != nil && ip.IsUnspecified()) {
		host = "127.0.0.1"
	}
	return "http://" + net.JoinHostPort(host, strconv.Itoa(s.Port))
}
