package main

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"igbackend/pkg/config"
)

var configForce bool

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration files",
	Long: `Manage igbackend configuration files.

Configuration can be loaded from:
  - Command line flags (highest priority)
  - Environment variables (IGBACKEND_*)
  - .env and ~/.igbackend.env files
  - Configuration file
  - Default values (lowest priority)`,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a configuration file with the default values",
	Long: `Write a configuration file holding every option at its default value.

The file goes to the path given with --config, or to
~/.config/igbackend/config.yaml. An existing file is kept unless --force
is given.`,
	Args: cobra.NoArgs,
	RunE: runConfigInit,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration",
	Long: `Show the configuration after merging all sources.

The history database URL is printed without its password.`,
	Args: cobra.NoArgs,
	RunE: runConfigShow,
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the configuration",
	Args:  cobra.NoArgs,
	RunE:  runConfigValidate,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configInitCmd, configShowCmd, configValidateCmd)

	configInitCmd.Flags().BoolVarP(&configForce, "force", "f", false, "overwrite an existing file")
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	path := configFile
	if path == "" {
		path = config.DefaultPath()
	}
	p := newPrinter(cmd)

	if _, err := os.Stat(path); err == nil && !configForce {
		p.Error("Configuration file already exists", path)
		p.Println("\nRun again with --force to overwrite it.")
		return errReported
	}

	if err := config.DefaultConfig().Save(path); err != nil {
		return err
	}

	p.Success("Configuration file created: " + path)
	p.Println("\nNext steps:")
	p.Println("1. Adjust the download directory and rate limits")
	p.Println("2. Run 'igbackend config validate' to check the file")
	p.Println("3. Start the backend with 'igbackend serve'")
	return nil
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configFile, nil)
	if err != nil {
		return err
	}

	display := *cfg
	display.History.DatabaseURL = redactURL(display.History.DatabaseURL)

	data, err := yaml.Marshal(&display)
	if err != nil {
		return fmt.Errorf("failed to format configuration: %w", err)
	}

	p := newPrinter(cmd)
	p.Highlight("Current Configuration")
	p.Println()
	p.Printf("%s", data)
	return nil
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	p := newPrinter(cmd)

	cfg, err := config.Load(configFile, nil)
	if err != nil {
		p.Error("Configuration validation failed", err)
		return errReported
	}

	var problems []string
	if err := os.MkdirAll(cfg.Download.BaseDirectory, 0o755); err != nil {
		problems = append(problems, fmt.Sprintf("cannot create download directory: %v", err))
	}
	if cfg.Logging.File != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.Logging.File), 0o755); err != nil {
			problems = append(problems, fmt.Sprintf("cannot create log directory: %v", err))
		}
	}
	if len(problems) > 0 {
		p.Error("Configuration has errors")
		for _, msg := range problems {
			p.Printf("  - %s\n", msg)
		}
		return errReported
	}

	p.Success("Configuration is valid")
	p.Println("\nConfiguration summary:")
	p.Info("  Listen address", cfg.Server.Addr())
	p.Info("  Download directory", cfg.Download.BaseDirectory)
	p.Info("  Default limit", cfg.Download.Limit)
	p.Info("  Delay between items", cfg.Download.Delay)
	p.Info("  Rate limit", fmt.Sprintf("%d requests/minute", cfg.Instagram.RequestsPerMinute))
	p.Info("  Run history", cfg.History.Driver)
	p.Info("  Log level", cfg.Logging.Level)
	return nil
}

// redactURL hides the password of a connection URL
func redactURL(raw string) string {
	if raw == "" {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "***"
	}
	return u.Redacted()
}
