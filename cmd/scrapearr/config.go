package main

import (
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/vmunix/scrapearr/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Configuration management",
}

var configTestCmd = &cobra.Command{
	Use:   "test [path]",
	Short: "Validate configuration file",
	Long:  "Validates config.toml syntax, required fields, environment variable substitution and site selectors without contacting any site.",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runConfigTest,
}

var configInitCmd = &cobra.Command{
	Use:   "init [path]",
	Short: "Write a default configuration file",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runConfigInit,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configTestCmd)
	configCmd.AddCommand(configInitCmd)
	configInitCmd.Flags().Bool("force", false, "Overwrite an existing file")
}

func runConfigTest(cmd *cobra.Command, args []string) error {
	path := configPath
	if len(args) > 0 {
		path = args[0]
	}
	if path == "" {
		var err error
		if path, err = config.Discover(); err != nil {
			return err
		}
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Validating %s...\n\n", path)

	cfg, err := config.Load(path)
	if err != nil {
		var configErr *config.ConfigError
		if errors.As(err, &configErr) {
			printConfigErrors(out, configErr)
			return fmt.Errorf("configuration invalid")
		}
		return fmt.Errorf("failed to load config: %w", err)
	}

	var siteErrs []string
	for name, sc := range cfg.Sites {
		if _, err := buildAdapter(name, sc); err != nil {
			siteErrs = append(siteErrs, err.Error())
		}
	}
	if len(siteErrs) > 0 {
		slices.Sort(siteErrs)
		printConfigErrors(out, &config.ConfigError{Path: path, Errors: siteErrs})
		return fmt.Errorf("configuration invalid")
	}

	printConfigSummary(out, cfg)
	fmt.Fprintln(out, "\nConfiguration valid!")
	return nil
}

func printConfigErrors(w io.Writer, e *config.ConfigError) {
	if len(e.Missing) > 0 {
		fmt.Fprintln(w, "Missing environment variables:")
		for _, m := range e.Missing {
			fmt.Fprintf(w, "  - %s\n", m)
		}
		fmt.Fprintln(w)
	}

	if len(e.Errors) > 0 {
		fmt.Fprintln(w, "Validation errors:")
		for _, err := range e.Errors {
			fmt.Fprintf(w, "  - %s\n", err)
		}
		fmt.Fprintln(w)
	}
}

func printConfigSummary(w io.Writer, cfg *config.Config) {
	fmt.Fprintln(w, "Configuration Summary:")
	fmt.Fprintf(w, "  Server:     %s:%d (api key: %s)\n", cfg.Server.Host, cfg.Server.Port, yesNo(cfg.Server.APIKey != ""))
	fmt.Fprintf(w, "  Store:      %s (cache ttl %s)\n", cfg.Store.Path, cfg.Store.CacheTTL)
	logDest := "stderr"
	if cfg.Log.File != "" {
		logDest += ", " + cfg.Log.File
	}
	fmt.Fprintf(w, "  Log:        %s/%s -> %s\n", cfg.Log.Level, cfg.Log.Format, logDest)

	var enabled, disabled []string
	for name, sc := range cfg.Sites {
		if sc.IsEnabled() {
			enabled = append(enabled, name)
		} else {
			disabled = append(disabled, name)
		}
	}
	slices.Sort(enabled)
	slices.Sort(disabled)
	fmt.Fprintf(w, "  Sites:      %s\n", strings.Join(enabled, ", "))
	if len(disabled) > 0 {
		fmt.Fprintf(w, "  Disabled:   %s\n", strings.Join(disabled, ", "))
	}
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	force, _ := cmd.Flags().GetBool("force")
	path := "config.toml"
	if len(args) > 0 {
		path = args[0]
	}
	if err := config.WriteDefault(path, force); err != nil {
		if errors.Is(err, config.ErrExists) {
			return fmt.Errorf("%w; use --force to overwrite", err)
		}
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", path)
	return nil
}
