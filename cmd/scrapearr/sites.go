package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/vmunix/scrapearr/internal/config"
	"github.com/vmunix/scrapearr/pkg/torznab"
)

var sitesCmd = &cobra.Command{
	Use:   "sites",
	Short: "List supported sites and their configured state",
	Args:  cobra.NoArgs,
	RunE:  runSitesCmd,
}

func init() {
	rootCmd.AddCommand(sitesCmd)
}

type siteRow struct {
	Name       string   `json:"name"`
	Enabled    bool     `json:"enabled"`
	Login      bool     `json:"login_required"`
	Captcha    bool     `json:"captcha"`
	URL        string   `json:"url"`
	Categories []string `json:"categories"`
}

func runSitesCmd(cmd *cobra.Command, _ []string) error {
	// Listing works without a config; sites then show as disabled.
	cfg, _, err := loadConfig()
	if err != nil {
		cfg = &config.Config{}
	}

	rows := make([]siteRow, 0, len(registry))
	for _, name := range siteNames() {
		sc, configured := cfg.Sites[name]
		adapter, err := buildAdapter(name, config.SiteConfig{})
		if err != nil {
			return err
		}
		site := adapter.Site()
		row := siteRow{
			Name:    name,
			Enabled: configured && sc.IsEnabled(),
			Login:   site.Login.Required(),
			Captcha: site.Login.Captcha != nil,
			URL:     sc.Settings().BaseURL(site.DefaultURL),
		}
		for _, id := range site.Categories {
			if c, ok := torznab.Lookup(id); ok {
				row.Categories = append(row.Categories, c.Name)
			}
		}
		rows = append(rows, row)
	}

	out := cmd.OutOrStdout()
	if jsonOutput {
		return printJSON(out, rows)
	}
	fmt.Fprintf(out, "%-10s %-8s %-14s %-28s %s\n", "SITE", "ENABLED", "LOGIN", "URL", "CATEGORIES")
	for _, r := range rows {
		login := "none"
		switch {
		case r.Captcha:
			login = "captcha"
		case r.Login:
			login = "password"
		}
		fmt.Fprintf(out, "%-10s %-8s %-14s %-28s %s\n", r.Name, yesNo(r.Enabled), login, r.URL, strings.Join(r.Categories, ", "))
	}
	return nil
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
