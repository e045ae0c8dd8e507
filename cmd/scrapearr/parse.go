package main

import (
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/vmunix/scrapearr/pkg/release"
)

var parseTitleCmd = &cobra.Command{
	Use:   "parse-title [flags] <title>...",
	Short: "Normalize a raw tracker title (local, no site needed)",
	Long: `Normalize a raw tracker title the way site adapters do.

Examples:
  scrapearr parse-title "Тьма / Dark (Сезон 2, Серия 5) WEBDLRip"
  scrapearr parse-title --strip-russian --lang Russian "Тьма / Dark (Сезон 2, Серия 5)"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runParseTitleCmd,
}

var parseSizeCmd = &cobra.Command{
	Use:   "parse-size <text>...",
	Short: "Convert a size such as \"12.5 GB\" or \"1,2 ГБ\" to bytes",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runParseSizeCmd,
}

func init() {
	rootCmd.AddCommand(parseTitleCmd)
	rootCmd.AddCommand(parseSizeCmd)
	parseTitleCmd.Flags().Bool("strip-russian", false, "Drop a Cyrillic title before '/'")
	parseTitleCmd.Flags().String("lang", "", "Language suffix, e.g. Russian")
}

type titleResult struct {
	Raw       string `json:"raw"`
	Title     string `json:"title"`
	Name      string `json:"name"`
	Year      string `json:"year,omitempty"`
	Season    string `json:"season,omitempty"`
	Episodes  string `json:"episodes,omitempty"`
	Quality   string `json:"quality,omitempty"`
	Dimension string `json:"dimension,omitempty"`
}

func runParseTitleCmd(cmd *cobra.Command, args []string) error {
	strip, _ := cmd.Flags().GetBool("strip-russian")
	lang, _ := cmd.Flags().GetString("lang")
	raw := strings.Join(args, " ")
	title := release.NormalizeTitle(raw, release.TitleOptions{StripRussian: strip, Language: lang})

	res := titleResult{
		Raw:       raw,
		Title:     title,
		Name:      release.NameFromTitle(raw),
		Year:      release.YearFromTitle(raw),
		Season:    release.SeasonFromTitle(raw),
		Episodes:  release.EpisodesFromTitle(raw),
		Quality:   release.ClassifyQuality(title).String(),
		Dimension: release.DimensionFromTitle(title),
	}

	out := cmd.OutOrStdout()
	if jsonOutput {
		return printJSON(out, res)
	}
	fmt.Fprintf(out, "Title:      %s\n", res.Title)
	fmt.Fprintf(out, "Name:       %s\n", res.Name)
	for _, f := range []struct{ label, value string }{
		{"Year", res.Year},
		{"Season", res.Season},
		{"Episodes", res.Episodes},
		{"Quality", res.Quality},
		{"Dimension", res.Dimension},
	} {
		if f.value != "" {
			fmt.Fprintf(out, "%-11s %s\n", f.label+":", f.value)
		}
	}
	return nil
}

func runParseSizeCmd(cmd *cobra.Command, args []string) error {
	text := strings.Join(args, " ")
	n, ok := release.ParseSize(text)
	if !ok {
		return fmt.Errorf("no size found in %q", text)
	}
	out := cmd.OutOrStdout()
	if jsonOutput {
		return printJSON(out, map[string]any{"text": text, "bytes": n})
	}
	fmt.Fprintf(out, "%d bytes (%s)\n", n, humanize.IBytes(uint64(n)))
	return nil
}
