package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/vmunix/scrapearr/internal/indexer"
	"github.com/vmunix/scrapearr/pkg/release"
	"github.com/vmunix/scrapearr/pkg/torznab"
)

var searchCmd = &cobra.Command{
	Use:   "search [flags] <site|all> [query]...",
	Short: "Search one site or all enabled sites",
	Long: `Search a site. Without a query the site's newest releases are listed.
A trailing "S02" or "S02E05" narrows a TV search to a season or episode.

Examples:
  scrapearr search newstudio
  scrapearr search rutracker Interstellar
  scrapearr search all "Dark S02E05" --cat 5000
  scrapearr search soap4me Dark S02 --torznab`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSearchCmd,
}

func init() {
	rootCmd.AddCommand(searchCmd)
	searchCmd.Flags().IntSlice("cat", nil, "Torznab category ids to keep")
	searchCmd.Flags().Bool("torznab", false, "Print a Torznab RSS feed")
	searchCmd.Flags().BoolP("verbose", "v", false, "Show skipped rows and site errors")
}

// searchOutcome is what a search printed; Skipped and Errors are keyed by site.
type searchOutcome struct {
	Records []release.Record    `json:"records"`
	Skipped map[string][]string `json:"skipped,omitempty"`
	Errors  map[string]string   `json:"errors,omitempty"`
}

func runSearchCmd(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cats, _ := cmd.Flags().GetIntSlice("cat")
	asTorznab, _ := cmd.Flags().GetBool("torznab")
	verbose, _ := cmd.Flags().GetBool("verbose")

	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	q := indexer.ParseQuery(strings.Join(args[1:], " "), cats)
	outcome, err := search(ctx, a, args[0], q)
	if err != nil {
		return err
	}
	a.saveSessions(ctx)

	out := cmd.OutOrStdout()
	switch {
	case asTorznab:
		items := make([]torznab.Item, 0, len(outcome.Records))
		for _, r := range outcome.Records {
			items = append(items, r.TorznabItem())
		}
		return torznab.WriteFeed(out, torznab.Channel{Title: "scrapearr " + args[0]}, items)
	case jsonOutput:
		return printJSON(out, outcome)
	}
	printRecords(out, outcome.Records)
	if verbose {
		printProblems(out, outcome)
	}
	return nil
}

func search(ctx context.Context, a *app, name string, q indexer.Query) (*searchOutcome, error) {
	outcome := &searchOutcome{Skipped: map[string][]string{}, Errors: map[string]string{}}
	collect := func(res *indexer.Result) {
		for _, s := range res.Skipped() {
			outcome.Skipped[res.Site] = append(outcome.Skipped[res.Site], s.Error())
		}
	}

	if name == "all" {
		res, err := indexer.NewPool(a.dispatcher, a.targets, a.log).Search(ctx, q)
		if err != nil {
			return nil, err
		}
		outcome.Records = res.Records
		for _, r := range res.Results {
			collect(r)
		}
		for site, err := range res.Errors {
			outcome.Errors[site] = err.Error()
		}
		return outcome, nil
	}

	t, err := a.target(name)
	if err != nil {
		return nil, err
	}
	res, err := a.dispatcher.Search(ctx, t.Adapter, t.Session, q)
	if err != nil {
		return nil, err
	}
	outcome.Records = res.Records
	collect(res)
	return outcome, nil
}

func printRecords(w io.Writer, records []release.Record) {
	if len(records) == 0 {
		fmt.Fprintln(w, "No releases found")
		return
	}
	fmt.Fprintf(w, "Found %d releases:\n\n", len(records))
	fmt.Fprintf(w, "  %-3s %-10s %-9s %-9s %-15s %-10s %s\n", "#", "SITE", "SIZE", "S/P", "CATEGORY", "DATE", "TITLE")
	fmt.Fprintln(w, "  "+strings.Repeat("-", 100))
	for i, r := range records {
		date := "-"
		if !r.PublishDate.Equal(release.UnknownDate) {
			date = r.PublishDate.Format("2006-01-02")
		}
		size := "-"
		if r.Size > 0 {
			size = humanize.IBytes(uint64(r.Size))
		}
		fmt.Fprintf(w, "  %-3d %-10s %-9s %-9s %-15s %-10s %s\n", i+1, r.Site, size,
			fmt.Sprintf("%d/%d", r.Seeders, r.Peers), categoryName(r.Category), date, r.Title)
	}
}

func printProblems(w io.Writer, o *searchOutcome) {
	for site, err := range o.Errors {
		fmt.Fprintf(w, "\n%s failed: %s\n", site, err)
	}
	for site, skips := range o.Skipped {
		fmt.Fprintf(w, "\n%s skipped %d rows:\n", site, len(skips))
		for _, s := range skips {
			fmt.Fprintf(w, "  - %s\n", s)
		}
	}
}

func categoryName(id int) string {
	if c, ok := torznab.Lookup(id); ok {
		return c.Name
	}
	return fmt.Sprint(id)
}
