package cli

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/roach88/backoffice/internal/page"
)

// PageSummary is the JSON form of one catalogue entry.
type PageSummary struct {
	Name     string   `json:"name"`
	Title    string   `json:"title"`
	Resource string   `json:"resource"`
	PageSize int      `json:"page_size"`
	Sort     string   `json:"sort,omitempty"`
	Filters  []string `json:"filters,omitempty"`
	Actions  []string `json:"actions,omitempty"`
}

// NewPagesCommand creates the pages command.
func NewPagesCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "pages",
		Short: "List the configured pages",
		Long: `List every page with its resource, filterable fields and row actions.

Built-in pages can be replaced or extended with CUE files in pages.dir.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openLocal(cmd, rootOpts)
			if err != nil {
				return err
			}

			summaries := make([]PageSummary, 0, a.catalogue.Len())
			for _, pg := range a.catalogue.All() {
				summaries = append(summaries, summarize(pg))
			}
			if a.out.JSON() {
				return a.out.Success(summaries)
			}
			return writePages(a.out, summaries)
		},
	}
}

func summarize(pg *page.Page) PageSummary {
	return PageSummary{
		Name:     pg.Name,
		Title:    pg.Title,
		Resource: pg.Resource,
		PageSize: pg.PageSize,
		Sort:     pg.Sort.String(),
		Filters:  pg.Fields.Names(),
		Actions:  pg.ActionNames(),
	}
}

func writePages(out *OutputFormatter, pages []PageSummary) error {
	tw := tabwriter.NewWriter(out.Writer, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "PAGE\tTITLE\tRESOURCE\tACTIONS")
	for _, p := range pages {
		actions := strings.Join(p.Actions, ",")
		if actions == "" {
			actions = "-"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", p.Name, p.Title, p.Resource, actions)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	if out.Verbose {
		for _, p := range pages {
			out.VerboseLog("%s: filters [%s], sort %q, %d per page",
				p.Name, strings.Join(p.Filters, " "), p.Sort, p.PageSize)
		}
	}
	return nil
}
