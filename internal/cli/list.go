package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/backoffice/internal/filter"
	"github.com/roach88/backoffice/internal/page"
	"github.com/roach88/backoffice/internal/record"
	"github.com/roach88/backoffice/internal/view"
)

// ListOptions holds flags for the list command.
type ListOptions struct {
	*RootOptions
	listFlags
}

// listFlags shape a list view; shared by list, watch and export.
type listFlags struct {
	Filters  []string
	Sort     string
	Desc     bool
	Page     int
	PageSize int
}

func (f *listFlags) register(cmd *cobra.Command, paging bool) {
	cmd.Flags().StringArrayVarP(&f.Filters, "filter", "f", nil, "filter term field=value or field=min..max (repeatable)")
	cmd.Flags().StringVarP(&f.Sort, "sort", "s", "", "sort field; prefix with - for descending (default: page sort)")
	cmd.Flags().BoolVar(&f.Desc, "desc", false, "sort descending")
	if paging {
		cmd.Flags().IntVarP(&f.Page, "page", "p", 1, "page number (clamped to the last page)")
		cmd.Flags().IntVar(&f.PageSize, "page-size", 0, "rows per page (default: page setting)")
	}
}

// ListResult is the JSON form of one rendered page.
type ListResult struct {
	Page   string          `json:"page"`
	Title  string          `json:"title"`
	Filter filter.Spec     `json:"filter,omitempty"`
	Sort   view.SortSpec   `json:"sort"`
	Items  []record.Record `json:"items"`
	State  view.PageState  `json:"state"`
	Links  []view.PageLink `json:"links"`
}

// NewListCommand creates the list command.
func NewListCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ListOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "list <page>",
		Short: "Fetch, filter, sort and page a collection",
		Long: `Fetch a page's collection and show one page of it.

Filters are checked against the page's declared fields before anything is
fetched. Range terms take "min..max"; either bound may be left empty. A
range term without ".." matches that value exactly: amount=100 is
amount=100..100, and a bare date covers the whole day.

Example:
  backoffice list deposits --filter status=Pending --filter amount=100..
  backoffice list members --sort -totalBal --page 2`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runList(opts, args[0], cmd)
		},
	}
	opts.register(cmd, true)

	return cmd
}

func runList(opts *ListOptions, pageName string, cmd *cobra.Command) error {
	ctx := commandContext(cmd)
	a, err := open(cmd, opts.RootOptions)
	if err != nil {
		return err
	}
	defer a.Close()

	if _, err := a.requireSession(ctx); err != nil {
		return err
	}
	pg, err := a.page(pageName)
	if err != nil {
		return err
	}
	list, err := a.loadList(ctx, pg, opts.listFlags)
	if err != nil {
		return err
	}

	v := list.View()
	if a.out.JSON() {
		return a.out.Success(ListResult{
			Page:   pg.Name,
			Title:  pg.Title,
			Filter: list.Filter(),
			Sort:   list.SortSpec(),
			Items:  v.Items,
			State:  v.State,
			Links:  v.Links,
		})
	}

	w := a.out.Writer
	fmt.Fprintf(w, "%s\n\n", pg.Title)
	if len(v.Items) == 0 {
		fmt.Fprintln(w, "No records")
	} else if err := writeTable(w, pg.Columns, v.Items); err != nil {
		return err
	}
	fmt.Fprintln(w)
	writePager(w, v.State)
	return nil
}

// newList parses the filter terms and builds the page's list view.
// Nothing is fetched, so a bad filter costs no request.
func (a *app) newList(pg *page.Page, f listFlags) (*view.List, error) {
	spec, err := filter.Parse(f.Filters, pg.Fields)
	if err != nil {
		return nil, a.out.Fail(ExitCommandError, ErrCodeInvalidInput, "invalid filter", err)
	}

	list := view.NewList(pg.IDField, append(pg.ListOptions(), view.WithListLogger(a.logger))...)
	list.SetFilter(spec)
	if f.Sort != "" {
		s := view.ParseSort(f.Sort)
		s.Desc = s.Desc || f.Desc
		list.SetSort(s)
	} else if f.Desc {
		s := list.SortSpec()
		s.Desc = true
		list.SetSort(s)
	}
	if f.PageSize > 0 {
		list.SetPageSize(f.PageSize)
	}
	if f.Page > 0 {
		list.SetPage(f.Page)
	}
	return list, nil
}

// loadList builds the list view and fetches its collection.
func (a *app) loadList(ctx context.Context, pg *page.Page, f listFlags) (*view.List, error) {
	list, err := a.newList(pg, f)
	if err != nil {
		return nil, err
	}
	a.logger.Debug("fetching collection", "page", pg.Name, "resource", pg.Resource)
	if err := list.Refresh(ctx, a.collection(pg)); err != nil {
		return nil, a.fetchFailure(fmt.Sprintf("failed to fetch %s", pg.Resource), err)
	}
	return list, nil
}

func (a *app) collection(pg *page.Page) view.Source {
	return a.client.Collection(pg.Resource, pg.IDField)
}
