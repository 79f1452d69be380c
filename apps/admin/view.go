package main

import (
	"context"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/trezcool/masomo-console/core"
	"github.com/trezcool/masomo-console/core/dashboard"
)

// view prints one page of an entity list as a table.
func (cli *commandLine) view(ctx context.Context, op core.Operator, file string, q dashboard.Query) error {
	svc := cli.service(file)
	list, err := svc.List(ctx, op, q)
	if err != nil {
		return err
	}
	def, err := cli.registry.Lookup(list.Kind)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(cli.out, 0, 4, 2, ' ', 0)
	titles := make([]string, len(def.Columns))
	for i, col := range def.Columns {
		titles[i] = col.Title
	}
	fmt.Fprintln(tw, strings.Join(titles, "\t"))

	row := make([]string, len(def.Columns))
	for _, item := range list.Items {
		for i, col := range def.Columns {
			row[i] = item.String(col.Field)
		}
		fmt.Fprintln(tw, strings.Join(row, "\t"))
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	p := list.Pagination
	fmt.Fprintf(cli.out, "\npage %d/%d (%d records)\n", p.Page, p.PageCount, p.TotalCount)
	if list.Stale {
		fmt.Fprintln(cli.out, "the API is unavailable: showing cached data")
	}
	return nil
}
