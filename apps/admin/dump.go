package main

import (
	"context"
	"errors"
	"net/url"
	"os"

	"github.com/trezcool/masomo-console/core/listing"
)

var errReadOnly = errors.New("dumps are read-only")

// dumpFile serves a saved list response (any of the API's list shapes) as a single page.
type dumpFile string

func (f dumpFile) FetchPage(_ context.Context, _ string, _ url.Values) (listing.Page, error) {
	body, err := os.ReadFile(string(f))
	if err != nil {
		return listing.Page{}, err
	}
	page := listing.NormalizeJSON(body)
	page.TotalCount = len(page.Items)
	page.Next, page.Previous = "", ""
	page.Paginated = false
	return page, nil
}

func (f dumpFile) Patch(context.Context, string, string, interface{}) ([]byte, error) {
	return nil, errReadOnly
}
