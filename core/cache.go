package core

import (
	"context"
	"net/url"

	"github.com/trezcool/masomo-console/core/listing"
)

// PageCache keeps the last good copy of upstream list pages.
type PageCache interface {
	// Get returns the page stored under `key`; ok is false on a miss or an expired entry.
	Get(ctx context.Context, key string) (page listing.Page, ok bool, err error)
	Set(ctx context.Context, key string, page listing.Page) error
}

// NoCache never hits.
type NoCache struct{}

var _ PageCache = NoCache{}

func (NoCache) Get(context.Context, string) (listing.Page, bool, error) { return listing.Page{}, false, nil }
func (NoCache) Set(context.Context, string, listing.Page) error         { return nil }

// PageKey identifies a page of an entity list. Params are encoded in key order.
func PageKey(kind string, params url.Values) string {
	if len(params) == 0 {
		return "pages:" + kind
	}
	return "pages:" + kind + "?" + params.Encode()
}
