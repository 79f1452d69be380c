package cache

import (
	"bytes"
	"encoding/json"

	"github.com/pkg/errors"

	"github.com/trezcool/masomo-console/core/listing"
)

func Encode(page listing.Page) ([]byte, error) {
	b, err := json.Marshal(page)
	return b, errors.Wrap(err, "encoding page")
}

// Decode reads a page written by Encode. Numbers are kept as json.Number, as the upstream client does.
func Decode(b []byte) (listing.Page, error) {
	var page listing.Page
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	if err := dec.Decode(&page); err != nil {
		return listing.Page{}, errors.Wrap(err, "decoding page")
	}
	return page, nil
}
