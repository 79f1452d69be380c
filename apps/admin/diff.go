package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/pkg/errors"

	"github.com/trezcool/masomo-console/core/changeset"
)

// diff prints the fields changed between two form states, then a unified diff of them.
func (cli *commandLine) diff(fromPath, toPath string) error {
	from, err := readJSON(fromPath)
	if err != nil {
		return err
	}
	to, err := readJSON(toPath)
	if err != nil {
		return err
	}

	change, err := changeset.Diff(from, to)
	if err != nil {
		return err
	}
	if change.IsEmpty() {
		fmt.Fprintln(cli.out, "no changes")
		return nil
	}

	unified, err := changeset.Unified(from, to)
	if err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "changed: %s\n\n%s", strings.Join(change.Fields, ", "), unified)
	return nil
}

func readJSON(path string) (interface{}, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var v interface{}
	if err := json.Unmarshal(b, &v); err != nil {
		return nil, errors.Wrapf(err, "decoding %s", path)
	}
	return v, nil
}
