package main

import (
	"context"
	"encoding/json"

	"github.com/trezcool/masomo-console/core"
	"github.com/trezcool/masomo-console/core/dashboard"
)

// stats prints the snapshot of an entity list as JSON.
func (cli *commandLine) stats(ctx context.Context, op core.Operator, file string, q dashboard.Query) error {
	stats, err := cli.service(file).Stats(ctx, op, q)
	if err != nil {
		return err
	}
	if !stats.Complete && q.Scope == dashboard.ScopeAll {
		cli.logger.Warn("the snapshot covers the first pages only", map[string]interface{}{"pages": stats.Pages})
	}

	enc := json.NewEncoder(cli.out)
	enc.SetIndent("", "  ")
	return enc.Encode(stats)
}
