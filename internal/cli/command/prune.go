package command

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/NovWyatt/cloudflare-security-manager-sub000/internal/cli/output"
	"github.com/NovWyatt/cloudflare-security-manager-sub000/internal/core/domain"
)

// PruneCommand returns the prune command.
func PruneCommand() *cli.Command {
	return &cli.Command{
		Name:      "prune",
		Usage:     "Delete snapshots that fall outside the retention policy",
		ArgsUsage: "ZONE_ID [ZONE_ID...]",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:  "max-age-days",
				Usage: "Delete snapshots older than this many days (default from config)",
				Value: -1,
			},
			&cli.IntFlag{
				Name:  "max-count",
				Usage: "Keep at most this many snapshots per zone (default from config)",
				Value: -1,
			},
			&cli.StringSliceFlag{
				Name:  "protect",
				Usage: "Categories exempt from pruning (default from config)",
			},
			&cli.BoolFlag{
				Name:  "dry-run",
				Usage: "Report what would be deleted without deleting",
			},
		},
		Action: pruneAction,
	}
}

func pruneAction(c *cli.Context) error {
	if c.NArg() < 1 {
		return cli.Exit("at least one zone ID is required", 2)
	}
	rt, err := runtime(c)
	if err != nil {
		return err
	}

	policy := pruneFlagsToPolicy(c, rt)
	dryRun := c.Bool("dry-run")

	if c.NArg() == 1 {
		report, err := rt.Engine.PruneSnapshots(c.Context, c.Args().First(), policy, dryRun)
		if err != nil {
			return err
		}
		if c.String("output") != string(output.FormatTable) {
			return render(c, report)
		}
		verb := "deleted"
		if dryRun {
			verb = "would delete"
		}
		fmt.Fprintf(c.App.Writer, "examined %d snapshots, %s %d\n", report.Examined, verb, len(report.Deleted))
		table := &output.Table{Headers: []string{"ID", "CATEGORY", "CREATED"}}
		for _, m := range report.Deleted {
			table.AddRow(m.ID, string(m.Category), output.Cell(m.CreatedAt))
		}
		if err := render(c, table); err != nil {
			return err
		}
		for _, f := range report.Failed {
			fmt.Fprintf(c.App.Writer, "failed: %s: %s\n", f.SnapshotID, f.Message)
		}
		return nil
	}

	results := rt.Engine.PruneAll(c.Context, c.Args().Slice(), policy, dryRun)
	if err := render(c, bulkTable(c, results)); err != nil {
		return err
	}
	for _, r := range results {
		if r.Err != "" {
			return cli.Exit("one or more zones failed to prune", 1)
		}
	}
	return nil
}

// pruneFlagsToPolicy builds the retention policy, falling back to the
// configured defaults for any flag left unset.
func pruneFlagsToPolicy(c *cli.Context, rt *Runtime) domain.RetentionPolicy {
	policy := domain.RetentionPolicy{}
	if rt.Config != nil {
		policy.MaxAgeDays = rt.Config.Retention.MaxAgeDays
		policy.MaxCountPerResource = rt.Config.Retention.MaxCountPerResource
		for _, cat := range rt.Config.Retention.ProtectCategories {
			policy.ProtectCategories = append(policy.ProtectCategories, domain.Category(cat))
		}
	}
	if v := c.Int("max-age-days"); v >= 0 {
		policy.MaxAgeDays = v
	}
	if v := c.Int("max-count"); v >= 0 {
		policy.MaxCountPerResource = v
	}
	if protect := c.StringSlice("protect"); len(protect) > 0 {
		policy.ProtectCategories = nil
		for _, cat := range protect {
			policy.ProtectCategories = append(policy.ProtectCategories, domain.Category(cat))
		}
	}
	return policy
}
