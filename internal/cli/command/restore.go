package command

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/NovWyatt/cloudflare-security-manager-sub000/internal/cli/output"
)

// RestoreCommand returns the restore command.
func RestoreCommand() *cli.Command {
	return &cli.Command{
		Name:      "restore",
		Usage:     "Apply a snapshot back to a zone",
		ArgsUsage: "SNAPSHOT_ID",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "resource",
				Aliases: []string{"r"},
				Usage:   "Target zone ID (defaults to the snapshot's own zone)",
			},
			&cli.BoolFlag{
				Name:  "dry-run",
				Usage: "Report what would change without writing anything",
			},
		},
		Action: restoreAction,
	}
}

func restoreAction(c *cli.Context) error {
	if c.NArg() != 1 {
		return cli.Exit("exactly one snapshot ID is required", 2)
	}
	rt, err := runtime(c)
	if err != nil {
		return err
	}

	report, err := rt.Engine.RestoreSnapshot(c.Context, c.Args().First(), c.String("resource"), c.Bool("dry-run"))
	if err != nil {
		return err
	}

	if c.String("output") != string(output.FormatTable) {
		if err := render(c, report); err != nil {
			return err
		}
	} else {
		table := &output.Table{Headers: []string{"FIELD", "STATUS", "VALUE"}}
		for _, ch := range report.Changes {
			table.AddRow(ch.Field, string(ch.Status), output.Cell(ch.Value))
		}
		if err := render(c, table); err != nil {
			return err
		}
		for _, e := range report.Errors {
			fmt.Fprintf(c.App.Writer, "failed: %s: %s\n", e.Field, e.Message)
		}
	}

	if !report.Succeeded() {
		return cli.Exit(fmt.Sprintf("restore finished with %d failed fields", len(report.Errors)), 1)
	}
	return nil
}
