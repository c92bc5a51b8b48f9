package command

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/NovWyatt/cloudflare-security-manager-sub000/internal/cli/output"
)

// DiffCommand returns the diff command.
func DiffCommand() *cli.Command {
	return &cli.Command{
		Name:      "diff",
		Usage:     "Compare two snapshots field by field",
		ArgsUsage: "SNAPSHOT_A SNAPSHOT_B",
		Action:    diffAction,
	}
}

func diffAction(c *cli.Context) error {
	if c.NArg() != 2 {
		return cli.Exit("exactly two snapshot IDs are required", 2)
	}
	rt, err := runtime(c)
	if err != nil {
		return err
	}
	cs, err := rt.Engine.DiffSnapshots(c.Context, c.Args().Get(0), c.Args().Get(1))
	if err != nil {
		return err
	}

	if c.String("output") != string(output.FormatTable) {
		return render(c, cs)
	}
	if cs.Empty() {
		fmt.Fprintln(c.App.Writer, "snapshots are identical")
		return nil
	}
	table := &output.Table{Headers: []string{"KIND", "FIELD", "OLD", "NEW"}}
	for _, ch := range cs.Changes {
		table.AddRow(string(ch.Kind), ch.Field, output.Cell(ch.OldValue), output.Cell(ch.NewValue))
	}
	return render(c, table)
}
