package command

import (
	"github.com/urfave/cli/v2"

	"github.com/NovWyatt/cloudflare-security-manager-sub000/internal/server/config"
)

// ConfigCommand returns the config subcommand group.
func ConfigCommand() *cli.Command {
	return &cli.Command{
		Name:  "config",
		Usage: "Inspect the effective configuration",
		Subcommands: []*cli.Command{
			{
				Name:   "show",
				Usage:  "Print the resolved configuration with secrets masked",
				Action: configShow,
			},
		},
	}
}

func configShow(c *cli.Context) error {
	rt, err := runtime(c)
	if err != nil {
		return err
	}
	return render(c, config.Sanitize(rt.Config))
}
