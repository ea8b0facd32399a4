// Command casematch runs the matching engine over JSON files, without any backend.
package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"case-disposition-engine/internal/utils"
)

func main() {
	app := &cli.App{
		Name:  "casematch",
		Usage: "Rank disposal organizations and plan case assignments offline",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Value:   "warn",
				Usage:   "log level (debug, info, warn, error)",
				EnvVars: []string{"LOG_LEVEL"},
			},
		},
		Before: func(ctx *cli.Context) error {
			return utils.InitLogger(ctx.String("log-level"))
		},
		After: func(*cli.Context) error {
			utils.Sync()
			return nil
		},
		Commands: []*cli.Command{
			rankCmd,
			planCmd,
			importCmd,
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "Error: ", err)
		os.Exit(1)
	}
}
