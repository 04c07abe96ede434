package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	json "github.com/goccy/go-json"
	"github.com/urfave/cli/v3"

	"github.com/tdrkit/mldec/scan"
)

func scanCmd() *cli.Command {
	var (
		asJSON    bool
		logLevel  string
		logFormat string
	)

	return &cli.Command{
		Name:      "scan",
		Usage:     "List blob candidates embedded in a file",
		ArgsUsage: "<file>",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "json", Usage: "machine-readable output", Destination: &asJSON},
			&cli.StringFlag{Name: "log-level", Usage: "zap log level", Destination: &logLevel},
			&cli.StringFlag{Name: "log-format", Usage: "log encoding: console or json", Destination: &logFormat},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			if cmd.Args().Len() != 1 {
				return cli.Exit("usage: mldec scan <file>", 1)
			}
			var unused string
			applyConfig(cmd, loadConfig(), &unused, &logLevel, &logFormat)
			logger, err := setupLogging(logLevel, logFormat)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			_, candidates, err := scan.File(cmd.Args().Get(0))
			if err != nil {
				return err
			}

			if asJSON {
				raw, err := json.MarshalIndent(candidates, "", "  ")
				if err != nil {
					return err
				}
				fmt.Println(string(raw))
				return nil
			}

			if len(candidates) == 0 {
				fmt.Println("no blobs found")
				return nil
			}
			tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "OFFSET\tNAME\tSIZE\tTAGSET\tMETAS\tMACROS\tNOTE")
			for _, c := range candidates {
				note := ""
				if c.Truncated {
					note = "truncated"
				}
				fmt.Fprintf(tw, "0x%x\t%s\t%d\t%d\t%d\t%d\t%s\n",
					c.Offset, c.Name, c.Size, c.TagSet, c.Metas, c.Macros, note)
			}
			return tw.Flush()
		},
	}
}
