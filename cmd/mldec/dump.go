package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/urfave/cli/v3"
	"go.uber.org/zap"

	"github.com/tdrkit/mldec/metalib"
	"github.com/tdrkit/mldec/render"
	"github.com/tdrkit/mldec/scan"
)

func dumpCmd() *cli.Command {
	var (
		outPath   string
		format    string
		perType   bool
		logLevel  string
		logFormat string
	)

	return &cli.Command{
		Name:      "dump",
		Usage:     "Decode one blob and print its schema",
		ArgsUsage: "<file> [hex-offset]",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "out", Aliases: []string{"o"}, Usage: "write output to file instead of stdout", Destination: &outPath},
			&cli.StringFlag{Name: "format", Aliases: []string{"f"}, Usage: "output format: xml or json", Value: "xml", Destination: &format},
			&cli.BoolFlag{Name: "per-type", Usage: "render each type structurally instead of the flat schema", Destination: &perType},
			&cli.StringFlag{Name: "log-level", Usage: "zap log level", Destination: &logLevel},
			&cli.StringFlag{Name: "log-format", Usage: "log encoding: console or json", Destination: &logFormat},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			if cmd.Args().Len() < 1 {
				return cli.Exit("usage: mldec dump <file> [hex-offset]", 1)
			}
			applyConfig(cmd, loadConfig(), &format, &logLevel, &logFormat)
			logger, err := setupLogging(logLevel, logFormat)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			data, candidates, err := scan.File(cmd.Args().Get(0))
			if err != nil {
				return err
			}

			offset, err := resolveOffset(cmd.Args().Get(1), candidates)
			if err != nil {
				return err
			}
			logger.Debug("decoding blob", zap.Int64("offset", offset))

			lib, err := metalib.Parse(data, offset)
			if err != nil {
				return err
			}

			out := io.Writer(os.Stdout)
			if outPath != "" {
				f, err := os.Create(outPath)
				if err != nil {
					return err
				}
				defer f.Close()
				out = f
			}
			return writeDocument(ctx, out, lib, format, perType)
		},
	}
}

// resolveOffset parses the positional hex offset, falling back to the
// first scanned candidate when the argument is omitted.
func resolveOffset(arg string, candidates []scan.Candidate) (int64, error) {
	if arg != "" {
		v, err := strconv.ParseInt(strings.TrimPrefix(arg, "0x"), 16, 64)
		if err != nil {
			return 0, fmt.Errorf("offset %q is not hex: %w", arg, err)
		}
		return v, nil
	}
	if len(candidates) == 0 {
		return 0, fmt.Errorf("no blob found in file; pass an explicit offset")
	}
	return candidates[0].Offset, nil
}

func writeDocument(ctx context.Context, out io.Writer, lib *metalib.Lib, format string, perType bool) error {
	var doc *render.Node
	if perType {
		trees, err := render.All(ctx, lib)
		if err != nil {
			return err
		}
		doc = &render.Node{Name: "types"}
		for _, t := range trees {
			doc.Children = append(doc.Children, t.Node)
		}
	} else {
		doc = render.Metalib(lib)
	}

	switch format {
	case "xml":
		return render.WriteXML(out, doc)
	case "json":
		raw, err := render.JSONIndent(doc)
		if err != nil {
			return err
		}
		raw = append(raw, '\n')
		_, err = out.Write(raw)
		return err
	default:
		return fmt.Errorf("unknown format %q (want xml or json)", format)
	}
}
