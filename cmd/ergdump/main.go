// Package main is the ergdump command, which prints CarMaker ERG result
// files as channel listings, CSV or JSON.
package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"text/tabwriter"
	"time"

	"github.com/twinfer/erg-plugin/pkg/erg"
	"github.com/twinfer/erg-plugin/pkg/ergstruct"
	"github.com/urfave/cli/v2"
)

const (
	// Flags.
	flagDebug    = "debug"
	flagEncoding = "encoding"
	flagRaw      = "raw"
	flagWhere    = "where"
	flagChannel  = "channel"
	flagDerive   = "derive"
)

func main() {
	if err := newApp(os.Stdout, os.Stderr).Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newApp(stdout, stderr io.Writer) *cli.App {
	var reader *erg.Reader

	rawFlag := &cli.BoolFlag{
		Name:  flagRaw,
		Usage: "print stored values of scaled channels instead of physical values",
	}
	channelFlag := &cli.StringSliceFlag{
		Name:    flagChannel,
		Aliases: []string{"c"},
		Usage:   "only print channel `NAME`, may be repeated",
	}
	deriveFlag := &cli.StringFlag{
		Name:  flagDerive,
		Usage: "add derived channels from YAML `FILE`",
	}

	return &cli.App{
		Name:      "ergdump",
		Usage:     "inspect CarMaker ERG result files",
		Writer:    stdout,
		ErrWriter: stderr,
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  flagDebug,
				Usage: "enable debug logging",
			},
			&cli.StringFlag{
				Name:  flagEncoding,
				Value: "utf-8",
				Usage: "character set of byte blob channels",
			},
		},
		Before: func(c *cli.Context) error {
			level := slog.LevelWarn
			if c.Bool(flagDebug) {
				level = slog.LevelDebug
			}
			enc, err := erg.LookupTextEncoding(c.String(flagEncoding))
			if err != nil {
				return err
			}
			logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))
			reader = erg.NewReader(erg.WithLogger(logger), erg.WithTextEncoding(enc), erg.WithCaching(false))
			return nil
		},
		Commands: []*cli.Command{
			{
				Name:      "info",
				Usage:     "list the channels of an ERG file",
				ArgsUsage: "<path.erg>",
				Action: func(c *cli.Context) error {
					m, err := open(c, reader)
					if err != nil {
						return err
					}
					return printInfo(c.App.Writer, m)
				},
			},
			{
				Name:      "csv",
				Usage:     "print the records of an ERG file as CSV",
				ArgsUsage: "<path.erg>",
				Flags: []cli.Flag{
					rawFlag,
					channelFlag,
					deriveFlag,
					&cli.StringFlag{
						Name:  flagWhere,
						Usage: "only print rows matching `EXPR`, e.g. 'Car_v > 10'",
					},
				},
				Action: func(c *cli.Context) error {
					m, err := open(c, reader)
					if err != nil {
						return err
					}
					table, err := reader.NewTable(m, c.Bool(flagRaw), erg.WithChannels(c.StringSlice(flagChannel)...))
					if err != nil {
						return err
					}
					if where := c.String(flagWhere); where != "" {
						if table, err = table.Where(where); err != nil {
							return err
						}
					}
					return table.WriteCSV(c.App.Writer)
				},
			},
			{
				Name:      "json",
				Usage:     "print an ERG file as a JSON document",
				ArgsUsage: "<path.erg>",
				Flags:     []cli.Flag{rawFlag, channelFlag, deriveFlag},
				Action: func(c *cli.Context) error {
					m, err := open(c, reader)
					if err != nil {
						return err
					}
					data, err := reader.ToJSON(c.Context, m, c.Bool(flagRaw), erg.WithChannels(c.StringSlice(flagChannel)...))
					if err != nil {
						return err
					}
					_, err = fmt.Fprintln(c.App.Writer, string(data))
					return err
				},
			},
		},
	}
}

// open reads the file named by the single argument and applies --derive.
func open(c *cli.Context, reader *erg.Reader) (*ergstruct.Measurement, error) {
	if c.NArg() != 1 {
		return nil, fmt.Errorf("%s: expected exactly one ERG file", c.Command.Name)
	}
	m, err := reader.Open(c.Context, c.Args().First())
	if err != nil {
		return nil, err
	}
	if path := c.String(flagDerive); path != "" {
		defs, err := erg.LoadDerivations(path)
		if err != nil {
			return nil, err
		}
		if err := erg.Derive(m, defs...); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func printInfo(w io.Writer, m *ergstruct.Measurement) error {
	md := m.Metadata()
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "Start time:\t%s\n", m.StartTime().Format(time.RFC3339))
	fmt.Fprintf(tw, "Byte order:\t%s\n", md.ByteOrder)
	fmt.Fprintf(tw, "Records:\t%d\n", m.Records())
	fmt.Fprintf(tw, "Record size:\t%d\n", md.RecordSize())
	fmt.Fprintln(tw)
	fmt.Fprintln(tw, "NAME\tTYPE\tUNIT\tFACTOR\tOFFSET")
	for _, name := range m.Names() {
		ch, err := m.Channel(name)
		if err != nil {
			return err
		}
		factor, offset := "-", "-"
		if ch.Scale != nil {
			factor = fmt.Sprint(ch.Scale.Factor)
			offset = fmt.Sprint(ch.Scale.Offset)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", ch.Name, ch.Type, ch.Unit, factor, offset)
	}
	return tw.Flush()
}
