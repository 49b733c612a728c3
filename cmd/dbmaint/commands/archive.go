package commands

import (
	"context"
	"strings"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/go-node-tools/dbmaint/internal/archive"
)

// Archive builds the "create" and "unpack" subcommands (C8).
func Archive(getLogger func() *zap.Logger) *cli.Command {
	return &cli.Command{
		Name:  "archive",
		Usage: "pack a storage directory into a portable zstd-compressed tarball, or unpack one",
		Subcommands: []*cli.Command{
			{
				Name:      "create",
				ArgsUsage: "--source <dir> --dest <file>",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "source", Required: true},
					&cli.StringFlag{Name: "dest", Required: true},
					&cli.BoolFlag{Name: "overwrite"},
				},
				Action: func(c *cli.Context) error {
					err := archive.Pack(context.Background(), c.String("source"), c.String("dest"), c.Bool("overwrite"), getLogger())
					if err != nil {
						return cli.Exit(err, 1)
					}
					return nil
				},
			},
			{
				Name:      "unpack",
				ArgsUsage: "--source <file-or-url> --dest <dir>",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "source", Required: true, Usage: "local path or http(s) URL"},
					&cli.StringFlag{Name: "dest", Required: true},
				},
				Action: func(c *cli.Context) error {
					source := c.String("source")
					dest := c.String("dest")
					logger := getLogger()

					var err error
					if strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://") {
						err = archive.UnpackURL(context.Background(), source, dest, logger)
					} else {
						err = archive.UnpackFile(context.Background(), source, dest, logger)
					}
					if err != nil {
						return cli.Exit(err, 1)
					}
					return nil
				},
			},
		},
	}
}
