// Command dbmaint is the offline maintenance toolkit's CLI front end:
// slice extraction, finality-signature purging, execution-result
// summarization and storage archival, each exposed as a subcommand over
// the same on-disk storage format.
package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/go-node-tools/dbmaint/cmd/dbmaint/commands"
)

func main() {
	logger, err := newLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "dbmaint: building logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync() //nolint:errcheck

	app := &cli.App{
		Name:  "dbmaint",
		Usage: "maintenance tooling for offline node storage environments",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "verbose", Usage: "enable debug-level logging"},
		},
		Before: func(c *cli.Context) error {
			if c.Bool("verbose") {
				l, err := zap.NewDevelopment()
				if err != nil {
					return err
				}
				logger = l
			}
			return nil
		},
		Commands: []*cli.Command{
			commands.ExtractSlice(func() *zap.Logger { return logger }),
			commands.PurgeSignatures(func() *zap.Logger { return logger }),
			commands.Summary(func() *zap.Logger { return logger }),
			commands.Archive(func() *zap.Logger { return logger }),
		},
	}

	if err := app.Run(os.Args); err != nil {
		logger.Error("dbmaint failed", zap.Error(err))
		os.Exit(1)
	}
}

func newLogger() (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.EncoderConfig.TimeKey = "timestamp"
	return cfg.Build()
}
