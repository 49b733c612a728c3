package commands

import (
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/go-node-tools/dbmaint/internal/kv/mdbxkv"
	"github.com/go-node-tools/dbmaint/internal/summary"
)

// Summary builds the "execution-results-summary" subcommand (C7).
func Summary(getLogger func() *zap.Logger) *cli.Command {
	return &cli.Command{
		Name:      "execution-results-summary",
		Usage:     "scan stored execution results and report aggregate size statistics",
		ArgsUsage: "--db <dir> [--out <path>] [--overwrite]",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "db", Required: true, Usage: "node storage directory to scan"},
			&cli.StringFlag{Name: "out", Usage: "JSON report path; defaults to stdout"},
			&cli.BoolFlag{Name: "overwrite", Usage: "allow overwriting an existing report file"},
			&cli.Uint64Flag{Name: "chunk-size-bytes", Usage: "chunk partition size; defaults to the production 8 MiB boundary"},
		},
		Action: func(c *cli.Context) error {
			db, err := mdbxkv.Open(c.String("db"), false)
			if err != nil {
				return cli.Exit(err, 1)
			}
			defer db.Close()

			tx, err := db.BeginRO()
			if err != nil {
				return cli.Exit(err, 1)
			}
			defer tx.Rollback()

			_, err = summary.Run(tx, summary.Options{
				ChunkSizeBytes: c.Uint64("chunk-size-bytes"),
				OutputPath:     c.String("out"),
				Overwrite:      c.Bool("overwrite"),
				Logger:         getLogger(),
			})
			if err != nil {
				return cli.Exit(err, 1)
			}
			return tx.Commit()
		},
	}
}
