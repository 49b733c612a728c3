package commands

import (
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/go-node-tools/dbmaint/internal/kv/mdbxkv"
	"github.com/go-node-tools/dbmaint/internal/purge"
)

// PurgeSignatures builds the "purge-signatures" subcommand (C6).
func PurgeSignatures(getLogger func() *zap.Logger) *cli.Command {
	return &cli.Command{
		Name:      "purge-signatures",
		Usage:     "strip or delete finality signatures for the given block heights",
		ArgsUsage: "--db <dir> [--weak-finality 10,20,30] [--no-finality 40,50]",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "db", Required: true, Usage: "node storage directory to mutate in place"},
			&cli.StringFlag{Name: "weak-finality", Usage: "comma-separated heights to strip down to weak finality"},
			&cli.StringFlag{Name: "no-finality", Usage: "comma-separated heights to delete signatures for entirely"},
		},
		Action: func(c *cli.Context) error {
			logger := getLogger()

			weakHeights, err := parseHeights(c.String("weak-finality"))
			if err != nil {
				return cli.Exit(err, 1)
			}
			fullHeights, err := parseHeights(c.String("no-finality"))
			if err != nil {
				return cli.Exit(err, 1)
			}

			db, err := mdbxkv.Open(c.String("db"), false)
			if err != nil {
				return cli.Exit(err, 1)
			}
			defer db.Close()

			tx, err := db.BeginRW()
			if err != nil {
				return cli.Exit(err, 1)
			}
			defer tx.Rollback()

			if err := purge.PurgeSignatures(tx, weakHeights, fullHeights, logger); err != nil {
				return cli.Exit(err, 1)
			}
			if err := tx.Commit(); err != nil {
				return cli.Exit(err, 1)
			}
			return nil
		},
	}
}
