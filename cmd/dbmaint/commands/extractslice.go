package commands

import (
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/go-node-tools/dbmaint/internal/kv"
	"github.com/go-node-tools/dbmaint/internal/kv/mdbxkv"
	"github.com/go-node-tools/dbmaint/internal/records"
	"github.com/go-node-tools/dbmaint/internal/slice"
)

// ExtractSlice builds the "extract-slice" subcommand (C5).
//
// This build wires no triestore.Opener: the global-state trie engine
// (original_source's trie_compact module) is out of scope, so §4.3 step 8
// — copying the target block's global-state subtree — is never performed.
// --skip-global-state must be passed to acknowledge this explicitly; the
// Action also warns on every invocation so the gap can't go unnoticed in
// logs.
func ExtractSlice(getLogger func() *zap.Logger) *cli.Command {
	return &cli.Command{
		Name:      "extract-slice",
		Usage:     "copy a single block and its dependent records into a fresh storage directory",
		ArgsUsage: "--source <dir> --dest <dir> --block-hash <hex> --skip-global-state",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "source", Required: true, Usage: "existing node storage directory"},
			&cli.StringFlag{Name: "dest", Required: true, Usage: "destination directory, must not already exist"},
			&cli.StringFlag{Name: "block-hash", Required: true, Usage: "hex-encoded block hash to extract"},
			&cli.BoolFlag{Name: "skip-global-state", Required: true, Usage: "required acknowledgment: this build has no global-state trie engine wired in, so the block's state subtree is never copied"},
		},
		Action: func(c *cli.Context) error {
			logger := getLogger()
			logger.Warn("extract-slice: no global-state trie engine is wired into this build; step 8 (global-state subtree copy) will be skipped for every invocation")

			blockHash, err := parseDigest(c.String("block-hash"))
			if err != nil {
				return cli.Exit(err, 1)
			}
			err = slice.Extract(slice.Options{
				SourceDir: c.String("source"),
				DestDir:   c.String("dest"),
				BlockHash: records.BlockHash(blockHash),
				Open: func(dir string, create bool) (kv.DB, error) {
					return mdbxkv.Open(dir, create)
				},
				Logger: logger,
			})
			if err != nil {
				return cli.Exit(err, 1)
			}
			return nil
		},
	}
}
