// Package slice implements the single-block slice extractor (C5): it
// copies one block's header, body, transfers, deploys and projected
// execution-result metadata into a fresh destination environment, then
// hands the header's state root to the trie store for the global-state
// subtree copy.
package slice

import (
	"errors"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/go-node-tools/dbmaint/internal/kv"
	"github.com/go-node-tools/dbmaint/internal/records"
	"github.com/go-node-tools/dbmaint/internal/toolerrors"
	"github.com/go-node-tools/dbmaint/internal/triestore"
)

// DBOpener opens a production kv.DB rooted at a node directory. Supplied by
// the caller (the CLI layer) so this package stays independent of the
// concrete mdbx backend and is straightforward to exercise against memkv in
// tests.
type DBOpener func(dir string, create bool) (kv.DB, error)

// Options configures a single slice extraction.
type Options struct {
	SourceDir string
	DestDir   string
	BlockHash records.BlockHash

	Open   DBOpener
	Trie   triestore.Opener // nil disables the global-state copy (tests)
	Logger *zap.Logger
}

// Extract runs the full C5 algorithm described in SPEC_FULL.md §4.3.
func Extract(opts Options) error {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	if _, err := os.Stat(opts.DestDir); err == nil {
		return &toolerrors.OutputError{Cause: kv.ErrAlreadyExists}
	} else if !errors.Is(err, os.ErrNotExist) {
		return &toolerrors.OutputError{Cause: err}
	}

	destDB, err := opts.Open(opts.DestDir, true)
	if err != nil {
		return fmt.Errorf("creating destination environment: %w", err)
	}
	for _, table := range kv.SliceDestinationTables {
		if err := destDB.CreateTable(table); err != nil {
			return fmt.Errorf("declaring table %s: %w", table, err)
		}
	}

	srcDB, err := opts.Open(opts.SourceDir, false)
	if err != nil {
		return fmt.Errorf("opening source environment: %w", err)
	}

	srcTx, err := srcDB.BeginRO()
	if err != nil {
		return fmt.Errorf("beginning source read transaction: %w", err)
	}
	defer srcTx.Rollback()

	destTx, err := destDB.BeginRW()
	if err != nil {
		return fmt.Errorf("beginning destination write transaction: %w", err)
	}
	defer destTx.Rollback()

	logger.Info("extracting slice", zap.Stringer("block_hash", opts.BlockHash))

	headerRaw, err := srcTx.Get(kv.BlockHeader, opts.BlockHash.Bytes())
	if err != nil {
		if errors.Is(err, kv.ErrKeyNotFound) {
			return fmt.Errorf("block header: %w", err)
		}
		return err
	}
	if err := destTx.Put(kv.BlockHeader, opts.BlockHash.Bytes(), headerRaw); err != nil {
		return err
	}
	header, err := records.DecodeBlockHeader(headerRaw)
	if err != nil {
		return &toolerrors.HeaderParsingError{BlockHash: opts.BlockHash, Cause: err}
	}
	logger.Info("transferred block header")

	bodyRaw, err := srcTx.Get(kv.BlockBody, header.BodyHash.Bytes())
	if err != nil {
		if errors.Is(err, kv.ErrKeyNotFound) {
			return fmt.Errorf("block body: %w", err)
		}
		return err
	}
	if err := destTx.Put(kv.BlockBody, header.BodyHash.Bytes(), bodyRaw); err != nil {
		return err
	}
	body, err := records.DecodeBlockBody(bodyRaw)
	if err != nil {
		return &toolerrors.ParsingError{BlockHash: opts.BlockHash, DBName: kv.BlockBody, Cause: err}
	}
	logger.Info("transferred block body")

	switch transferRaw, err := srcTx.Get(kv.Transfer, opts.BlockHash.Bytes()); {
	case err == nil:
		if err := destTx.Put(kv.Transfer, opts.BlockHash.Bytes(), transferRaw); err != nil {
			return err
		}
		logger.Info("transferred transfers")
	case errors.Is(err, kv.ErrKeyNotFound):
		logger.Info("no transfers found in source db")
	default:
		return err
	}

	for _, deployHash := range body.DeployHashes {
		deployRaw, err := srcTx.Get(kv.Deploy, deployHash.Bytes())
		if err != nil {
			return fmt.Errorf("deploy %s: %w", deployHash, err)
		}
		if err := destTx.Put(kv.Deploy, deployHash.Bytes(), deployRaw); err != nil {
			return err
		}
		logger.Info("transferred deploy", zap.Stringer("deploy_hash", deployHash))

		metadataRaw, err := srcTx.Get(kv.DeployMetadata, deployHash.Bytes())
		if err != nil {
			return fmt.Errorf("deploy metadata for %s: %w", deployHash, err)
		}
		metadata, err := records.DecodeDeployMetadata(metadataRaw)
		if err != nil {
			return &toolerrors.ParsingError{BlockHash: opts.BlockHash, DBName: kv.DeployMetadata, Cause: err}
		}
		result, ok := metadata.ExecutionResults[opts.BlockHash]
		if !ok {
			continue
		}
		projected := &records.DeployMetadata{ExecutionResults: map[records.BlockHash]records.ExecutionResult{opts.BlockHash: result}}
		projectedRaw, err := records.EncodeDeployMetadata(projected)
		if err != nil {
			return &toolerrors.SerializeError{BlockHash: opts.BlockHash, Cause: err}
		}
		if err := destTx.Put(kv.DeployMetadata, deployHash.Bytes(), projectedRaw); err != nil {
			return err
		}
		logger.Info("transferred projected execution result", zap.Stringer("deploy_hash", deployHash))
	}

	if err := srcTx.Commit(); err != nil {
		return err
	}
	if err := destTx.Commit(); err != nil {
		return err
	}
	if err := srcDB.Close(); err != nil {
		return err
	}
	if err := destDB.Close(); err != nil {
		return err
	}
	logger.Info("storage transfer complete")

	if opts.Trie != nil {
		if err := triestore.TransferGlobalState(opts.Trie, opts.SourceDir, opts.DestDir, header.StateRootHash); err != nil {
			return err
		}
	}
	return nil
}
