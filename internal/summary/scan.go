package summary

import (
	"encoding/json"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/go-node-tools/dbmaint/internal/kv"
	"github.com/go-node-tools/dbmaint/internal/progress"
	"github.com/go-node-tools/dbmaint/internal/records"
	"github.com/go-node-tools/dbmaint/internal/toolerrors"
)

// Options configures a summary scan and its JSON report.
type Options struct {
	ChunkSizeBytes uint64 // 0 selects ChunkSizeBytes
	OutputPath     string // empty writes to stdout
	Overwrite      bool
	Logger         *zap.Logger
}

// Run scans every block reachable from block_header, feeds each block's
// ordered execution-result sequence into the size and chunk-count
// histograms, and writes the resulting ExecutionResultsSummary as
// pretty-printed JSON. An empty block_header table is not an error: the
// progress tracker is simply skipped and the scan trivially reports zero
// blocks.
func Run(tx kv.Tx, opts Options) (ExecutionResultsSummary, error) {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	chunkSize := opts.ChunkSizeBytes
	if chunkSize == 0 {
		chunkSize = ChunkSizeBytes
	}

	count, ok := tx.EntryCount(kv.BlockHeader)
	if ok && count == 0 {
		logger.Warn("couldn't initialize progress tracker", zap.Error(toolerrors.ErrEmptyDatabase))
	}

	stats := NewExecutionResultsStats()

	var tracker *progress.Tracker
	if ok && count > 0 {
		var err error
		tracker, err = progress.New(uint64(count), func(pct uint64) {
			logger.Info("summary progress", zap.Uint64("percent", pct))
		}, logger)
		if err != nil {
			return ExecutionResultsSummary{}, err
		}
	}

	cur, err := tx.Cursor(kv.BlockHeader)
	if err != nil {
		return ExecutionResultsSummary{}, err
	}
	defer cur.Close()

	scanned := 0
	key, value, err := cur.First()
	if err != nil {
		return ExecutionResultsSummary{}, err
	}
	for key != nil {
		scanned++
		blockHash, err := records.NewDigest(key)
		if err != nil {
			return ExecutionResultsSummary{}, &records.InvalidKeyError{Index: scanned - 1, Err: err}
		}
		header, err := records.DecodeBlockHeader(value)
		if err != nil {
			return ExecutionResultsSummary{}, &toolerrors.HeaderParsingError{BlockHash: records.BlockHash(blockHash), Cause: err}
		}

		bodyRaw, err := tx.Get(kv.BlockBody, header.BodyHash.Bytes())
		if err != nil {
			return ExecutionResultsSummary{}, fmt.Errorf("block body for %s: %w", records.BlockHash(blockHash), err)
		}
		body, err := records.DecodeBlockBody(bodyRaw)
		if err != nil {
			return ExecutionResultsSummary{}, &toolerrors.ParsingError{BlockHash: records.BlockHash(blockHash), DBName: kv.BlockBody, Cause: err}
		}

		var results []records.ExecutionResult
		for _, deployHash := range body.DeployHashes {
			metaRaw, err := tx.Get(kv.DeployMetadata, deployHash.Bytes())
			if err != nil {
				return ExecutionResultsSummary{}, fmt.Errorf("deploy metadata for %s: %w", deployHash, err)
			}
			meta, err := records.DecodeDeployMetadata(metaRaw)
			if err != nil {
				return ExecutionResultsSummary{}, &toolerrors.ParsingError{BlockHash: records.BlockHash(blockHash), DBName: kv.DeployMetadata, Cause: err}
			}
			if result, ok := meta.ExecutionResults[records.BlockHash(blockHash)]; ok {
				results = append(results, result)
			}
		}
		if err := stats.Feed(results, chunkSize); err != nil {
			return ExecutionResultsSummary{}, err
		}
		if tracker != nil {
			tracker.AdvanceBy(1)
		}

		key, value, err = cur.Next()
		if err != nil {
			return ExecutionResultsSummary{}, err
		}
	}

	result := stats.Summarize()
	if err := writeReport(result, opts.OutputPath, opts.Overwrite); err != nil {
		return result, err
	}
	return result, nil
}

func writeReport(summary ExecutionResultsSummary, path string, overwrite bool) error {
	out, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return &toolerrors.SerializeError{Cause: err}
	}
	out = append(out, '\n')

	if path == "" {
		_, err := os.Stdout.Write(out)
		return err
	}

	flags := os.O_WRONLY | os.O_CREATE | os.O_TRUNC
	if !overwrite {
		flags = os.O_WRONLY | os.O_CREATE | os.O_EXCL
	}
	f, err := os.OpenFile(path, flags, 0o644)
	if err != nil {
		return &toolerrors.OutputError{Cause: err}
	}
	defer f.Close()
	if _, err := f.Write(out); err != nil {
		return &toolerrors.OutputError{Cause: err}
	}
	return nil
}
