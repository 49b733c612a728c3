// Package summary implements the execution-results summarizer (C7): a
// single forward scan over block_header/block_body/deploy_metadata
// producing aggregate per-block execution-result statistics.
package summary

import (
	"sort"

	"github.com/go-node-tools/dbmaint/internal/mathutil"
	"github.com/go-node-tools/dbmaint/internal/records"
)

// ChunkSizeBytes is the boundary execution-result payloads are partitioned
// against when counting how many content-addressable chunks a block's
// results would occupy. Production default; tests use a much smaller value
// to exercise multi-chunk partitioning without generating megabytes of
// fixture data.
const ChunkSizeBytes = 8 << 20 // 8 MiB

// ExecutionResultsStats accumulates, per block, the binary-codec size of
// that block's full ordered execution-result sequence and the chunk count
// its content-addressable encoding partitions into, as two independent
// histograms keyed by value.
type ExecutionResultsStats struct {
	sizeHistogram  map[uint64]uint64
	chunkHistogram map[uint64]uint64
	blocksScanned  int
}

// NewExecutionResultsStats returns an empty accumulator.
func NewExecutionResultsStats() *ExecutionResultsStats {
	return &ExecutionResultsStats{
		sizeHistogram:  make(map[uint64]uint64),
		chunkHistogram: make(map[uint64]uint64),
	}
}

// Feed encodes one block's ordered execution-result sequence with both
// codecs and bins the resulting sizes.
func (s *ExecutionResultsStats) Feed(results []records.ExecutionResult, chunkSizeBytes uint64) error {
	sized, err := records.Encode(results)
	if err != nil {
		return err
	}
	chunked, err := records.EncodeContentAddressable(results)
	if err != nil {
		return err
	}

	s.sizeHistogram[uint64(len(sized))]++
	s.chunkHistogram[chunkCountAfterPartition(uint64(len(chunked)), chunkSizeBytes)]++
	s.blocksScanned++
	return nil
}

// BlocksScanned reports how many blocks have been fed so far.
func (s *ExecutionResultsStats) BlocksScanned() int { return s.blocksScanned }

// CollectionStatistics is the reduction of one histogram: average over all
// samples, the key whose cumulative count first strictly exceeds
// floor(total/2), and the largest key with nonzero count.
type CollectionStatistics struct {
	Average float64 `json:"average"`
	Median  uint64  `json:"median"`
	Max     uint64  `json:"max"`
}

// ExecutionResultsSummary is the final, reportable reduction of a scan.
type ExecutionResultsSummary struct {
	BlocksScanned         int                  `json:"blocks_scanned"`
	ExecutionResultsSize  CollectionStatistics `json:"execution_results_size"`
	ChunksStatistics      CollectionStatistics `json:"chunks_statistics"`
}

// Summarize reduces the fed histograms into an ExecutionResultsSummary.
func (s *ExecutionResultsStats) Summarize() ExecutionResultsSummary {
	return ExecutionResultsSummary{
		BlocksScanned:        s.blocksScanned,
		ExecutionResultsSize: summarizeHistogram(s.sizeHistogram),
		ChunksStatistics:     summarizeHistogram(s.chunkHistogram),
	}
}

// chunkCountAfterPartition returns ceil(totalBytes / chunkSizeBytes), with
// 0 bytes mapping to 0 chunks rather than 1. Feed never passes 0 bytes: even
// an empty execution-result sequence encodes to at least one byte.
func chunkCountAfterPartition(totalBytes, chunkSizeBytes uint64) uint64 {
	return uint64(mathutil.CeilDiv(int(totalBytes), int(chunkSizeBytes)))
}

// summarizeHistogram computes average/median/max over a key -> count
// distribution, ascending by key.
func summarizeHistogram(hist map[uint64]uint64) CollectionStatistics {
	if len(hist) == 0 {
		return CollectionStatistics{}
	}

	keys := make([]uint64, 0, len(hist))
	for k := range hist {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })

	var total, weightedSum uint64
	for _, k := range keys {
		total += hist[k]
		weightedSum += k * hist[k]
	}

	medianPos := total / 2
	var median, cumulative uint64
	for _, k := range keys {
		cumulative += hist[k]
		if cumulative > medianPos {
			median = k
			break
		}
	}

	return CollectionStatistics{
		Average: float64(weightedSum) / float64(total),
		Median:  median,
		Max:     keys[len(keys)-1],
	}
}

// CollectionStatisticsEqual compares two summaries for approximate
// equality, tolerating float drift up to 0.1 on the average fields — used
// only by tests comparing a computed summary against a hand-derived
// expectation.
func CollectionStatisticsEqual(a, b ExecutionResultsSummary) bool {
	const tolerance = 0.1
	closeEnough := func(x, y float64) bool {
		d := x - y
		if d < 0 {
			d = -d
		}
		return d <= tolerance
	}
	return a.BlocksScanned == b.BlocksScanned &&
		closeEnough(a.ExecutionResultsSize.Average, b.ExecutionResultsSize.Average) &&
		a.ExecutionResultsSize.Median == b.ExecutionResultsSize.Median &&
		a.ExecutionResultsSize.Max == b.ExecutionResultsSize.Max &&
		closeEnough(a.ChunksStatistics.Average, b.ChunksStatistics.Average) &&
		a.ChunksStatistics.Median == b.ChunksStatistics.Median &&
		a.ChunksStatistics.Max == b.ChunksStatistics.Max
}
