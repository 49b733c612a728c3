package commands

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/go-node-tools/dbmaint/internal/mathutil"
	"github.com/go-node-tools/dbmaint/internal/records"
)

func parseDigest(hexStr string) (records.Digest, error) {
	raw, err := hex.DecodeString(strings.TrimPrefix(hexStr, "0x"))
	if err != nil {
		return records.Digest{}, fmt.Errorf("invalid hex digest %q: %w", hexStr, err)
	}
	return records.NewDigest(raw)
}

func parseHeights(csv string) ([]uint64, error) {
	return mathutil.ParseUint64List(csv)
}
