package archive

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPackUnpackRoundTrip(t *testing.T) {
	sourceDir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(sourceDir, "sub"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(sourceDir, "storage.lmdb"), []byte("db-bytes"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(sourceDir, "sub", "nested.txt"), []byte("nested-contents"), 0o644))

	archivePath := filepath.Join(t.TempDir(), "snapshot.tar.zst")
	ctx := context.Background()
	require.NoError(t, Pack(ctx, sourceDir, archivePath, false, nil))

	destDir := filepath.Join(t.TempDir(), "restored")
	require.NoError(t, UnpackFile(ctx, archivePath, destDir, nil))

	got, err := os.ReadFile(filepath.Join(destDir, "storage.lmdb"))
	require.NoError(t, err)
	require.Equal(t, []byte("db-bytes"), got)

	gotNested, err := os.ReadFile(filepath.Join(destDir, "sub", "nested.txt"))
	require.NoError(t, err)
	require.Equal(t, []byte("nested-contents"), gotNested)
}

func TestPackRejectsExistingArchiveWithoutOverwrite(t *testing.T) {
	sourceDir := t.TempDir()
	archivePath := filepath.Join(t.TempDir(), "snapshot.tar.zst")
	require.NoError(t, os.WriteFile(archivePath, []byte("already here"), 0o644))

	err := Pack(context.Background(), sourceDir, archivePath, false, nil)
	require.Error(t, err)
}

func TestUnpackRejectsNonEmptyDestination(t *testing.T) {
	sourceDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(sourceDir, "a.txt"), []byte("a"), 0o644))
	archivePath := filepath.Join(t.TempDir(), "snapshot.tar.zst")
	require.NoError(t, Pack(context.Background(), sourceDir, archivePath, false, nil))

	destDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(destDir, "marker"), []byte("x"), 0o644))

	err := UnpackFile(context.Background(), archivePath, destDir, nil)
	require.Error(t, err)
}
