// Package archive implements the streaming pack/unpack pipeline (C8): a
// node directory tarred and zstd-compressed to a single portable file, and
// the reverse, either from a local path or streamed directly from an HTTP(S)
// URL.
package archive

import (
	"archive/tar"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/klauspost/compress/zstd"
	"go.uber.org/zap"

	"github.com/go-node-tools/dbmaint/internal/kv"
	"github.com/go-node-tools/dbmaint/internal/toolerrors"
)

// maxDecoderWindow bounds the zstd decoder's window size. Set generously
// (2 GiB) since node directories can be large; klauspost/compress refuses
// frames whose declared window exceeds this rather than allocating
// unboundedly.
const maxDecoderWindow = 1 << 31

// Pack tars and zstd-compresses sourceDir into a single file at
// destArchivePath. Fails if sourceDir is not a directory, and if
// destArchivePath already exists unless overwrite is set. ctx cancellation
// aborts the copy loop between tar entries.
func Pack(ctx context.Context, sourceDir, destArchivePath string, overwrite bool, logger *zap.Logger) error {
	if logger == nil {
		logger = zap.NewNop()
	}

	if info, err := os.Stat(sourceDir); err != nil {
		return fmt.Errorf("archive: source %s: %w", sourceDir, err)
	} else if !info.IsDir() {
		return fmt.Errorf("archive: source %s is not a directory", sourceDir)
	}

	flags := os.O_WRONLY | os.O_CREATE | os.O_EXCL
	if overwrite {
		flags = os.O_WRONLY | os.O_CREATE | os.O_TRUNC
	}
	out, err := os.OpenFile(destArchivePath, flags, 0o644)
	if err != nil {
		return &toolerrors.OutputError{Cause: err}
	}
	defer out.Close()

	zw, err := zstd.NewWriter(out, zstd.WithEncoderConcurrency(runtime.NumCPU()))
	if err != nil {
		return fmt.Errorf("archive: building zstd writer: %w", err)
	}
	defer zw.Close()

	tw := tar.NewWriter(zw)
	defer tw.Close()

	logger.Info("packing storage directory", zap.String("source", sourceDir), zap.String("dest", destArchivePath))

	entries := 0
	err = filepath.Walk(sourceDir, func(path string, info os.FileInfo, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		rel, err := filepath.Rel(sourceDir, path)
		if err != nil {
			return err
		}
		if rel == "." {
			return nil
		}
		hdr, err := tar.FileInfoHeader(info, "")
		if err != nil {
			return err
		}
		hdr.Name = filepath.ToSlash(rel)

		if err := tw.WriteHeader(hdr); err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()
		if _, err := io.Copy(tw, f); err != nil {
			return err
		}
		entries++
		return nil
	})
	if err != nil {
		return fmt.Errorf("archive: packing %s: %w", sourceDir, err)
	}

	if err := tw.Close(); err != nil {
		return err
	}
	if err := zw.Close(); err != nil {
		return err
	}
	logger.Info("pack complete", zap.Int("entries", entries))
	return nil
}

// UnpackFile decompresses and untars a local archive file into destDir.
// destDir must not exist yet; it is created by the unpack.
func UnpackFile(ctx context.Context, archivePath, destDir string, logger *zap.Logger) error {
	f, err := os.Open(archivePath)
	if err != nil {
		return &toolerrors.OutputError{Cause: err}
	}
	defer f.Close()
	return unpackStream(ctx, f, destDir, logger)
}

// UnpackURL streams an archive directly from an HTTP(S) URL into destDir
// without staging the compressed file to disk first.
func UnpackURL(ctx context.Context, rawURL, destDir string, logger *zap.Logger) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("archive: invalid url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("archive: unsupported url scheme %q, want http or https", u.Scheme)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("archive: fetching %s: %w", rawURL, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("archive: fetching %s: unexpected status %s", rawURL, resp.Status)
	}
	return unpackStream(ctx, resp.Body, destDir, logger)
}

func unpackStream(ctx context.Context, r io.Reader, destDir string, logger *zap.Logger) error {
	if logger == nil {
		logger = zap.NewNop()
	}

	if _, err := os.Stat(destDir); err == nil {
		return &toolerrors.OutputError{Cause: kv.ErrAlreadyExists}
	} else if !os.IsNotExist(err) {
		return &toolerrors.OutputError{Cause: err}
	}
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return &toolerrors.OutputError{Cause: err}
	}

	zr, err := zstd.NewReader(r, zstd.WithDecoderMaxWindow(maxDecoderWindow))
	if err != nil {
		return fmt.Errorf("archive: building zstd reader: %w", err)
	}
	defer zr.Close()

	tr := tar.NewReader(zr)
	entries := 0
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("archive: reading tar entry: %w", err)
		}

		target := filepath.Join(destDir, filepath.FromSlash(hdr.Name))
		if !strings.HasPrefix(target, filepath.Clean(destDir)+string(os.PathSeparator)) && target != filepath.Clean(destDir) {
			return fmt.Errorf("archive: entry %q escapes destination directory", hdr.Name)
		}

		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, os.FileMode(hdr.Mode)); err != nil {
				return err
			}
		case tar.TypeReg:
			if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
				return err
			}
			out, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, os.FileMode(hdr.Mode))
			if err != nil {
				return err
			}
			if _, err := io.Copy(out, tr); err != nil {
				out.Close()
				return err
			}
			out.Close()
			entries++
		}
	}
	logger.Info("unpack complete", zap.Int("entries", entries), zap.String("dest", destDir))
	return nil
}
