package ocr

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
)

type ctxKey string

const ctxKeyContentHash ctxKey = "enrollscan.content_hash"

// WithContentHash carries the hex SHA-256 of the source image so the
// transcode cache can key artifacts by content instead of path.
func WithContentHash(ctx context.Context, hex string) context.Context {
	return context.WithValue(ctx, ctxKeyContentHash, hex)
}

func contentHashFromCtx(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(ctxKeyContentHash).(string)
	return v, ok
}

// transcodeHEIC converts a HEIC/HEIF image to JPEG. Given a cache dir and a
// content hash, the JPEG is persisted at {cacheDir}/{hashHex}.jpg and reused
// on later runs; otherwise it lands in a temp dir and cleanup removes it.
// cleanup is nil whenever the returned path is a cache artifact.
func transcodeHEIC(ctx context.Context, r Runner, logger *slog.Logger, converter, in, cacheDir, hashHex string) (string, func(), error) {
	cached := ""
	if cacheDir != "" && hashHex != "" {
		cached = filepath.Join(cacheDir, hashHex+".jpg")
		if fileExists(cached) {
			logger.Debug("ocr.heic.cache_hit", "artifact", cached)
			return cached, nil, nil
		}
		if err := os.MkdirAll(cacheDir, 0o755); err != nil {
			return "", nil, fmt.Errorf("create artifact cache: %w", err)
		}
	}

	tmpDir, err := os.MkdirTemp("", "enrollscan-heic-*")
	if err != nil {
		return "", nil, err
	}
	cleanup := func() { _ = os.RemoveAll(tmpDir) }
	tmp := filepath.Join(tmpDir, "scan.jpg")

	if err := runConverter(ctx, r, logger, converter, in, tmp); err != nil {
		cleanup()
		return "", nil, err
	}
	if !fileExists(tmp) {
		cleanup()
		return "", nil, fmt.Errorf("heic conversion produced no output")
	}

	if cached == "" {
		return tmp, cleanup, nil
	}
	if err := promoteArtifact(logger, tmp, cached); err != nil {
		cleanup()
		return "", nil, err
	}
	cleanup()
	logger.Debug("ocr.heic.cached", "artifact", cached)
	return cached, nil, nil
}

// runConverter invokes one of the supported CLI transcoders.
func runConverter(ctx context.Context, r Runner, logger *slog.Logger, converter, in, out string) error {
	var args []string
	switch converter {
	case "heif-convert", "magick":
		args = []string{in, out}
	case "sips":
		args = []string{"-s", "format", "jpeg", in, "--out", out}
	default:
		return fmt.Errorf("heic not supported: set HEIC_CONVERTER to one of: heif-convert | magick | sips")
	}
	if _, errb, err := r.Run(ctx, logger, converter, args...); err != nil {
		return fmt.Errorf("%s failed: %w: %s", converter, err, truncate(string(errb), 2<<10))
	}
	return nil
}

// promoteArtifact moves tmp into the cache. Rename fails across filesystems
// and when a concurrent run got there first; reuse theirs, otherwise copy.
func promoteArtifact(logger *slog.Logger, tmp, cached string) error {
	if err := os.Rename(tmp, cached); err == nil {
		return nil
	}
	if fileExists(cached) {
		logger.Debug("ocr.heic.cache_race", "artifact", cached)
		return nil
	}

	src, err := os.Open(tmp)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := src.Close(); cerr != nil {
			logger.Warn("ocr.heic.close_error", "file", tmp, "error", cerr)
		}
	}()

	dst, err := os.Create(cached)
	if err != nil {
		return err
	}
	if _, err := io.Copy(dst, src); err != nil {
		_ = dst.Close()
		return err
	}
	return dst.Close()
}

func fileExists(p string) bool {
	st, err := os.Stat(p)
	return err == nil && !st.IsDir()
}
