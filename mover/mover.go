package mover

import (
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"drivesync/logging"
)

// PartialPrefix marks in-flight downloads in the staging folder. Such files
// are never moved.
const PartialPrefix = ".partial-"

// Result describes the move of a single staged file.
type Result struct {
	// RelPath is slash-separated and relative to the staging folder.
	RelPath     string
	Source      string
	Destination string
	Err         error
}

// Mover moves everything found in a staging folder into an output folder,
// keeping relative paths.
type Mover struct {
	staging string
	output  string
	logger  *slog.Logger
}

func New(staging, output string, logger *slog.Logger) *Mover {
	if logger == nil {
		logger = slog.Default()
	}
	return &Mover{
		staging: staging,
		output:  output,
		logger:  logging.WithOperation(logger, "mover"),
	}
}

// MoveAll moves every regular file in the staging folder. Existing files in
// the output folder are overwritten. Per-file failures are reported in the
// results; the returned error is only set when staging cannot be walked.
func (m *Mover) MoveAll() ([]Result, error) {
	var results []Result

	err := filepath.WalkDir(m.staging, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == m.staging {
				return err
			}
			m.logger.Warn("unable to read staging entry", logging.Path(path), logging.Err(err))
			return nil
		}
		if d.IsDir() || !d.Type().IsRegular() || strings.HasPrefix(d.Name(), PartialPrefix) {
			return nil
		}

		rel, err := filepath.Rel(m.staging, path)
		if err != nil {
			return err
		}
		dst := filepath.Join(m.output, rel)

		res := Result{RelPath: filepath.ToSlash(rel), Source: path, Destination: dst}
		if res.Err = moveFile(path, dst); res.Err != nil {
			m.logger.Error("failed to move file", logging.Path(res.RelPath), logging.Err(res.Err))
		} else {
			m.logger.Debug("moved file", logging.Path(res.RelPath), slog.String("destination", dst))
		}
		results = append(results, res)
		return nil
	})
	if err != nil {
		return results, fmt.Errorf("failed to walk staging folder %s: %w", m.staging, err)
	}

	m.pruneEmptyDirs()
	return results, nil
}

func (m *Mover) pruneEmptyDirs() {
	var dirs []string
	_ = filepath.WalkDir(m.staging, func(path string, d fs.DirEntry, err error) error {
		if err == nil && d.IsDir() && path != m.staging {
			dirs = append(dirs, path)
		}
		return nil
	})

	// deepest first
	sort.Slice(dirs, func(i, j int) bool { return len(dirs[i]) > len(dirs[j]) })
	for _, dir := range dirs {
		entries, err := os.ReadDir(dir)
		if err == nil && len(entries) == 0 {
			os.Remove(dir)
		}
	}
}

func moveFile(src, dst string) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	if info, err := os.Stat(dst); err == nil {
		if info.IsDir() {
			return fmt.Errorf("destination %s is a directory", dst)
		}
		if err := os.Remove(dst); err != nil {
			return fmt.Errorf("failed to replace existing file: %w", err)
		}
	}

	renameErr := os.Rename(src, dst)
	if renameErr == nil {
		return nil
	}

	// staging and output may live on different filesystems
	if err := copyFile(src, dst); err != nil {
		return errors.Join(renameErr, err)
	}
	if err := os.Remove(src); err != nil {
		return fmt.Errorf("copied but failed to remove staged file: %w", err)
	}
	return nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return err
	}

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(dst)
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}
	return os.Chtimes(dst, info.ModTime(), info.ModTime())
}

// FileMD5 returns the hex MD5 digest of a file, the same form Drive reports
// in md5Checksum.
func FileMD5(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := md5.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("failed to hash %s: %w", path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
