package packager

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/bundlectl/bundlectl/pkg/descriptor"
)

// ArchiveExtension is the extension of bundle archives.
const ArchiveExtension = ".tgz"

// DefaultOutputDir is used when Options.OutputDir is empty.
const DefaultOutputDir = "dist"

// ErrNoFiles is returned when every file of the bundle directory is excluded.
var ErrNoFiles = errors.New("no files to pack")

// Options configures Pack.
type Options struct {
	// Dir is the bundle directory.
	Dir string

	// OutputDir receives the archive. Relative paths are resolved against
	// Dir. The directory itself is never packed.
	OutputDir string

	// Exclude holds filepath.Match patterns tested against both the base
	// name and the slash-separated relative path of every entry.
	Exclude []string

	// Bundle supplies the archive name and version.
	Bundle *descriptor.Bundle

	Logger zerolog.Logger
}

// Artifact describes a written archive.
type Artifact struct {
	Path   string   `json:"path"`
	Digest string   `json:"digest"`
	Size   int64    `json:"size"`
	Files  []string `json:"files"`
}

// ArchiveName returns <name>-<version>.tgz for a bundle.
func ArchiveName(b *descriptor.Bundle) string {
	return fmt.Sprintf("%s-%s%s", b.Name, b.Version, ArchiveExtension)
}

// Pack writes the bundle directory to a gzip'd tar archive. Entries are
// written in lexical order with zeroed timestamps and ownership, so the same
// files always produce the same digest.
func Pack(ctx context.Context, opts Options) (*Artifact, error) {
	if opts.Bundle == nil {
		return nil, fmt.Errorf("bundle is required")
	}
	if opts.Dir == "" {
		opts.Dir = "."
	}

	dir, err := filepath.Abs(opts.Dir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve bundle directory: %w", err)
	}
	outDir := opts.OutputDir
	if outDir == "" {
		outDir = DefaultOutputDir
	}
	if !filepath.IsAbs(outDir) {
		outDir = filepath.Join(dir, outDir)
	}

	files, err := collectFiles(ctx, dir, outDir, opts.Exclude)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, ErrNoFiles
	}

	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	target := filepath.Join(outDir, ArchiveName(opts.Bundle))
	tmp, err := os.CreateTemp(outDir, ".pack-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create archive: %w", err)
	}
	defer os.Remove(tmp.Name())

	hash := sha256.New()
	counter := &countingWriter{}
	if err := writeArchive(ctx, io.MultiWriter(tmp, hash, counter), dir, files); err != nil {
		tmp.Close()
		return nil, err
	}
	if err := tmp.Close(); err != nil {
		return nil, fmt.Errorf("failed to close archive: %w", err)
	}
	if err := os.Rename(tmp.Name(), target); err != nil {
		return nil, fmt.Errorf("failed to move archive into place: %w", err)
	}

	artifact := &Artifact{
		Path:   target,
		Digest: fmt.Sprintf("%x", hash.Sum(nil)),
		Size:   counter.n,
		Files:  files,
	}

	opts.Logger.Debug().
		Str("archive", artifact.Path).
		Str("digest", artifact.Digest).
		Int("files", len(files)).
		Msg("Bundle packed")

	return artifact, nil
}

// collectFiles returns the slash-separated relative paths of the regular
// files below dir, sorted.
func collectFiles(ctx context.Context, dir, outDir string, exclude []string) ([]string, error) {
	var files []string

	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if path == dir {
			return nil
		}

		if d.IsDir() && path == outDir {
			return filepath.SkipDir
		}

		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)

		if excluded(rel, exclude) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.Type().IsRegular() {
			files = append(files, rel)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk bundle directory: %w", err)
	}

	sort.Strings(files)
	return files, nil
}

func excluded(rel string, patterns []string) bool {
	base := rel
	if i := strings.LastIndex(rel, "/"); i >= 0 {
		base = rel[i+1:]
	}
	for _, pattern := range patterns {
		if ok, _ := filepath.Match(pattern, base); ok {
			return true
		}
		if ok, _ := filepath.Match(pattern, rel); ok {
			return true
		}
	}
	return false
}

func writeArchive(ctx context.Context, w io.Writer, dir string, files []string) error {
	gz := gzip.NewWriter(w)
	tw := tar.NewWriter(gz)

	for _, rel := range files {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := addFile(tw, dir, rel); err != nil {
			return fmt.Errorf("failed to add %s: %w", rel, err)
		}
	}

	if err := tw.Close(); err != nil {
		return fmt.Errorf("failed to finish tar stream: %w", err)
	}
	if err := gz.Close(); err != nil {
		return fmt.Errorf("failed to finish gzip stream: %w", err)
	}
	return nil
}

func addFile(tw *tar.Writer, dir, rel string) error {
	f, err := os.Open(filepath.Join(dir, filepath.FromSlash(rel)))
	if err != nil {
		return err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return err
	}

	mode := int64(0o644)
	if info.Mode().Perm()&0o111 != 0 {
		mode = 0o755
	}

	hdr := &tar.Header{
		Typeflag: tar.TypeReg,
		Name:     rel,
		Mode:     mode,
		Size:     info.Size(),
		ModTime:  time.Unix(0, 0),
		Format:   tar.FormatPAX,
	}
	if err := tw.WriteHeader(hdr); err != nil {
		return err
	}
	_, err = io.Copy(tw, f)
	return err
}

// List returns the entry names of an archive written by Pack.
func List(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open archive: %w", err)
	}
	defer f.Close()

	gz, err := gzip.NewReader(f)
	if err != nil {
		return nil, fmt.Errorf("failed to read gzip stream: %w", err)
	}
	defer gz.Close()

	var names []string
	tr := tar.NewReader(gz)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read tar entry: %w", err)
		}
		names = append(names, hdr.Name)
	}
	return names, nil
}

// Digest returns the sha256 hex digest of a file.
func Digest(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	hash := sha256.New()
	if _, err := io.Copy(hash, f); err != nil {
		return "", err
	}
	return fmt.Sprintf("%x", hash.Sum(nil)), nil
}

type countingWriter struct {
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	c.n += int64(len(p))
	return len(p), nil
}
