// Package archive creates and extracts the archive formats used by plugin
// releases and the compress command.
package archive

import (
	"archive/tar"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zip"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Format is an archive container plus compression filter
type Format int

const (
	FormatUnknown Format = iota
	FormatZip
	FormatTar
	FormatTarGz
	FormatTarZst
	FormatTarLZ4
)

// ErrUnsupported is returned for formats this package cannot handle
var ErrUnsupported = errors.New("unsupported archive format")

func (f Format) String() string {
	switch f {
	case FormatZip:
		return "zip"
	case FormatTar:
		return "tar"
	case FormatTarGz:
		return "gz"
	case FormatTarZst:
		return "zst"
	case FormatTarLZ4:
		return "lz4"
	}
	return "unknown"
}

// Formats lists the --type names accepted by ParseFormat
var Formats = []string{"zip", "tar", "gz", "zst", "lz4"}

// ParseFormat maps a --type name to a Format
func ParseFormat(name string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "zip":
		return FormatZip, nil
	case "tar":
		return FormatTar, nil
	case "gz", "gzip", "tgz":
		return FormatTarGz, nil
	case "zst", "zstd":
		return FormatTarZst, nil
	case "lz4":
		return FormatTarLZ4, nil
	}
	return FormatUnknown, fmt.Errorf("%w: %q (supported: %s)", ErrUnsupported, name, strings.Join(Formats, ", "))
}

// DetectFormat guesses the format from a file name
func DetectFormat(name string) Format {
	lower := strings.ToLower(name)
	switch {
	case strings.HasSuffix(lower, ".zip"):
		return FormatZip
	case strings.HasSuffix(lower, ".tar.gz"), strings.HasSuffix(lower, ".tgz"):
		return FormatTarGz
	case strings.HasSuffix(lower, ".tar.zst"), strings.HasSuffix(lower, ".tzst"):
		return FormatTarZst
	case strings.HasSuffix(lower, ".tar.lz4"):
		return FormatTarLZ4
	case strings.HasSuffix(lower, ".tar"):
		return FormatTar
	}
	return FormatUnknown
}

// compressor wraps w with the format's filter. The returned closer flushes
// the filter; it does not close w.
func compressor(f Format, w io.Writer) (io.Writer, func() error, error) {
	switch f {
	case FormatTar:
		return w, func() error { return nil }, nil
	case FormatTarGz:
		gz := gzip.NewWriter(w)
		return gz, gz.Close, nil
	case FormatTarZst:
		enc, err := zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.SpeedDefault))
		if err != nil {
			return nil, nil, fmt.Errorf("zstd writer: %w", err)
		}
		return enc, enc.Close, nil
	case FormatTarLZ4:
		lw := lz4.NewWriter(w)
		return lw, lw.Close, nil
	}
	return nil, nil, fmt.Errorf("%w: %s", ErrUnsupported, f)
}

func decompressor(f Format, r io.Reader) (io.Reader, func(), error) {
	switch f {
	case FormatTar:
		return r, func() {}, nil
	case FormatTarGz:
		gz, err := gzip.NewReader(r)
		if err != nil {
			return nil, nil, fmt.Errorf("gzip reader: %w", err)
		}
		return gz, func() { gz.Close() }, nil
	case FormatTarZst:
		dec, err := zstd.NewReader(r)
		if err != nil {
			return nil, nil, fmt.Errorf("zstd reader: %w", err)
		}
		return dec, dec.Close, nil
	case FormatTarLZ4:
		return lz4.NewReader(r), func() {}, nil
	}
	return nil, nil, fmt.Errorf("%w: %s", ErrUnsupported, f)
}

// Create archives the file or directory src into dst
func Create(src, dst string, f Format) error {
	info, err := os.Stat(src)
	if err != nil {
		return fmt.Errorf("failed to stat %s: %w", src, err)
	}
	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", dst, err)
	}
	defer out.Close()

	root := filepath.Dir(filepath.Clean(src))
	if info.IsDir() {
		root = filepath.Clean(src)
	}
	base := filepath.Base(filepath.Clean(src))

	if f == FormatZip {
		err = createZip(out, src, root, base, info.IsDir())
	} else {
		err = createTar(out, f, src, root, base, info.IsDir())
	}
	if err != nil {
		return err
	}
	return out.Close()
}

// entryName maps path to the archive name: base/<relative path>
func entryName(root, base, path string, dir bool) (string, error) {
	if !dir {
		return base, nil
	}
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return "", err
	}
	if rel == "." {
		return base, nil
	}
	return filepath.ToSlash(filepath.Join(base, rel)), nil
}

func createTar(out io.Writer, f Format, src, root, base string, dir bool) error {
	w, closeFilter, err := compressor(f, out)
	if err != nil {
		return err
	}
	tw := tar.NewWriter(w)

	walkErr := filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		if !info.Mode().IsRegular() && !info.IsDir() {
			return nil
		}
		name, err := entryName(root, base, path, dir)
		if err != nil {
			return err
		}
		hdr, err := tar.FileInfoHeader(info, "")
		if err != nil {
			return err
		}
		hdr.Name = name
		if info.IsDir() {
			hdr.Name += "/"
		}
		if err := tw.WriteHeader(hdr); err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		return copyFileTo(tw, path)
	})
	if walkErr != nil {
		return fmt.Errorf("failed to archive %s: %w", src, walkErr)
	}
	if err := tw.Close(); err != nil {
		return fmt.Errorf("failed to finish tar: %w", err)
	}
	return closeFilter()
}

func createZip(out io.Writer, src, root, base string, dir bool) error {
	zw := zip.NewWriter(out)
	walkErr := filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		if !info.Mode().IsRegular() {
			return nil
		}
		name, err := entryName(root, base, path, dir)
		if err != nil {
			return err
		}
		hdr, err := zip.FileInfoHeader(info)
		if err != nil {
			return err
		}
		hdr.Name = name
		hdr.Method = zip.Deflate
		w, err := zw.CreateHeader(hdr)
		if err != nil {
			return err
		}
		return copyFileTo(w, path)
	})
	if walkErr != nil {
		return fmt.Errorf("failed to archive %s: %w", src, walkErr)
	}
	return zw.Close()
}

func copyFileTo(w io.Writer, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = io.Copy(w, f)
	return err
}

// Extract unpacks src into destDir and returns the extracted file paths.
// Entries that would land outside destDir are rejected.
func Extract(src, destDir string) ([]string, error) {
	f := DetectFormat(src)
	if f == FormatUnknown {
		return nil, fmt.Errorf("%w: %s", ErrUnsupported, filepath.Base(src))
	}
	if err := os.MkdirAll(destDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", destDir, err)
	}
	if f == FormatZip {
		return extractZip(src, destDir)
	}

	in, err := os.Open(src)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", src, err)
	}
	defer in.Close()

	r, closeFilter, err := decompressor(f, in)
	if err != nil {
		return nil, err
	}
	defer closeFilter()

	var files []string
	tr := tar.NewReader(r)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return files, fmt.Errorf("failed to read %s: %w", src, err)
		}
		target, err := safeJoin(destDir, hdr.Name)
		if err != nil {
			return files, err
		}
		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, 0755); err != nil {
				return files, err
			}
		case tar.TypeReg:
			if err := writeFile(target, tr, os.FileMode(hdr.Mode).Perm()); err != nil {
				return files, err
			}
			files = append(files, target)
		}
	}
	return files, nil
}

func extractZip(src, destDir string) ([]string, error) {
	zr, err := zip.OpenReader(src)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", src, err)
	}
	defer zr.Close()

	var files []string
	for _, zf := range zr.File {
		target, err := safeJoin(destDir, zf.Name)
		if err != nil {
			return files, err
		}
		if zf.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0755); err != nil {
				return files, err
			}
			continue
		}
		rc, err := zf.Open()
		if err != nil {
			return files, fmt.Errorf("failed to open %s in %s: %w", zf.Name, src, err)
		}
		err = writeFile(target, rc, zf.Mode().Perm())
		rc.Close()
		if err != nil {
			return files, err
		}
		files = append(files, target)
	}
	return files, nil
}

func safeJoin(destDir, name string) (string, error) {
	target := filepath.Join(destDir, filepath.FromSlash(name))
	rel, err := filepath.Rel(destDir, target)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("archive entry %q escapes destination", name)
	}
	return target, nil
}

func writeFile(path string, r io.Reader, mode os.FileMode) error {
	if mode == 0 {
		mode = 0644
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	out, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if _, err := io.Copy(out, r); err != nil {
		out.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return out.Close()
}
