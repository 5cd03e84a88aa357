package archive

import (
	"archive/tar"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/stretchr/testify/require"
)

func makeTree(t *testing.T) string {
	t.Helper()
	root := filepath.Join(t.TempDir(), "crashdetect")
	require.NoError(t, os.MkdirAll(filepath.Join(root, "include"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "crashdetect.so"), []byte("ELF plugin"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "include", "crashdetect.inc"), []byte("native GetAmxBacktrace();"), 0644))
	return root
}

func relFiles(t *testing.T, dir string, files []string) []string {
	t.Helper()
	var out []string
	for _, f := range files {
		rel, err := filepath.Rel(dir, f)
		require.NoError(t, err)
		out = append(out, filepath.ToSlash(rel))
	}
	sort.Strings(out)
	return out
}

func TestCreateExtractAllFormats(t *testing.T) {
	t.Parallel()

	src := makeTree(t)
	for _, ext := range []string{".zip", ".tar", ".tar.gz", ".tar.zst", ".tar.lz4"} {
		ext := ext
		t.Run(ext, func(t *testing.T) {
			t.Parallel()
			dir := t.TempDir()
			dst := filepath.Join(dir, "out"+ext)
			require.NoError(t, Create(src, dst, DetectFormat(dst)))

			dest := filepath.Join(dir, "x")
			files, err := Extract(dst, dest)
			require.NoError(t, err)
			require.Equal(t, []string{"crashdetect/crashdetect.so", "crashdetect/include/crashdetect.inc"}, relFiles(t, dest, files))

			data, err := os.ReadFile(filepath.Join(dest, "crashdetect", "include", "crashdetect.inc"))
			require.NoError(t, err)
			require.Equal(t, "native GetAmxBacktrace();", string(data))
		})
	}
}

func TestCreateSingleFile(t *testing.T) {
	t.Parallel()

	src := filepath.Join(makeTree(t), "crashdetect.so")
	dir := t.TempDir()
	dst := filepath.Join(dir, "plugin.tar.gz")
	require.NoError(t, Create(src, dst, FormatTarGz))

	files, err := Extract(dst, filepath.Join(dir, "x"))
	require.NoError(t, err)
	require.Equal(t, []string{"crashdetect.so"}, relFiles(t, filepath.Join(dir, "x"), files))
}

func TestExtractRejectsTraversal(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "evil.tar")
	f, err := os.Create(path)
	require.NoError(t, err)
	tw := tar.NewWriter(f)
	body := []byte("x")
	require.NoError(t, tw.WriteHeader(&tar.Header{Name: "../escape.txt", Mode: 0644, Size: int64(len(body)), Typeflag: tar.TypeReg}))
	_, err = tw.Write(body)
	require.NoError(t, err)
	require.NoError(t, tw.Close())
	require.NoError(t, f.Close())

	_, err = Extract(path, filepath.Join(dir, "x"))
	require.ErrorContains(t, err, "escapes destination")
	if _, statErr := os.Stat(filepath.Join(dir, "escape.txt")); !os.IsNotExist(statErr) {
		t.Fatal("traversal entry was written")
	}
}

func TestParseFormat(t *testing.T) {
	t.Parallel()

	f, err := ParseFormat("gz")
	require.NoError(t, err)
	require.Equal(t, FormatTarGz, f)

	_, err = ParseFormat("bz2")
	require.ErrorIs(t, err, ErrUnsupported)
	require.Equal(t, FormatUnknown, DetectFormat("plugin.rar"))
}
