// Package cache archives cached directories between builds as
// zstd-compressed tarballs keyed by BLAKE3 hashes.
package cache

import (
	"archive/tar"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/klauspost/compress/zstd"
	"github.com/zeebo/blake3"

	"github.com/snowman2/cimatrix/internal/domain"
)

// Ensure Store implements domain.CacheStore.
var _ domain.CacheStore = (*Store)(nil)

// Store keeps archives under a directory, one file per key.
type Store struct {
	dir string
}

// New creates a Store rooted at dir.
func New(dir string) *Store {
	return &Store{dir: dir}
}

// Key hashes the job OS, its env entries and the declared directories.
// Two jobs with the same key share their cache, whatever checkout they
// run in.
func (s *Store) Key(job domain.Job, declared []string) string {
	h := blake3.New()
	_, _ = fmt.Fprintf(h, "os=%s\n", job.OS)
	for _, e := range job.GlobalEnv {
		_, _ = fmt.Fprintf(h, "global=%s\n", e.Key())
	}
	_, _ = fmt.Fprintf(h, "env=%s\n", job.Env.Key())
	for _, d := range declared {
		_, _ = fmt.Fprintf(h, "dir=%s\n", d)
	}
	return hex.EncodeToString(h.Sum(nil)[:16])
}

// Path returns the archive path of key.
func (s *Store) Path(key string) string {
	return filepath.Join(s.dir, key+".tar.zst")
}

// Save archives dirs under key, replacing any previous archive.
func (s *Store) Save(key string, dirs []string) error {
	if err := os.MkdirAll(s.dir, 0o750); err != nil {
		return fmt.Errorf("create cache directory: %w", err)
	}

	tmp, err := os.CreateTemp(s.dir, key+".*.tmp")
	if err != nil {
		return fmt.Errorf("create cache archive: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if err := writeArchive(tmp, dirs); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close cache archive: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.Path(key)); err != nil {
		return fmt.Errorf("store cache archive: %w", err)
	}
	return nil
}

// Restore unpacks the archive of key into dirs.
func (s *Store) Restore(key string, dirs []string) (bool, error) {
	f, err := os.Open(s.Path(key))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("open cache archive: %w", err)
	}
	defer func() { _ = f.Close() }()

	if err := readArchive(f, dirs); err != nil {
		return false, err
	}
	return true, nil
}

// writeArchive writes each existing dir as entries prefixed by its index.
func writeArchive(w io.Writer, dirs []string) error {
	zw, err := zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return fmt.Errorf("create zstd writer: %w", err)
	}
	tw := tar.NewWriter(zw)

	for i, dir := range dirs {
		if _, statErr := os.Stat(dir); errors.Is(statErr, os.ErrNotExist) {
			continue
		}
		if err := addDir(tw, strconv.Itoa(i), dir); err != nil {
			_ = tw.Close()
			_ = zw.Close()
			return err
		}
	}

	if err := tw.Close(); err != nil {
		_ = zw.Close()
		return fmt.Errorf("finish tar stream: %w", err)
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("finish zstd stream: %w", err)
	}
	return nil
}

func addDir(tw *tar.Writer, prefix, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		info, err := d.Info()
		if err != nil {
			return err
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		var link string
		if info.Mode()&fs.ModeSymlink != 0 {
			if link, err = os.Readlink(path); err != nil {
				return err
			}
		} else if !info.Mode().IsRegular() && !info.IsDir() {
			return nil // Sockets, devices and pipes are not cached
		}

		hdr, err := tar.FileInfoHeader(info, link)
		if err != nil {
			return err
		}
		hdr.Name = filepath.ToSlash(filepath.Join(prefix, rel))
		if info.IsDir() {
			hdr.Name += "/"
		}
		if err := tw.WriteHeader(hdr); err != nil {
			return fmt.Errorf("write %s: %w", path, err)
		}
		if !info.Mode().IsRegular() {
			return nil
		}

		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer func() { _ = f.Close() }()
		if _, err := io.Copy(tw, f); err != nil {
			return fmt.Errorf("write %s: %w", path, err)
		}
		return nil
	})
}

// readArchive unpacks entries into dirs by their index prefix.
func readArchive(r io.Reader, dirs []string) error {
	zr, err := zstd.NewReader(r)
	if err != nil {
		return fmt.Errorf("open zstd stream: %w", err)
	}
	defer zr.Close()

	tr := tar.NewReader(zr)
	for {
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read cache archive: %w", err)
		}

		target, ok := targetPath(hdr.Name, dirs)
		if !ok {
			continue
		}
		if err := extract(tr, hdr, target); err != nil {
			return err
		}
	}
}

// targetPath maps "<index>/<rel>" to a path below dirs[index].
// Entries escaping their directory are rejected.
func targetPath(name string, dirs []string) (string, bool) {
	idxStr, rel, _ := strings.Cut(strings.TrimSuffix(name, "/"), "/")
	idx, err := strconv.Atoi(idxStr)
	if err != nil || idx < 0 || idx >= len(dirs) {
		return "", false
	}
	if rel != "" && !filepath.IsLocal(filepath.FromSlash(rel)) {
		return "", false
	}
	return filepath.Join(dirs[idx], filepath.FromSlash(rel)), true
}

func extract(tr *tar.Reader, hdr *tar.Header, target string) error {
	mode := hdr.FileInfo().Mode()
	switch hdr.Typeflag {
	case tar.TypeDir:
		return os.MkdirAll(target, mode.Perm()|0o700)
	case tar.TypeSymlink:
		if err := os.MkdirAll(filepath.Dir(target), 0o750); err != nil {
			return err
		}
		_ = os.Remove(target)
		return os.Symlink(hdr.Linkname, target)
	case tar.TypeReg:
		if err := os.MkdirAll(filepath.Dir(target), 0o750); err != nil {
			return err
		}
		f, err := os.OpenFile(target, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, mode.Perm())
		if err != nil {
			return fmt.Errorf("restore %s: %w", target, err)
		}
		if _, err := io.Copy(f, tr); err != nil {
			_ = f.Close()
			return fmt.Errorf("restore %s: %w", target, err)
		}
		return f.Close()
	default:
		return nil
	}
}
