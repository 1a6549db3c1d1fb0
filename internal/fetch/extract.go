package fetch

import (
	"archive/tar"
	"archive/zip"
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"
)

type archiveFormat int

const (
	formatTarGz archiveFormat = iota
	formatZip
)

func formatOf(url string) (archiveFormat, error) {
	name := strings.ToLower(url)
	if i := strings.IndexAny(name, "?#"); i >= 0 {
		name = name[:i]
	}
	switch {
	case strings.HasSuffix(name, ".tar.gz"), strings.HasSuffix(name, ".tgz"):
		return formatTarGz, nil
	case strings.HasSuffix(name, ".zip"):
		return formatZip, nil
	}
	return 0, fmt.Errorf("unsupported archive format: %s", url)
}

// entry is one archive member, independent of the container format.
type entry struct {
	name     string // slash separated, as stored
	mode     fs.FileMode
	linkname string
	open     func() (io.Reader, error)
}

func (e *entry) isDir() bool     { return e.mode.IsDir() }
func (e *entry) isSymlink() bool { return e.mode&fs.ModeSymlink != 0 }

// extract unpacks data into dest. When every member lives under one top-level
// directory, that directory is stripped.
func extract(format archiveFormat, data []byte, dest string) error {
	var (
		entries []*entry
		err     error
	)
	switch format {
	case formatTarGz:
		entries, err = tarEntries(data)
	case formatZip:
		entries, err = zipEntries(data)
	}
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		return errors.New("empty archive")
	}

	prefix := commonRoot(entries)
	if err := os.MkdirAll(dest, 0o755); err != nil {
		return err
	}
	for _, e := range entries {
		rel := strings.TrimPrefix(path.Clean(e.name), prefix)
		rel = strings.TrimPrefix(rel, "/")
		if rel == "" || rel == "." {
			continue
		}
		if err := writeEntry(e, dest, rel); err != nil {
			return err
		}
	}
	return nil
}

// within joins rel onto dest and rejects results outside dest.
func within(dest, rel string) (string, error) {
	if path.IsAbs(rel) || strings.Contains(rel, `\`) {
		return "", fmt.Errorf("illegal path in archive: %s", rel)
	}
	target := filepath.Join(dest, filepath.FromSlash(rel))
	r, err := filepath.Rel(dest, target)
	if err != nil || r == ".." || strings.HasPrefix(r, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("illegal path in archive: %s", rel)
	}
	return target, nil
}

// noLinkedParent rejects rel when a directory on its way below dest is a
// symlink, since an earlier entry may have pointed it anywhere.
func noLinkedParent(dest, rel string) error {
	dir := dest
	parts := strings.Split(path.Dir(rel), "/")
	for _, part := range parts {
		if part == "." {
			break
		}
		dir = filepath.Join(dir, part)
		fi, err := os.Lstat(dir)
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		if err != nil {
			return err
		}
		if fi.Mode()&fs.ModeSymlink != 0 {
			return fmt.Errorf("illegal path in archive: %s passes through symlink", rel)
		}
	}
	return nil
}

func writeEntry(e *entry, dest, rel string) error {
	target, err := within(dest, rel)
	if err != nil {
		return err
	}
	if err := noLinkedParent(dest, rel); err != nil {
		return err
	}
	switch {
	case e.isDir():
		return os.MkdirAll(target, 0o755)
	case e.isSymlink():
		link := filepath.FromSlash(e.linkname)
		if filepath.IsAbs(link) {
			return fmt.Errorf("illegal symlink in archive: %s -> %s", e.name, e.linkname)
		}
		if _, err := within(dest, path.Join(path.Dir(rel), e.linkname)); err != nil {
			return fmt.Errorf("illegal symlink in archive: %s -> %s", e.name, e.linkname)
		}
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return err
		}
		os.Remove(target)
		return os.Symlink(link, target)
	case e.mode.IsRegular():
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return err
		}
		r, err := e.open()
		if err != nil {
			return err
		}
		perm := os.FileMode(0o644)
		if e.mode&0o111 != 0 {
			perm = 0o755
		}
		if fi, err := os.Lstat(target); err == nil && fi.Mode()&fs.ModeSymlink != 0 {
			os.Remove(target)
		}
		f, err := os.OpenFile(target, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, perm)
		if err != nil {
			return err
		}
		if _, err := io.Copy(f, r); err != nil {
			f.Close()
			return err
		}
		return f.Close()
	}
	// Devices, fifos and the like carry nothing a build needs.
	return nil
}

// commonRoot returns "dir" when all entries share the single top-level
// directory dir, else "".
func commonRoot(entries []*entry) string {
	root := ""
	for _, e := range entries {
		first, _, found := strings.Cut(path.Clean(e.name), "/")
		if first == ".." || first == "." || first == "" {
			return ""
		}
		if !found && !e.isDir() {
			return "" // a file at the top level
		}
		if root == "" {
			root = first
		} else if first != root {
			return ""
		}
	}
	return root
}

func tarEntries(data []byte) ([]*entry, error) {
	zr, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("gzip: %w", err)
	}
	defer zr.Close()

	var entries []*entry
	tr := tar.NewReader(zr)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("tar: %w", err)
		}
		e := &entry{name: hdr.Name, linkname: hdr.Linkname}
		switch hdr.Typeflag {
		case tar.TypeDir:
			e.mode = fs.ModeDir | 0o755
		case tar.TypeSymlink:
			e.mode = fs.ModeSymlink | 0o777
		case tar.TypeReg:
			// The tar stream is consumed sequentially, so the content is
			// buffered here rather than re-read later.
			content, err := io.ReadAll(tr)
			if err != nil {
				return nil, fmt.Errorf("tar: %s: %w", hdr.Name, err)
			}
			e.mode = fs.FileMode(hdr.Mode).Perm()
			e.open = func() (io.Reader, error) { return bytes.NewReader(content), nil }
		case tar.TypeXGlobalHeader:
			// GitHub archives carry the commit id in a pax global header.
			continue
		default:
			e.mode = fs.ModeIrregular
		}
		entries = append(entries, e)
	}
	return entries, nil
}

func zipEntries(data []byte) ([]*entry, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("zip: %w", err)
	}
	entries := make([]*entry, 0, len(zr.File))
	for _, zf := range zr.File {
		e := &entry{name: zf.Name, mode: zf.Mode()}
		if e.isSymlink() {
			rc, err := zf.Open()
			if err != nil {
				return nil, fmt.Errorf("zip: %s: %w", zf.Name, err)
			}
			link, err := io.ReadAll(rc)
			rc.Close()
			if err != nil {
				return nil, fmt.Errorf("zip: %s: %w", zf.Name, err)
			}
			e.linkname = string(link)
		} else if strings.HasSuffix(zf.Name, "/") {
			e.mode = fs.ModeDir | 0o755
		} else {
			zf := zf
			e.open = func() (io.Reader, error) {
				rc, err := zf.Open()
				if err != nil {
					return nil, err
				}
				defer rc.Close()
				b, err := io.ReadAll(rc)
				if err != nil {
					return nil, err
				}
				return bytes.NewReader(b), nil
			}
		}
		entries = append(entries, e)
	}
	return entries, nil
}
