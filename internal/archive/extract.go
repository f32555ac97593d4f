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

	"github.com/google/renameio/v2"
)

// ExtractAll writes every member of the archive into the directory that
// contains archivePath and returns filepath.Join(thatDir, member).
//
// Existing files with the same names are replaced. Each file is written to a
// temporary name, synced and renamed into place, so a failed extraction never
// leaves a half-written member behind. The returned path is not checked: if
// member was not in the archive, opening the path fails with fs.ErrNotExist.
func (r *Reader) ExtractAll(archivePath, member string) (string, error) {
	dir := filepath.Dir(archivePath)

	ts, err := openTar(archivePath)
	if err != nil {
		return "", err
	}
	defer ts.Close()

	var files, skipped int
	for {
		hdr, err := ts.next(archivePath)
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", err
		}

		wrote, err := r.extractEntry(dir, hdr, ts.tr)
		if err != nil {
			return "", fmt.Errorf("extract %q from %s: %w", hdr.Name, archivePath, err)
		}
		if wrote {
			files++
		} else {
			skipped++
		}
	}

	r.logger().Debug("archive extracted",
		"archive", archivePath,
		"dir", dir,
		"entries", files,
		"skipped", skipped,
	)

	return filepath.Join(dir, member), nil
}

// extractEntry materializes one header under dir. It reports false for
// entry types that are skipped.
func (r *Reader) extractEntry(dir string, hdr *tar.Header, src io.Reader) (bool, error) {
	rel, err := confine(hdr.Name)
	if err != nil {
		return false, err
	}
	if rel == "." {
		return false, nil
	}
	target := filepath.Join(dir, rel)

	switch hdr.Typeflag {
	case tar.TypeDir:
		if err := checkNoSymlinks(dir, rel, true); err != nil {
			return false, err
		}
		if err := os.MkdirAll(target, 0o755); err != nil {
			return false, fmt.Errorf("create directory: %w", err)
		}
		return true, nil

	case tar.TypeReg:
		if limit := r.maxMemberSize(); hdr.Size > limit {
			return false, fmt.Errorf("%w: %d bytes (limit %d)", ErrMemberTooLarge, hdr.Size, limit)
		}
		if err := checkNoSymlinks(dir, rel, false); err != nil {
			return false, err
		}
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return false, fmt.Errorf("create parent directory: %w", err)
		}
		if err := writeMember(target, src, hdr); err != nil {
			return false, err
		}
		return true, nil

	case tar.TypeSymlink:
		if filepath.IsAbs(hdr.Linkname) {
			return false, fmt.Errorf("%w: symlink to absolute path %q", ErrUnsafePath, hdr.Linkname)
		}
		if _, err := confine(filepath.Join(filepath.Dir(rel), hdr.Linkname)); err != nil {
			return false, err
		}
		if err := checkNoSymlinks(dir, rel, false); err != nil {
			return false, err
		}
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return false, fmt.Errorf("create parent directory: %w", err)
		}
		if err := replaceWith(target, func() error { return os.Symlink(hdr.Linkname, target) }); err != nil {
			return false, fmt.Errorf("create symlink: %w", err)
		}
		return true, nil

	case tar.TypeLink:
		linkRel, err := confine(hdr.Linkname)
		if err != nil {
			return false, err
		}
		if err := checkNoSymlinks(dir, linkRel, false); err != nil {
			return false, err
		}
		if err := checkNoSymlinks(dir, rel, false); err != nil {
			return false, err
		}
		source := filepath.Join(dir, linkRel)
		if err := replaceWith(target, func() error { return os.Link(source, target) }); err != nil {
			return false, fmt.Errorf("create hard link: %w", err)
		}
		return true, nil

	default:
		r.logger().Debug("skipping archive entry",
			"name", hdr.Name,
			"type", string(hdr.Typeflag),
		)
		return false, nil
	}
}

// writeMember copies src to target atomically and applies the header's
// permissions and modification time.
func writeMember(target string, src io.Reader, hdr *tar.Header) error {
	perm := hdr.FileInfo().Mode().Perm()
	if perm == 0 {
		perm = 0o644
	}

	pf, err := renameio.NewPendingFile(target, renameio.WithPermissions(perm))
	if err != nil {
		return fmt.Errorf("create pending file: %w", err)
	}
	defer pf.Cleanup()

	if _, err := io.Copy(pf, src); err != nil {
		return fmt.Errorf("write %s: %w", target, err)
	}
	if err := pf.CloseAtomicallyReplace(); err != nil {
		return fmt.Errorf("replace %s: %w", target, err)
	}

	if !hdr.ModTime.IsZero() {
		// Best effort; the content is already in place.
		_ = os.Chtimes(target, hdr.ModTime, hdr.ModTime)
	}
	return nil
}

// replaceWith removes whatever is at target and runs create.
func replaceWith(target string, create func() error) error {
	if err := os.Remove(target); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return create()
}

// confine cleans a member name and rejects names that are absolute or climb
// out of the extraction directory. The result is relative.
func confine(name string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(name))
	if filepath.IsAbs(clean) || strings.HasPrefix(name, "/") {
		return "", fmt.Errorf("%w: absolute path %q", ErrUnsafePath, name)
	}
	if clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: path traversal %q", ErrUnsafePath, name)
	}
	return clean, nil
}

// checkNoSymlinks fails when a component of rel that already exists under
// dir is a symlink. The last component is checked only when includeLast is
// set. Nothing is written through a link, so a link planted by an earlier
// entry cannot redirect a later one outside dir.
func checkNoSymlinks(dir, rel string, includeLast bool) error {
	parts := strings.Split(rel, string(filepath.Separator))
	if !includeLast {
		parts = parts[:len(parts)-1]
	}

	cur := dir
	for _, p := range parts {
		cur = filepath.Join(cur, p)
		fi, err := os.Lstat(cur)
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		if err != nil {
			return err
		}
		if fi.Mode()&fs.ModeSymlink != 0 {
			return fmt.Errorf("%w: %q passes through symlink %q", ErrUnsafePath, rel, cur)
		}
	}
	return nil
}
