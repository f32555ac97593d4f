package archive

import (
	"archive/tar"
	"bufio"
	"bytes"
	"compress/bzip2"
	"compress/gzip"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"strings"
)

// DefaultMaxMemberSize bounds a single member's decompressed size when
// Reader.MaxMemberSize is unset.
const DefaultMaxMemberSize int64 = 1 << 30

var (
	gzipMagic  = []byte{0x1f, 0x8b}
	bzip2Magic = []byte("BZh")
)

// Reader reads members from tar archives. The zero value is ready to use.
type Reader struct {
	// MaxMemberSize is the largest member, in bytes, that will be read into
	// memory or written to disk. Zero means DefaultMaxMemberSize.
	MaxMemberSize int64

	// Logger receives debug output. Nil means slog.Default().
	Logger *slog.Logger
}

// Result is what Read returns. Exactly one of Path and Member is set,
// depending on Mode.
type Result struct {
	Mode   Mode
	Path   string  // ModeAll
	Member *Member // ModeDefault
}

var defaultReader = &Reader{}

// Read reads member from the archive at archivePath using the default Reader.
func Read(archivePath, member string, mode Mode) (Result, error) {
	return defaultReader.Read(archivePath, member, mode)
}

// Open reads member into memory using the default Reader.
func Open(archivePath, member string) (*Member, error) {
	return defaultReader.Open(archivePath, member)
}

// ExtractAll extracts the archive next to itself using the default Reader.
func ExtractAll(archivePath, member string) (string, error) {
	return defaultReader.ExtractAll(archivePath, member)
}

// Read dispatches on mode. ModeDefault behaves like Open, ModeAll like
// ExtractAll. Any other mode fails with ErrInvalidMode without touching the
// archive.
func (r *Reader) Read(archivePath, member string, mode Mode) (Result, error) {
	switch mode {
	case ModeDefault:
		m, err := r.Open(archivePath, member)
		if err != nil {
			return Result{}, err
		}
		return Result{Mode: mode, Member: m}, nil
	case ModeAll:
		p, err := r.ExtractAll(archivePath, member)
		if err != nil {
			return Result{}, err
		}
		return Result{Mode: mode, Path: p}, nil
	default:
		return Result{}, fmt.Errorf("read %s: %w: %v", archivePath, ErrInvalidMode, mode)
	}
}

// maxLinkHops bounds how many link members Open follows for one call.
const maxLinkHops = 40

// Open finds member in the archive and returns a copy of its content.
//
// Member names are matched exactly, ignoring trailing slashes. If the archive
// holds the same name more than once, the last entry wins. Symlink and hard
// link members are followed to the member they name inside the archive; the
// returned Member keeps the requested name.
func (r *Reader) Open(archivePath, member string) (*Member, error) {
	name, normalize := member, false
	for hops := 0; ; hops++ {
		m, target, err := r.openEntry(archivePath, name, normalize)
		if err != nil {
			if name != member && errors.Is(err, ErrMemberNotFound) {
				return nil, fmt.Errorf("%w: %q links to missing %q in %s", ErrMemberNotFound, member, name, archivePath)
			}
			return nil, err
		}
		if m != nil {
			m.Name = member
			r.logger().Debug("archive member read",
				"archive", archivePath,
				"member", member,
				"resolved", name,
				"bytes", m.Size,
			)
			return m, nil
		}
		if hops == maxLinkHops {
			return nil, fmt.Errorf("%w: %q: too many links", ErrNotRegularFile, member)
		}
		name, normalize = target, true
	}
}

// openEntry scans the archive for the last entry called name. A regular
// file is returned as a Member. A link returns the archive name it points
// at. Link targets are compared after path.Clean.
func (r *Reader) openEntry(archivePath, name string, normalize bool) (*Member, string, error) {
	ts, err := openTar(archivePath)
	if err != nil {
		return nil, "", err
	}
	defer ts.Close()

	key := func(n string) string {
		if normalize {
			return path.Clean(memberKey(n))
		}
		return memberKey(n)
	}
	want := key(name)
	limit := r.maxMemberSize()

	var (
		found      *Member
		target     string
		notRegular bool
	)
	for {
		hdr, err := ts.next(archivePath)
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, "", err
		}
		if key(hdr.Name) != want {
			continue
		}

		found, target, notRegular = nil, "", false
		switch hdr.Typeflag {
		case tar.TypeSymlink:
			target = path.Clean(path.Join(path.Dir(memberKey(hdr.Name)), hdr.Linkname))
			continue
		case tar.TypeLink:
			target = path.Clean(hdr.Linkname)
			continue
		}
		if !hdr.FileInfo().Mode().IsRegular() {
			notRegular = true
			continue
		}
		if hdr.Size > limit {
			return nil, "", fmt.Errorf("%w: %q is %d bytes (limit %d)", ErrMemberTooLarge, name, hdr.Size, limit)
		}

		data := make([]byte, hdr.Size)
		if _, err := io.ReadFull(ts.tr, data); err != nil {
			if !errors.Is(err, ErrMalformedArchive) {
				err = fmt.Errorf("%w: %w", ErrMalformedArchive, err)
			}
			return nil, "", fmt.Errorf("read member %q from %s: %w", name, archivePath, err)
		}
		found = newMember(hdr, data)
	}

	switch {
	case found != nil:
		return found, "", nil
	case target != "":
		return nil, target, nil
	case notRegular:
		return nil, "", fmt.Errorf("%w: %q in %s", ErrNotRegularFile, name, archivePath)
	default:
		return nil, "", fmt.Errorf("%w: %q in %s", ErrMemberNotFound, name, archivePath)
	}
}

func (r *Reader) maxMemberSize() int64 {
	if r == nil || r.MaxMemberSize <= 0 {
		return DefaultMaxMemberSize
	}
	return r.MaxMemberSize
}

func (r *Reader) logger() *slog.Logger {
	if r == nil || r.Logger == nil {
		return slog.Default()
	}
	return r.Logger
}

// memberKey normalizes a member name for comparison.
func memberKey(name string) string {
	return strings.TrimRight(name, "/")
}

// tarStream is an open archive file with its decompressor and tar reader.
type tarStream struct {
	file   *os.File
	decomp io.Closer
	tr     *tar.Reader
}

// openTar opens path and sniffs its compression from the first bytes.
func openTar(path string) (*tarStream, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrArchiveNotFound, path)
		}
		return nil, fmt.Errorf("open archive %s: %w", path, err)
	}

	if fi, err := f.Stat(); err == nil && fi.IsDir() {
		f.Close()
		return nil, fmt.Errorf("%w: %s is a directory", ErrMalformedArchive, path)
	}

	br := bufio.NewReader(f)
	head, err := br.Peek(len(bzip2Magic))
	if len(head) == 0 {
		f.Close()
		if err == nil || errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: %s is empty", ErrMalformedArchive, path)
		}
		return nil, fmt.Errorf("read archive %s: %w", path, err)
	}

	ts := &tarStream{file: f}
	var src io.Reader = br
	switch {
	case bytes.HasPrefix(head, gzipMagic):
		gz, err := gzip.NewReader(br)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("%w: %s: %w", ErrMalformedArchive, path, err)
		}
		src, ts.decomp = gz, gz
	case bytes.HasPrefix(head, bzip2Magic):
		src = bzip2.NewReader(br)
	}

	ts.tr = tar.NewReader(archiveSource{src})
	return ts, nil
}

// next advances to the next header. It returns io.EOF at the end of the
// archive and ErrMalformedArchive for anything else.
func (ts *tarStream) next(path string) (*tar.Header, error) {
	hdr, err := ts.tr.Next()
	if err == io.EOF {
		return nil, io.EOF
	}
	if err != nil {
		if !errors.Is(err, ErrMalformedArchive) {
			err = fmt.Errorf("%w: %w", ErrMalformedArchive, err)
		}
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return hdr, nil
}

func (ts *tarStream) Close() error {
	var errs []error
	if ts.decomp != nil {
		errs = append(errs, ts.decomp.Close())
	}
	errs = append(errs, ts.file.Close())
	return errors.Join(errs...)
}

// archiveSource tags read failures from the compressed stream so they can
// be told apart from disk errors during extraction.
type archiveSource struct {
	r io.Reader
}

func (s archiveSource) Read(p []byte) (int, error) {
	n, err := s.r.Read(p)
	if err != nil && err != io.EOF {
		err = fmt.Errorf("%w: %w", ErrMalformedArchive, err)
	}
	return n, err
}
