package archive

import (
	"archive/tar"
	"bytes"
	"io"
	"io/fs"
	"time"
)

// Member is the content of a single archive member, fully read into memory.
//
// It implements io.ReadCloser, io.Seeker, io.ReaderAt and io.WriterTo.
// Close is a no-op: the archive the member came from is already closed.
// A Member is not safe for concurrent reads.
type Member struct {
	Name    string
	Size    int64
	Mode    fs.FileMode
	ModTime time.Time

	data []byte
	r    *bytes.Reader
}

func newMember(hdr *tar.Header, data []byte) *Member {
	return &Member{
		Name:    hdr.Name,
		Size:    int64(len(data)),
		Mode:    hdr.FileInfo().Mode(),
		ModTime: hdr.ModTime,
		data:    data,
		r:       bytes.NewReader(data),
	}
}

// Bytes returns the member's full content. The slice must not be modified.
func (m *Member) Bytes() []byte { return m.data }

func (m *Member) Read(p []byte) (int, error) { return m.r.Read(p) }

func (m *Member) ReadAt(p []byte, off int64) (int, error) { return m.r.ReadAt(p, off) }

func (m *Member) Seek(offset int64, whence int) (int64, error) { return m.r.Seek(offset, whence) }

func (m *Member) WriteTo(w io.Writer) (int64, error) { return m.r.WriteTo(w) }

// Close implements io.Closer.
func (m *Member) Close() error { return nil }
