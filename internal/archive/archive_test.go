package archive

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// ============================================================================
// Test fixtures
// ============================================================================

type testEntry struct {
	name     string
	body     string
	typeflag byte
	linkname string
}

func file(name, body string) testEntry {
	return testEntry{name: name, body: body, typeflag: tar.TypeReg}
}

func dirEntry(name string) testEntry {
	return testEntry{name: name, typeflag: tar.TypeDir}
}

// buildTar returns a tar stream, gzip-compressed when gz is true.
func buildTar(t *testing.T, gz bool, entries ...testEntry) []byte {
	t.Helper()

	var buf bytes.Buffer
	var w io.Writer = &buf
	var zw *gzip.Writer
	if gz {
		zw = gzip.NewWriter(&buf)
		w = zw
	}

	tw := tar.NewWriter(w)
	for _, e := range entries {
		hdr := &tar.Header{
			Name:     e.name,
			Typeflag: e.typeflag,
			Linkname: e.linkname,
			Mode:     0o644,
			ModTime:  time.Date(2020, 10, 1, 0, 0, 0, 0, time.UTC),
		}
		if e.typeflag == tar.TypeDir {
			hdr.Mode = 0o755
		}
		if e.typeflag == tar.TypeReg {
			hdr.Size = int64(len(e.body))
		}
		if err := tw.WriteHeader(hdr); err != nil {
			t.Fatalf("write header %s: %v", e.name, err)
		}
		if e.typeflag == tar.TypeReg {
			if _, err := tw.Write([]byte(e.body)); err != nil {
				t.Fatalf("write body %s: %v", e.name, err)
			}
		}
	}
	if err := tw.Close(); err != nil {
		t.Fatalf("close tar: %v", err)
	}
	if zw != nil {
		if err := zw.Close(); err != nil {
			t.Fatalf("close gzip: %v", err)
		}
	}
	return buf.Bytes()
}

func writeArchive(t *testing.T, dir, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write archive: %v", err)
	}
	return path
}

const censusCSV = "Prefecture,Population\nTokyo,13960000\nOsaka,8823000\n"

// ============================================================================
// Open (default mode)
// ============================================================================

func TestOpen_ReturnsMemberContent(t *testing.T) {
	tests := []struct {
		name string
		gz   bool
	}{
		{"gzip", true},
		{"plain tar", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := buildTar(t, tt.gz,
				file("README", "not this one"),
				file("jp_pop.csv", censusCSV),
			)
			path := writeArchive(t, t.TempDir(), "jp_pop.tar.gz", data)

			m, err := Open(path, "jp_pop.csv")
			if err != nil {
				t.Fatalf("Open() error = %v", err)
			}
			defer m.Close()

			got, err := io.ReadAll(m)
			if err != nil {
				t.Fatalf("ReadAll() error = %v", err)
			}
			if string(got) != censusCSV {
				t.Errorf("content = %q, want %q", got, censusCSV)
			}
			if m.Size != int64(len(censusCSV)) {
				t.Errorf("Size = %d, want %d", m.Size, len(censusCSV))
			}
			if m.Name != "jp_pop.csv" {
				t.Errorf("Name = %q, want %q", m.Name, "jp_pop.csv")
			}
		})
	}
}

func TestOpen_MemberInSubdirectory(t *testing.T) {
	data := buildTar(t, true,
		dirEntry("data/"),
		file("data/jp_pop.csv", censusCSV),
	)
	path := writeArchive(t, t.TempDir(), "a.tar.gz", data)

	m, err := Open(path, "data/jp_pop.csv")
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if string(m.Bytes()) != censusCSV {
		t.Errorf("content = %q, want %q", m.Bytes(), censusCSV)
	}
}

func TestOpen_FollowsLinks(t *testing.T) {
	path := writeArchive(t, t.TempDir(), "links.tar.gz", buildTar(t, true,
		dirEntry("data/"),
		file("data/jp_pop.csv", censusCSV),
		testEntry{name: "soft.csv", typeflag: tar.TypeSymlink, linkname: "data/jp_pop.csv"},
		testEntry{name: "hard.csv", typeflag: tar.TypeLink, linkname: "data/jp_pop.csv"},
		testEntry{name: "data/sub/up.csv", typeflag: tar.TypeSymlink, linkname: "../jp_pop.csv"},
		testEntry{name: "chain.csv", typeflag: tar.TypeSymlink, linkname: "./soft.csv"},
	))

	for _, name := range []string{"soft.csv", "hard.csv", "data/sub/up.csv", "chain.csv"} {
		t.Run(name, func(t *testing.T) {
			m, err := Open(path, name)
			if err != nil {
				t.Fatalf("Open() error = %v", err)
			}
			if m.Name != name {
				t.Errorf("Name = %q, want %q", m.Name, name)
			}
			if string(m.Bytes()) != censusCSV {
				t.Errorf("content = %q, want %q", m.Bytes(), censusCSV)
			}
		})
	}
}

func TestOpen_LastDuplicateWins(t *testing.T) {
	data := buildTar(t, true,
		file("x.csv", "first"),
		file("x.csv", "second"),
	)
	path := writeArchive(t, t.TempDir(), "dup.tar.gz", data)

	m, err := Open(path, "x.csv")
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if string(m.Bytes()) != "second" {
		t.Errorf("content = %q, want %q", m.Bytes(), "second")
	}
}

func TestOpen_MemberIsRereadableAfterSeek(t *testing.T) {
	data := buildTar(t, true, file("a.txt", "hello"))
	path := writeArchive(t, t.TempDir(), "a.tar.gz", data)

	m, err := Open(path, "a.txt")
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if _, err := io.ReadAll(m); err != nil {
		t.Fatalf("first read: %v", err)
	}
	if _, err := m.Seek(0, io.SeekStart); err != nil {
		t.Fatalf("Seek() error = %v", err)
	}
	got, _ := io.ReadAll(m)
	if string(got) != "hello" {
		t.Errorf("second read = %q, want %q", got, "hello")
	}

	// Closing is a no-op and must not disturb the buffered content.
	if err := m.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
	if string(m.Bytes()) != "hello" {
		t.Errorf("Bytes() after Close = %q", m.Bytes())
	}
}

func TestOpen_Errors(t *testing.T) {
	dir := t.TempDir()
	valid := writeArchive(t, dir, "valid.tar.gz", buildTar(t, true,
		dirEntry("sub/"),
		file("a.csv", "x"),
		testEntry{name: "dangling.csv", typeflag: tar.TypeSymlink, linkname: "gone.csv"},
		testEntry{name: "outside.csv", typeflag: tar.TypeSymlink, linkname: "../a.csv"},
		testEntry{name: "loop1", typeflag: tar.TypeSymlink, linkname: "loop2"},
		testEntry{name: "loop2", typeflag: tar.TypeSymlink, linkname: "loop1"},
		testEntry{name: "subdir.csv", typeflag: tar.TypeSymlink, linkname: "sub"},
	))

	full := buildTar(t, true, file("big.csv", string(bytes.Repeat([]byte("census,"), 2000))))
	truncated := writeArchive(t, dir, "truncated.tar.gz", full[:len(full)/2])

	tests := []struct {
		name    string
		path    string
		member  string
		wantErr []error
	}{
		{
			name:    "missing archive",
			path:    filepath.Join(dir, "nope.tar.gz"),
			member:  "a.csv",
			wantErr: []error{ErrArchiveNotFound, fs.ErrNotExist},
		},
		{
			name:    "missing member",
			path:    valid,
			member:  "b.csv",
			wantErr: []error{ErrMemberNotFound, fs.ErrNotExist},
		},
		{
			name:    "directory member",
			path:    valid,
			member:  "sub",
			wantErr: []error{ErrNotRegularFile},
		},
		{
			name:    "dangling symlink",
			path:    valid,
			member:  "dangling.csv",
			wantErr: []error{ErrMemberNotFound, fs.ErrNotExist},
		},
		{
			name:    "symlink leaving the archive",
			path:    valid,
			member:  "outside.csv",
			wantErr: []error{ErrMemberNotFound},
		},
		{
			name:    "symlink loop",
			path:    valid,
			member:  "loop1",
			wantErr: []error{ErrNotRegularFile},
		},
		{
			name:    "symlink to directory",
			path:    valid,
			member:  "subdir.csv",
			wantErr: []error{ErrNotRegularFile},
		},
		{
			name:    "not an archive",
			path:    writeArchive(t, dir, "plain.txt", bytes.Repeat([]byte("not a tar file\n"), 64)),
			member:  "a.csv",
			wantErr: []error{ErrMalformedArchive},
		},
		{
			name:    "empty file",
			path:    writeArchive(t, dir, "empty.tar.gz", nil),
			member:  "a.csv",
			wantErr: []error{ErrMalformedArchive},
		},
		{
			name:    "bad gzip header",
			path:    writeArchive(t, dir, "badgz.tar.gz", []byte{0x1f, 0x8b, 0x00, 0x00}),
			member:  "a.csv",
			wantErr: []error{ErrMalformedArchive},
		},
		{
			name:    "truncated gzip",
			path:    truncated,
			member:  "big.csv",
			wantErr: []error{ErrMalformedArchive},
		},
		{
			name:    "archive path is a directory",
			path:    dir,
			member:  "a.csv",
			wantErr: []error{ErrMalformedArchive},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := Open(tt.path, tt.member)
			if err == nil {
				t.Fatalf("Open() = %v, want error", m)
			}
			for _, want := range tt.wantErr {
				if !errors.Is(err, want) {
					t.Errorf("Open() error = %v, want errors.Is(%v)", err, want)
				}
			}
		})
	}
}

func TestReader_MaxMemberSize(t *testing.T) {
	data := buildTar(t, true, file("a.csv", "0123456789"))
	path := writeArchive(t, t.TempDir(), "a.tar.gz", data)

	r := &Reader{MaxMemberSize: 4}
	if _, err := r.Open(path, "a.csv"); !errors.Is(err, ErrMemberTooLarge) {
		t.Errorf("Open() error = %v, want ErrMemberTooLarge", err)
	}

	r.MaxMemberSize = 10
	if _, err := r.Open(path, "a.csv"); err != nil {
		t.Errorf("Open() at exact limit error = %v", err)
	}
}

// ============================================================================
// ExtractAll (all mode)
// ============================================================================

func TestExtractAll_WritesEveryMember(t *testing.T) {
	dir := t.TempDir()
	path := writeArchive(t, dir, "jp_pop.tar.gz", buildTar(t, true,
		file("jp_pop.csv", censusCSV),
		dirEntry("notes/"),
		file("notes/source.txt", "e-Stat"),
	))

	got, err := ExtractAll(path, "jp_pop.csv")
	if err != nil {
		t.Fatalf("ExtractAll() error = %v", err)
	}

	want := filepath.Join(dir, "jp_pop.csv")
	if got != want {
		t.Errorf("ExtractAll() = %q, want %q", got, want)
	}

	content, err := os.ReadFile(got)
	if err != nil {
		t.Fatalf("read extracted member: %v", err)
	}
	if string(content) != censusCSV {
		t.Errorf("extracted content = %q, want %q", content, censusCSV)
	}

	notes, err := os.ReadFile(filepath.Join(dir, "notes", "source.txt"))
	if err != nil {
		t.Fatalf("read nested member: %v", err)
	}
	if string(notes) != "e-Stat" {
		t.Errorf("nested content = %q, want %q", notes, "e-Stat")
	}
}

func TestExtractAll_OverwritesExistingFiles(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "a.csv"), []byte("stale"), 0o644); err != nil {
		t.Fatal(err)
	}
	path := writeArchive(t, dir, "a.tar", buildTar(t, false, file("a.csv", "fresh")))

	got, err := ExtractAll(path, "a.csv")
	if err != nil {
		t.Fatalf("ExtractAll() error = %v", err)
	}
	content, _ := os.ReadFile(got)
	if string(content) != "fresh" {
		t.Errorf("content = %q, want %q", content, "fresh")
	}
}

func TestExtractAll_MissingMemberPathDoesNotExist(t *testing.T) {
	dir := t.TempDir()
	path := writeArchive(t, dir, "a.tar.gz", buildTar(t, true, file("a.csv", "x")))

	got, err := ExtractAll(path, "missing.csv")
	if err != nil {
		t.Fatalf("ExtractAll() error = %v", err)
	}
	if _, err := os.Stat(got); !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("Stat(%q) error = %v, want fs.ErrNotExist", got, err)
	}
}

func TestExtractAll_RejectsUnsafePaths(t *testing.T) {
	symlink := func(name, target string) testEntry {
		return testEntry{name: name, typeflag: tar.TypeSymlink, linkname: target}
	}

	tests := []struct {
		name    string
		entries []testEntry
	}{
		{"parent traversal", []testEntry{file("../escape.txt", "x")}},
		{"nested traversal", []testEntry{file("a/../../escape.txt", "x")}},
		{"absolute path", []testEntry{file("/tmp/escape.txt", "x")}},
		{"symlink out of tree", []testEntry{symlink("link", "../../etc/passwd")}},
		{"absolute symlink", []testEntry{symlink("link", "/etc/passwd")}},
		{"file through archived symlink", []testEntry{
			dirEntry("d/"),
			symlink("d/up", ".."),
			file("d/up/escape.txt", "x"),
		}},
		{"symlink chain", []testEntry{
			dirEntry("d/"),
			symlink("d/l", ".."),
			symlink("d/l/m", "../.."),
			file("d/l/m/escape.txt", "x"),
		}},
		{"directory through archived symlink", []testEntry{
			symlink("up", "."),
			dirEntry("up/sub/"),
		}},
		{"hard link through archived symlink", []testEntry{
			file("a.csv", "x"),
			dirEntry("d/"),
			symlink("d/up", ".."),
			{name: "d/up/escape.txt", typeflag: tar.TypeLink, linkname: "a.csv"},
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root := t.TempDir()
			dir := filepath.Join(root, "a", "data")
			if err := os.MkdirAll(dir, 0o755); err != nil {
				t.Fatal(err)
			}
			path := writeArchive(t, dir, "evil.tar", buildTar(t, false, tt.entries...))

			if _, err := ExtractAll(path, "escape.txt"); !errors.Is(err, ErrUnsafePath) {
				t.Fatalf("ExtractAll() error = %v, want ErrUnsafePath", err)
			}
			for _, p := range []string{
				filepath.Join(root, "escape.txt"),
				filepath.Join(root, "a", "escape.txt"),
				filepath.Join(root, "a", "sub"),
			} {
				if _, err := os.Lstat(p); !errors.Is(err, fs.ErrNotExist) {
					t.Errorf("%s written outside extraction directory", p)
				}
			}
		})
	}
}

func TestExtractAll_SymlinkInsideTreeIsKept(t *testing.T) {
	dir := t.TempDir()
	path := writeArchive(t, dir, "nested.tar", buildTar(t, false,
		dirEntry("d/"),
		file("d/a.csv", "data"),
		testEntry{name: "d/sub/up.csv", typeflag: tar.TypeSymlink, linkname: "../a.csv"},
	))

	if _, err := ExtractAll(path, "d/a.csv"); err != nil {
		t.Fatalf("ExtractAll() error = %v", err)
	}
	content, err := os.ReadFile(filepath.Join(dir, "d", "sub", "up.csv"))
	if err != nil {
		t.Fatalf("read through symlink: %v", err)
	}
	if string(content) != "data" {
		t.Errorf("content = %q, want %q", content, "data")
	}
}

func TestExtractAll_Links(t *testing.T) {
	dir := t.TempDir()
	path := writeArchive(t, dir, "links.tar", buildTar(t, false,
		file("a.csv", "data"),
		testEntry{name: "soft.csv", typeflag: tar.TypeSymlink, linkname: "a.csv"},
		testEntry{name: "hard.csv", typeflag: tar.TypeLink, linkname: "a.csv"},
	))

	if _, err := ExtractAll(path, "a.csv"); err != nil {
		t.Fatalf("ExtractAll() error = %v", err)
	}
	for _, name := range []string{"soft.csv", "hard.csv"} {
		content, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			t.Errorf("read %s: %v", name, err)
			continue
		}
		if string(content) != "data" {
			t.Errorf("%s content = %q, want %q", name, content, "data")
		}
	}
}

// ============================================================================
// Read and Mode
// ============================================================================

func TestRead_DispatchesOnMode(t *testing.T) {
	dir := t.TempDir()
	path := writeArchive(t, dir, "a.tar.gz", buildTar(t, true, file("a.csv", "x")))

	res, err := Read(path, "a.csv", ModeDefault)
	if err != nil {
		t.Fatalf("Read(default) error = %v", err)
	}
	if res.Member == nil || res.Path != "" {
		t.Errorf("Read(default) = %+v, want Member only", res)
	}

	res, err = Read(path, "a.csv", ModeAll)
	if err != nil {
		t.Fatalf("Read(all) error = %v", err)
	}
	if res.Member != nil || res.Path != filepath.Join(dir, "a.csv") {
		t.Errorf("Read(all) = %+v, want Path only", res)
	}
}

func TestRead_InvalidModeDoesNotFallThrough(t *testing.T) {
	dir := t.TempDir()
	path := writeArchive(t, dir, "a.tar.gz", buildTar(t, true, file("a.csv", "x")))

	_, err := Read(path, "a.csv", Mode(42))
	if !errors.Is(err, ErrInvalidMode) {
		t.Fatalf("Read() error = %v, want ErrInvalidMode", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "a.csv")); !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("invalid mode extracted files")
	}
}

func TestParseMode(t *testing.T) {
	tests := []struct {
		in      string
		want    Mode
		wantErr bool
	}{
		{"", ModeDefault, false},
		{"default", ModeDefault, false},
		{"all", ModeAll, false},
		{" ALL ", ModeAll, false},
		{"some", 0, true},
		{"extract", 0, true},
	}

	for _, tt := range tests {
		got, err := ParseMode(tt.in)
		if tt.wantErr {
			if !errors.Is(err, ErrInvalidMode) {
				t.Errorf("ParseMode(%q) error = %v, want ErrInvalidMode", tt.in, err)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseMode(%q) error = %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseMode(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestMode_String(t *testing.T) {
	if ModeDefault.String() != "default" || ModeAll.String() != "all" {
		t.Errorf("String() = %q, %q", ModeDefault, ModeAll)
	}
	if Mode(9).Valid() {
		t.Error("Mode(9).Valid() = true")
	}
}
