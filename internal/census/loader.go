package census

import (
	"context"
	"fmt"
	"time"

	"github.com/JonMunkholm/census/internal/archive"
	"github.com/JonMunkholm/census/internal/logging"
	"github.com/google/uuid"
)

// Defaults used when a Loader is built without explicit locations.
const (
	DefaultArchivePath = "/home/jovyan/work/data/jp_pop.tar.gz"
	DefaultMember      = "jp_pop.csv"
)

// Loader reads the census table from a tar archive.
type Loader struct {
	ArchivePath string
	Member      string

	// Archive reads the member. Nil uses a zero archive.Reader.
	Archive *archive.Reader
}

// NewLoader returns a Loader for the given archive and member, falling back
// to DefaultArchivePath and DefaultMember for empty arguments.
func NewLoader(archivePath, member string) *Loader {
	if archivePath == "" {
		archivePath = DefaultArchivePath
	}
	if member == "" {
		member = DefaultMember
	}
	return &Loader{ArchivePath: archivePath, Member: member}
}

// Load reads the member from the archive and parses it into a Table. Each
// call gets a fresh load ID, logged with the load and returned by
// Table.LoadID.
// Archive errors are returned wrapped, so errors.Is still matches the
// archive package sentinels.
func (l *Loader) Load(ctx context.Context) (*Table, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	loadID := uuid.New()
	logger := logging.WithFields(ctx,
		"load_id", loadID.String(),
		"archive", l.ArchivePath,
		"member", l.Member,
	)
	start := time.Now()

	m, err := l.Archive.Open(l.ArchivePath, l.Member)
	if err != nil {
		return nil, fmt.Errorf("load census: %w", err)
	}
	defer m.Close()

	t, err := ReadTable(m)
	if err != nil {
		return nil, fmt.Errorf("load census: parse %s: %w", l.Member, err)
	}

	logger.Info("census loaded",
		"rows", t.Len(),
		"columns", len(t.columns),
		"bytes", m.Size,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return t.WithLoadID(loadID), nil
}

// PrefecturePopulation loads the table and maps prefecture to population.
func (l *Loader) PrefecturePopulation(ctx context.Context) (map[string]int64, error) {
	t, err := l.Load(ctx)
	if err != nil {
		return nil, err
	}

	m, err := PopulationByPrefecture(t)
	if err != nil {
		return nil, fmt.Errorf("prefecture population: %w", err)
	}
	return m, nil
}

// LoadCensusData loads the table from the default archive location.
func LoadCensusData(ctx context.Context) (*Table, error) {
	return NewLoader("", "").Load(ctx)
}

// PrefecturePopulationMap maps prefecture to population using the default
// archive location.
func PrefecturePopulationMap(ctx context.Context) (map[string]int64, error) {
	return NewLoader("", "").PrefecturePopulation(ctx)
}
