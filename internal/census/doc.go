// Package census loads the Japanese census population table.
//
// The table ships as a CSV member inside a tar archive. A [Loader] pulls the
// member out with the archive package, parses it into a [Table] and derives
// the prefecture to population mapping:
//
//	l := census.NewLoader(cfg.Census.ArchivePath, cfg.Census.Member)
//	pop, err := l.PrefecturePopulation(ctx)
//
// # Column types
//
// [ReadTable] infers a [Kind] per column from its content. A column whose
// non-missing cells all parse as base-10 integers is [KindInt]; one whose
// cells parse as floats, or an integer column with missing cells, is
// [KindFloat] with NaN for the gaps; anything else is [KindString]. Missing
// cells are empty fields and the usual NA spellings ("NA", "N/A", "null", ...).
//
// Nothing is cached: every Load re-reads the archive.
package census
