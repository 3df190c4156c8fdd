package stararc

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"stararc/internal/extsort"
	"stararc/record"
)

// An Archive is one core data file plus any number of extension data
// files under a common root directory. The only mutable state is the
// sorted flag, owned by the archive and flipped at most once; multiple
// goroutines may open iterators, each iterator must be driven by a
// single caller.
type Archive struct {
	location   string
	core       *ArchiveFile
	extensions []*ArchiveFile

	// sortMu protects sorted and sortErr.
	sortMu  sync.Mutex
	sorted  bool
	sortErr error
}

// New assembles an archive from descriptors. location is the directory
// relative file locations resolve against.
func New(location string, core *ArchiveFile, extensions ...*ArchiveFile) *Archive {
	return &Archive{location: location, core: core, extensions: extensions}
}

// Core returns the core file descriptor.
func (a *Archive) Core() *ArchiveFile {
	return a.core
}

// Extensions returns the extension file descriptors.
func (a *Archive) Extensions() []*ArchiveFile {
	return a.extensions
}

// Location returns the archive root directory.
func (a *Archive) Location() string {
	return a.location
}

// Extension finds an extension by row type, case-insensitively. When no
// qualified row type matches, a qualified stored row type like
// ".../Distribution" also matches the bare name "Distribution".
func (a *Archive) Extension(rowType string) *ArchiveFile {
	for _, af := range a.extensions {
		if strings.EqualFold(af.RowType, rowType) {
			return af
		}
	}
	want := unqualified(rowType)
	for _, af := range a.extensions {
		if strings.EqualFold(unqualified(af.RowType), want) {
			return af
		}
	}
	return nil
}

func unqualified(rowType string) string {
	if i := strings.LastIndex(rowType, "/"); i >= 0 {
		return strings.TrimSpace(rowType[i+1:])
	}
	return rowType
}

// Iterator opens a star iterator joining each core record with all of
// its extension records. If extensions exist and no sorted companion
// files are present yet, the data files are sorted first; that happens
// at most once per archive, and a sort failure is sticky, failing every
// later open as well. replaceNulls controls whether literal null tokens
// decode as empty values.
func (a *Archive) Iterator(replaceNulls bool) (*StarIterator, error) {
	if len(a.extensions) == 0 {
		// Single stream, no alignment needed, so no sort either.
		core, err := a.core.open(a.resolve(a.core.Location), replaceNulls)
		if err != nil {
			return nil, err
		}
		return newStarIterator(core, nil), nil
	}

	if err := a.ensureSorted(); err != nil {
		return nil, err
	}

	core, err := a.core.open(a.resolve(a.core.SortedLocation()), replaceNulls)
	if err != nil {
		return nil, err
	}
	streams := make([]*extStream, 0, len(a.extensions))
	for _, af := range a.extensions {
		it, err := af.open(a.resolve(af.SortedLocation()), replaceNulls)
		if err != nil {
			core.Close()
			for _, es := range streams {
				es.it.Close()
			}
			return nil, err
		}
		streams = append(streams, &extStream{it: it})
	}
	return newStarIterator(core, streams), nil
}

// CoreIterator opens an iterator over decoded core records only,
// reading the core file in its original order. It never triggers the
// sort step.
func (a *Archive) CoreIterator(replaceNulls bool) (*record.Iterator, error) {
	return a.core.open(a.resolve(a.core.Location), replaceNulls)
}

// Sort forces the sort step now instead of on first iteration.
func (a *Archive) Sort() error {
	return a.ensureSorted()
}

// Sorted reports whether all data files have a validated sorted
// companion, either written by this process or found on disk.
func (a *Archive) Sorted() bool {
	a.sortMu.Lock()
	defer a.sortMu.Unlock()
	return a.sorted
}

// ensureSorted moves the archive from unsorted to sorted: every data
// file, core and extensions alike, gets a companion file ordered by its
// identifier column under CompareKeys. Companions already on disk are
// reused, which is what makes a second process, or a second iterator,
// skip the physical sort. Failure is recorded and returned unchanged on
// every subsequent call; the sort is never retried within a process.
func (a *Archive) ensureSorted() error {
	a.sortMu.Lock()
	defer a.sortMu.Unlock()

	if a.sorted {
		return nil
	}
	if a.sortErr != nil {
		return a.sortErr
	}

	files := append([]*ArchiveFile{a.core}, a.extensions...)
	for _, af := range files {
		dst := a.resolve(af.SortedLocation())
		if _, err := os.Stat(dst); err == nil {
			continue
		}
		err := extsort.Sort(a.resolve(af.Location), dst, af.rowConfig(), af.IDIndex, CompareKeys)
		if err != nil {
			a.sortErr = fmt.Errorf("stararc: sort %s: %w", af.Location, err)
			return a.sortErr
		}
	}
	a.sorted = true
	return nil
}

func (a *Archive) resolve(loc string) string {
	if filepath.IsAbs(loc) || a.location == "" {
		return loc
	}
	return filepath.Join(a.location, loc)
}
