// Package stararc reads star-shaped text archives: a core data file of
// anchor records accompanied by any number of extension data files whose
// rows point back at a core row through a shared identifier column.
//
// The library never loads an archive into memory. Each data file is read
// as a lazy stream of rows, and the star view is produced by a sort-merge
// join: every stream is aligned on the identifier column in a single
// forward pass, with one buffered lookahead row per extension stream.
// This requires every file to be ordered by the identifier under one
// shared bytewise comparator, so the first full iteration of an archive
// with extensions writes a sorted companion file next to each data file
// (see CompareKeys and the -sorted naming convention on ArchiveFile).
// Later iterations, and later processes, detect the companions and reuse
// them; the sort runs at most once per archive.
//
// An Archive is described either programmatically, by constructing
// ArchiveFile values, or by a descriptor.json file in the archive
// directory. Iteration comes in two flavors: Iterator joins each core
// record with all of its extension records grouped by row type, while
// CoreIterator streams decoded core records only and never triggers the
// sort step.
//
// Row-level damage does not stop iteration. A malformed row decodes to a
// placeholder record and is logged with an approximate line number; an
// extension row whose identifier matches no core record is dropped and
// counted. Only I/O failures, including a failed sort, abort an
// iteration, and those surface when the iterator is constructed.
package stararc
