// Package segment turns large SQL scripts into statements that fit a length budget.
//
// The pipeline is:
//   - Normalize strips comments, the NOLOGGING keyword and full-width punctuation
//   - Extract finds INSERT INTO and CREATE TABLE ... AS SELECT statements
//   - Segmenter splits every oversized statement with the value-group,
//     union-branch and column-wise strategies, in that order
//
// Everything here is pure: no I/O, no shared state. Length is measured in
// characters (runes). The scanning primitives live in pkg/sqlscan.
package segment
