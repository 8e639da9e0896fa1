// Package importer reconciles a bulk stock import against the live
// inventory snapshot.
//
// The flow is:
//
//  1. ReadCSV (or any producer) yields Rows.
//  2. Analyze classifies each row as NEW, MATCH, or CONFLICT against a
//     snapshot. Analysis is pure and is recomputed from scratch whenever
//     the snapshot changes.
//  3. Conflicts are resolved with ResolveSplit or ResolveClassification
//     and recorded on a Session, which marks the row RESOLVED.
//  4. Session.Commit plans every accepted row, chunks the plans with Batch,
//     and dispatches one bulk_import_items action per chunk. Rows become DONE
//     per successful chunk.
//
// Quantities from an import are always deltas added to on-hand stock.
// Nothing here overwrites qty directly.
package importer
