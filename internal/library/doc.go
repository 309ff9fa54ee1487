// Package library coordinates the three stores that make up the prompt
// library: markdown files on disk, the chromem vector collection, and
// the JSON catalog.
//
// The filesystem is authoritative. Every operation performs its file
// work first and treats vector and catalog updates as best-effort
// derived state: their failures are logged and the operation still
// succeeds. A full reindex rebuilds the vector collection from the
// files alone, and the DriftMonitor triggers one automatically when the
// document count on disk stops matching the collection.
package library
