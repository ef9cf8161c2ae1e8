// Package core provides the business logic for maintenance-record imports and
// expiration reporting.
//
// This package holds all domain logic independent of any transport or
// storage. Web handlers, the CLI and tests use it unchanged; persistence is
// reached only through the [Store] interface.
//
// # Import
//
// An import turns pasted or uploaded spreadsheet text into maintenance
// records:
//
//  1. [DecodeText] normalizes the file encoding (UTF-8, UTF-16, Windows-1252)
//  2. [ParseWithStats] finds the header row behind any preamble, detects the
//     delimiter and maps synonym headers to canonical fields via [FieldSynonyms]
//  3. Dates go through [NormalizeDate], amounts through [ParseMoney], and
//     [ClassifyProduct] derives hardware or software from the product name
//  4. [Service.Import] resolves vendor names against the account directory
//     and persists records with [InsertInChunks], all-or-nothing per chunk
//
// A parse that yields nothing is reported as [ErrNoRowsDetected]. A failed
// chunk is reported as [*ChunkInsertError] with the number of records that
// were already committed.
//
// # Expiration Report
//
// [BuildExpirationReport] partitions active records into five periods
// (overdue, 30, 60 and 90 days, future) and computes totals. [ExportCSV]
// serializes the unbucketed records with a fixed column set.
//
// # Error Handling
//
// Technical errors are mapped to user-friendly messages using [MapError].
// Each error category has a code for support reference:
//
//   - IMP001-IMP003: Import outcome errors
//   - FILE001-FILE004: File errors (size, empty, encoding)
//   - DB001-DB005: Database errors
//   - REQ001-REQ003: Request errors
//   - RATE001-RATE002: Throttling
//   - AUTH001: Missing user
package core
