// Package tasks runs style-transfer jobs and gallery exports with real-time progress reporting.
//
// # Core Operations
//
//  1. [TransferEngine.Submit] : one style-transfer job
//     - Reads the signed-in user's email from the session cache
//     - Generates a client id and opens its progress channel before uploading
//     - Uploads the content and style images to the backend
//     - Follows Partial events until the single Completed event
//     - Inserts the result at the gallery head, refreshes the gallery and records history
//
//  2. [TransferEngine.BulkExport] : download the whole gallery
//     - Lists every gallery page
//     - Downloads images with a rate-limited worker pool
//     - Writes an index (json, csv, markdown or txt) and an export manifest
//
// # Progress Reporting
//
// All operations use non-blocking channels for progress updates.
//
// The [ProgressUpdate] struct contains phase, step counters, messages, and optional data for advanced UI rendering.
// Updates use select with default to prevent blocking.
//
// # Transfer History
//
// The optional [TransferHistory] interface persists a local record of each job (repositories.TransferRepository).
// History errors are logged and never fail a job.
package tasks
