// Package dispatch buffers closed usage events and delivers them in batches.
//
// Producers call Queue.Enqueue from the tool call path; it never blocks. A
// single Reporter goroutine drains the queue, runs event processors, submits
// batches to a Backend with bounded exponential backoff, and fans each
// delivered batch out to best-effort Exporters.
package dispatch
