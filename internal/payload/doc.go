// Package payload bounds the content of usage events before delivery.
//
// Sanitize replaces binary blobs with a short marker. Truncate shrinks events
// whose JSON encoding exceeds MaxEventBytes, tightening string and depth
// limits until the event fits.
package payload
