// Package intercept installs usage-event interception on MCP servers.
//
// Interception is attached once per server through the library's own
// middleware API. The attached middleware consults an atomically swapped
// interceptor: while a Handle is active every tool call opens and closes
// exactly one usage event, and after Revert the middleware forwards calls
// untouched. Installing again on the same server re-arms the existing
// attachment instead of stacking a second wrapper.
package intercept
