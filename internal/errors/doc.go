// Package errors defines error types for the MCPcat SDK.
//
// Only UnsupportedServerError and ConfigError ever reach the integrating
// developer. The remaining types describe instrumentation failures that are
// recovered inside the SDK and reported through logging and counters. All
// error types support unwrapping and can be checked using errors.Is,
// errors.As, and errors.AsType.
package errors
