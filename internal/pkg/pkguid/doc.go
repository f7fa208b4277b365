// Package pkguid provides helpers for generating unique identifiers.
//
// The codebase uses these interfaces to avoid hard-coding a specific UID
// strategy. Depending on the use case you can generate:
//   - String IDs (UUIDs) for correlation IDs and websocket sessions.
//   - Numeric IDs (Snowflake-style) for uploaded file records.
package pkguid
