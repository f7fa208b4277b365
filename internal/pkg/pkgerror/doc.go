// Package pkgerror classifies failures by Type and Code so that handlers can
// turn them into HTTP responses without knowing where they came from.
//
// Validation errors expose their cause to the client. Server errors keep the
// cause for the logs and answer with a fixed message.
package pkgerror
