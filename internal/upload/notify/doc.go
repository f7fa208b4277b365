// Package notify delivers progress events to the browsers watching an
// upload session, either directly over websockets or through redis so every
// instance of the service can reach its own sockets.
package notify
