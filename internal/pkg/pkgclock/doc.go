// Package pkgclock abstracts wall-clock reads so time-driven behaviour (such
// as throttled progress reporting) can be driven deterministically in tests.
package pkgclock
