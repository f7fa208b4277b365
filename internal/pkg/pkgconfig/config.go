package pkgconfig

import "io"

// Config is the read-only view of application configuration used by the
// modules. Missing keys return the zero value of the requested type, so
// callers that need to distinguish "unset" from "zero" must check IsSet.
type Config interface {
	io.Closer

	IsSet(key string) bool
	GetInt(key string) int64
	GetBool(key string) bool
	GetFloat(key string) float64
	GetString(key string) string
	GetBinary(key string) []byte
	GetArray(key string) []string
	GetMap(key string) map[string]string
}
