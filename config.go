// Path and database location resolution.
//
// Two environment variables govern where the journal lives and which
// module tag a command stamps into the records it appends. Both have the
// simple "read one scalar, fall back to a default" shape of a getenv
// call — there is no nesting, no file format, and no validation beyond a
// default, so this stays on os.Getenv rather than pulling in a config
// library for two strings.
package txn

import (
	"fmt"
	"os"
	"path/filepath"
)

const (
	// EnvDatabaseDir names the environment variable that overrides the
	// database directory.
	EnvDatabaseDir = "TXN_INSTALL_DB"

	// EnvModule names the environment variable that supplies the
	// module tag stamped into records appended by this process.
	EnvModule = "TXN_INSTALL_MODULE"

	// DefaultDatabaseDir is used when EnvDatabaseDir is unset.
	DefaultDatabaseDir = "/var/lib/txn"

	// DefaultModule is used when EnvModule is unset.
	DefaultModule = "unknown"

	// indexFilename is the journal's filename within the database
	// directory.
	indexFilename = "txn.index"
)

// DatabaseDir resolves the database directory from the environment.
func DatabaseDir() string {
	if dir := os.Getenv(EnvDatabaseDir); dir != "" {
		return dir
	}
	return DefaultDatabaseDir
}

// IndexPath resolves the journal file path within dir.
func IndexPath(dir string) string {
	return filepath.Join(dir, indexFilename)
}

// Module resolves the module tag from the environment.
func Module() string {
	if m := os.Getenv(EnvModule); m != "" {
		return m
	}
	return DefaultModule
}

// SidecarPath returns the path of the sidecar file backing the record
// at the given serial, within dir.
func SidecarPath(dir string, serial uint64) string {
	return filepath.Join(dir, fmt.Sprintf("txn.%0*d", serialWidth, serial))
}
