package session

import "github.com/nimbus-bt/nimbus"

// Config is the tunables struct every actor in this package depends on;
// it is the root package's Config, aliased here so the rest of this
// package can refer to it without spelling out the import on every field.
type Config = nimbus.Config

// DefaultConfig mirrors the root package's DefaultConfig, for tests and
// for callers that construct a Session without loading a config file.
var DefaultConfig = nimbus.DefaultConfig
