package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Feed sources and caches return
// these (usually wrapped) so the report service can translate them into
// domain errors without knowing which backend produced them.
//
//   - ErrNotFound: nothing stored under the key (cache miss)
//   - ErrUnavailable: the data service or datalake could not be read
var (
	ErrNotFound    = errors.New("not found")
	ErrUnavailable = errors.New("unavailable")
)
