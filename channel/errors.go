package channel

import "errors"

// Sentinel error kinds surfaced by the Channel, per the error taxonomy the
// distilled specification enumerates: a lost compare-and-swap on the
// committed flag, a mutation attempted after commit, and a dispatch that
// timed out on the connector's scheduler. EOF and malformed-message errors
// are carried as ordinary io.EOF / status.HTTPError values instead of
// sentinels here, since callers already have dedicated vocabularies for
// those (io.EOF, status.Code).
var (
	ErrCommitRace = errors.New("channel: lost the commit race")
	ErrCommitted  = errors.New("channel: response already committed")
	ErrTimeout    = errors.New("channel: dispatch timed out")
)
