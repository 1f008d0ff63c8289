package channel

import (
	"fmt"
	"sync/atomic"
)

// commitResponse atomically compares-and-swaps the committed flag from
// false to true. On a win it hands info/content/complete to the
// Transport and reports (true, the Transport's own error, if any); on a
// loss it reports (false, nil) without calling the Transport at all,
// leaving the caller to decide whether either outcome is itself an
// error worth surfacing.
func (c *Channel) commitResponse(info ResponseInfo, content []byte, complete bool) (bool, error) {
	if !atomic.CompareAndSwapInt32(&c.committed, 0, 1) {
		return false, nil
	}

	return true, c.Transport.Commit(info, content, complete)
}

// write is the single funnel every response byte passes through. Once
// committed, it's a straight pass-through to Transport.Write; the first
// call builds a ResponseInfo from the Response's current state and
// attempts the commit itself. A lost race surfaces as an I/O error
// ("concurrent commit"); unlike the completion path's own commits (which
// only log a Transport failure, since nothing is left to retry or report
// to once the exchange is torn down), a handler is still in flight here
// and needs the Transport's own error, not a silent success.
func (c *Channel) write(content []byte, complete bool) error {
	if c.IsCommitted() {
		return c.Transport.Write(content, complete)
	}

	info := c.Response.NewResponseInfo()
	won, err := c.commitResponse(info, content, complete)
	if !won {
		return fmt.Errorf("channel: %w: concurrent commit", ErrCommitRace)
	}

	return err
}
