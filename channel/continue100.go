package channel

import (
	"fmt"
	"sync/atomic"

	"github.com/duskhttp/dusk/http/status"
	"github.com/duskhttp/dusk/kv"
)

// Continue100 implements the 100-continue protocol: called when the
// application first asks for the request's input stream. If the client
// never asked for one (expectContinue false), it's a no-op. Otherwise the
// expectation is cleared unconditionally, and — only if no body bytes
// have arrived yet and nothing has been committed — a bare 100 Continue
// is sent ahead of the real response.
//
// A 100 Continue is interim, not the response itself (RFC 9110 §15.2.1),
// so sending one does not consume the request's one real commit: it
// bypasses commitResponse's CAS entirely and goes straight to the
// Transport, guarded by its own, separate continueSent CAS instead. The
// real final response still reaches Transport.Commit exactly once,
// later, through the ordinary write() path. Losing either race — the
// response already committed, or two callers racing continue_100 itself
// — is reported as an error, matching spec's "failure to win the commit
// race raises an I/O error".
func (c *Channel) Continue100(availableBytes int) error {
	if !c.expectContinue {
		return nil
	}

	c.expectContinue = false

	if availableBytes != 0 {
		return nil
	}

	if c.IsCommitted() {
		return fmt.Errorf("channel: %w: response already committed", ErrCommitted)
	}

	if !atomic.CompareAndSwapInt32(&c.continueSent, 0, 1) {
		return fmt.Errorf("channel: %w: could not commit 100 Continue", ErrCommitRace)
	}

	info := ResponseInfo{
		Version:       c.Request.Version,
		Headers:       kv.New(),
		ContentLength: 0,
		Status:        status.Continue,
		Reason:        string(status.Text(status.Continue)),
		IsHead:        false,
	}

	if err := c.Transport.Commit(info, nil, false); err != nil {
		c.logf("channel: transport commit: %v", err)
	}

	return nil
}
