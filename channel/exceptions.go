package channel

import (
	"fmt"

	"github.com/duskhttp/dusk/http/status"
	"github.com/duskhttp/dusk/http/version"
	"github.com/duskhttp/dusk/kv"
)

// handleException implements spec's handle_exception. If the State was
// already suspended when err arrived — the application handed off and a
// later dispatch (or a background thread it spawned) is the one
// reporting the failure — a direct synthetic 500 is committed, bypassing
// the Router's error page and the Response output stream entirely, since
// either may be concurrently in use by whatever the application is still
// doing with them. Otherwise the dispatch loop still owns the Request and
// Response outright, so the standard error attributes are set and
// Response.SendError is given the chance to render a real page.
func (c *Channel) handleException(err error) {
	if c.State.IsSuspended() {
		info := ResponseInfo{
			Version:       version.HTTP11,
			Headers:       kv.New(),
			ContentLength: 0,
			Status:        status.InternalServerError,
			Reason:        string(status.Text(status.InternalServerError)),
			IsHead:        false,
		}
		if won, commitErr := c.commitResponse(info, nil, true); !won {
			c.logf("channel: handle_exception: dropped %v, already committed", err)
		} else if commitErr != nil {
			c.logf("channel: handle_exception: transport commit: %v", commitErr)
		}
		return
	}

	c.Request.SetAttribute("error.exception", err)
	c.Request.SetAttribute("error.type", fmt.Sprintf("%T", err))

	if sendErr := c.Response.SendError(status.InternalServerError, err.Error()); sendErr != nil {
		c.logf("channel: handle_exception: send_error failed: %v", sendErr)
	}
}
