// Package channel implements the per-connection HTTP/1.x coordinator: it
// bridges an incremental parser's push-style events to an application
// Router, drives a Response generator through a commit-once lifecycle,
// and manages the suspend/resume dance that lets a handler hand a request
// off and complete it later from another goroutine.
//
// The Channel is the parser's Sink (it implements every callback the
// parser invokes directly, as ordinary methods — see sink.go), the
// dispatch loop's single entry point (Run), and the thing that routes
// every response byte through a compare-and-swap commit.
package channel

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"sync/atomic"

	"github.com/duskhttp/dusk/config"
	"github.com/duskhttp/dusk/http/status"
)

// Channel owns exactly one Request, one Response and one State for the
// life of its connection; it borrows, without owning, a Connector, a
// Config, an Endpoint, a Transport and a Router. It is reused across every
// request a persistent connection carries via Reset.
type Channel struct {
	Request  *Request
	Response *Response
	State    *State

	Connector Connector
	Config    *config.Config
	Endpoint  Endpoint
	Transport Transport
	Router    Router

	Logger *log.Logger

	// committed transitions 0->1 exactly once per request, guarded by a
	// CAS; no response byte may reach the Transport before it does.
	committed int32
	// completedOnce guards against sending the transport's finalising
	// write twice, whether it arrives via Response.Complete or via a
	// single-shot builder (Bytes/String/JSON/SendError) that already
	// passed complete=true itself.
	completedOnce int32
	// continueSent guards continue_100's own informational commit: a 100
	// Continue status line is interim, per HTTP semantics, and does not
	// consume the final response's committed CAS above — so a second,
	// real Transport.Commit still happens for the final response. This
	// CAS only protects against two concurrent continue_100 calls racing
	// to send the same interim line twice.
	continueSent int32
	// handledCount is the "requests handled" counter: incremented exactly
	// once per request, at header-complete.
	handledCount uint64

	expectContinue    bool
	expectProcessing  bool
	expectUnsupported bool

	timeoutCancel func()
}

// New allocates a Channel. Connector, Endpoint, Transport and Router are
// nil until the caller (ordinarily the connector package) wires them in;
// Config defaults to config.Default() if cfg is nil.
func New(cfg *config.Config) *Channel {
	if cfg == nil {
		cfg = config.Default()
	}

	ch := &Channel{
		State:  NewState(),
		Config: cfg,
		Logger: log.Default(),
	}
	ch.Request = NewRequest(ch, cfg.Headers.Number.Default, cfg.Body.MaxSize.Default)
	ch.Response = NewResponse(ch)

	return ch
}

// IsCommitted reports whether the committed flag has already won its CAS
// for the current request.
func (c *Channel) IsCommitted() bool {
	return atomic.LoadInt32(&c.committed) == 1
}

// HandledCount returns the monotonic "requests handled" counter.
func (c *Channel) HandledCount() uint64 {
	return atomic.LoadUint64(&c.handledCount)
}

func (c *Channel) logf(format string, args ...any) {
	if c.Logger != nil {
		c.Logger.Printf(format, args...)
	}
}

// Run is the dispatch loop's single public entry point: the unit of work
// an executor schedules once per dispatch pass (the original request, a
// resumed async redispatch, or — when the loop falls straight through —
// nothing at all, if State.Handling reports a spurious wake).
//
// The per-pass "current channel" slot (spec's §4.5.2 step 1, §9) is
// installed on Request.ctx for the duration of this call and cleared
// before returning, on every path, via defer — it must never survive past
// Run the way spec requires it never survive a suspension point.
func (c *Channel) Run(ctx context.Context) {
	ctx = WithChannel(ctx, c)
	c.Request.setContext(ctx)
	defer c.Request.setContext(nil)

	if !c.State.Handling() {
		return
	}

	for {
		c.Request.SetHandled(false)

		dispatchErr := c.dispatchOnce()

		switch {
		case dispatchErr == nil:
			// fallthrough to Unhandle below
		case errors.Is(dispatchErr, io.EOF):
			c.State.Error(dispatchErr)
			c.Request.SetHandled(true)
		default:
			c.State.Error(dispatchErr)
			c.Request.SetHandled(true)
			c.handleException(dispatchErr)
		}

		if c.State.Unhandle() {
			break
		}
		if c.Connector != nil && !c.Connector.Running() {
			break
		}
	}

	if c.State.IsCompleting() {
		c.finishCompletion()
	}
}

// dispatchOnce runs exactly one application invocation — the initial
// request or a resumed async pass, as State.IsInitial decides — and turns
// a recovered panic into an ordinary error, since Go has no sentinel
// "suspension" exception to catch and swallow: suspension here is
// observed through State.Unhandle's return value instead, never thrown.
func (c *Channel) dispatchOnce() (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("channel: panic in handler: %v", rec)
		}
	}()

	if c.State.IsInitial() {
		c.Request.SetDispatcherType(DispatcherRequest)
		c.customizeRequest()
		return c.Router.OnRequest(c.Request)
	}

	c.Request.SetDispatcherType(DispatcherAsync)
	return c.Router.OnAsync(c.Request)
}

// customizeRequest applies the configuration policies spec's loop step
// 3.b calls out — here, arming the connector's read-timeout scheduler for
// the request's first dispatch.
func (c *Channel) customizeRequest() {
	if c.Connector == nil || c.Config.NET.ReadTimeout <= 0 {
		return
	}

	c.timeoutCancel = c.Connector.ScheduleTimeout(c.Config.NET.ReadTimeout, func() {
		c.State.Expired(fmt.Errorf("channel: %w", ErrTimeout))
		c.Connector.Redispatch(c)
	})
}

// finishCompletion runs spec's loop step 4: it always marks the State
// completed, reconciles an unused 100-continue promise, falls back to 404
// for a request nobody handled, finalises the response and notifies the
// transport — the notification (together with marking the request handled)
// guaranteed by defer, matching the step's own "finally" clause.
func (c *Channel) finishCompletion() {
	defer func() {
		c.Request.SetHandled(true)
		if err := c.Transport.ChannelCompleted(); err != nil {
			c.logf("channel: transport channel_completed: %v", err)
		}
	}()

	c.State.Completed()

	if c.timeoutCancel != nil {
		c.timeoutCancel()
		c.timeoutCancel = nil
	}

	if c.expectContinue {
		c.expectContinue = false
		if !c.IsCommitted() {
			c.Response.Fields().Set("Connection", "close")
			c.Request.SetPersistent(false)
		} else {
			c.logf("channel: 100-continue left unread but response already committed, can't force close")
		}
	}

	if !c.IsCommitted() && !c.Request.IsHandled() {
		if err := c.Response.SendError(status.NotFound, ""); err != nil {
			c.logf("channel: default 404 failed: %v", err)
		}
	}

	if err := c.Response.Complete(); err != nil {
		c.logf("channel: error completing response: %v", err)
	}
}

// Reset returns the Channel to its pre-request state. Legal only when the
// State is IDLE or COMPLETED.
func (c *Channel) Reset() {
	c.Request.Recycle()
	c.Request.Input.Reset()
	c.Response.Recycle()
	c.State.Reset()

	atomic.StoreInt32(&c.committed, 0)
	atomic.StoreInt32(&c.completedOnce, 0)
	atomic.StoreInt32(&c.continueSent, 0)

	c.expectContinue = false
	c.expectProcessing = false
	c.expectUnsupported = false

	if c.timeoutCancel != nil {
		c.timeoutCancel()
		c.timeoutCancel = nil
	}
}
