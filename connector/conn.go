package connector

import (
	"context"
	"errors"
	"io"
	"log"
	"net"
	"sync"
	"time"

	"github.com/dchest/uniuri"

	"github.com/duskhttp/dusk/channel"
	"github.com/duskhttp/dusk/config"
	parser "github.com/duskhttp/dusk/parser/http1"
	transport "github.com/duskhttp/dusk/transport/http1"
)

// isExpectedCloseErr reports whether err is one of the ordinary ways a
// connection ends — the peer closing, the read timeout firing, or this
// Server having already closed the socket itself — none of which are
// worth a log line.
func isExpectedCloseErr(err error) bool {
	if errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// conn is one accepted connection's channel.Connector and channel.Endpoint,
// and the goroutine that feeds its Channel.
//
// The teacher solves this whole problem with one goroutine per
// connection, pulling bytes off the socket and driving a fully
// synchronous parse/dispatch/write cycle (internal/server/http.Server.Run).
// That shape deadlocks here: channel.Input's Read blocks the dispatch
// goroutine until more body bytes arrive, and nothing refills it unless a
// second, independent goroutine keeps reading the socket while dispatch
// is in flight — required for continue_100 to ever fire ahead of a body,
// and for a handler blocking on Request.Body().Read() not to wedge the
// connection. So conn runs two: this type's own serve loop (the "reader"
// goroutine, parsing and feeding) and a short-lived "runner" goroutine
// per dispatch pass, synchronised through done.
type conn struct {
	netConn net.Conn
	cfg     *config.Config
	server  *Server

	transport *transport.Transport
	parser    *parser.Parser
	ch        *channel.Channel

	mu   sync.Mutex
	done chan struct{}
}

func newConn(netConn net.Conn, cfg *config.Config, router channel.Router, srv *Server) *conn {
	c := &conn{
		netConn:   netConn,
		cfg:       cfg,
		server:    srv,
		transport: transport.NewTransport(netConn, cfg),
	}

	c.ch = channel.New(cfg)
	c.ch.Connector = c
	c.ch.Endpoint = c
	c.ch.Transport = c.transport
	c.ch.Router = router
	if srv != nil && srv.logger != nil {
		c.ch.Logger = srv.logger
	}
	c.ch.State.SetRedispatcher(func() { c.Redispatch(c.ch) })

	c.parser = parser.NewParser(c.ch, cfg)

	return c
}

// serve drains netConn until the parser dies or a read fails, dispatching
// exactly one request (or pipelined run of requests) at a time onto the
// single Channel this connection owns.
func (c *conn) serve() {
	defer c.netConn.Close()

	buf := make([]byte, c.cfg.NET.ReadBufferSize)
	var pending []byte

	for {
		if len(pending) == 0 {
			if c.cfg.NET.ReadTimeout > 0 {
				if err := c.netConn.SetReadDeadline(time.Now().Add(c.cfg.NET.ReadTimeout)); err != nil {
					return
				}
			}

			n, err := c.netConn.Read(buf)
			if err != nil {
				if !isExpectedCloseErr(err) {
					c.logf("connector: read: %v", err)
				}
				c.parser.Close()
				return
			}
			pending = buf[:n]
		}

		rest, ev := c.parser.Feed(pending)
		pending = nil

		switch ev {
		case parser.NeedMore:
			if c.parser.Dead() {
				// fail() already ran bad_message synthetically and drove
				// the Channel to COMPLETED inline on this goroutine —
				// nothing is left to parse, so don't spin on blocking
				// reads waiting for more that was never coming.
				c.ch.Reset()
				return
			}
			// otherwise loop back around and read more off the wire.
		case parser.HeadersReady:
			// A body is still arriving. Dispatch now — continue_100 can
			// only be decided before the body shows up — and keep
			// feeding whatever already arrived straight back in as
			// body content, without waiting for dispatch to finish.
			c.beginDispatch()
			pending = rest
		case parser.MessageComplete:
			// A bodyless request never raises HeadersReady, so this may
			// be the first and only dispatch signal for it.
			c.beginDispatch()
			c.awaitDispatch()
			c.ch.Reset()

			if c.parser.Dead() {
				return
			}
			pending = rest
		}
	}
}

// beginDispatch spawns the dispatch goroutine for the current request if
// one isn't already running (HeadersReady already started it; a
// bodyless MessageComplete has not).
func (c *conn) beginDispatch() {
	c.mu.Lock()
	if c.done != nil {
		c.mu.Unlock()
		return
	}
	c.done = make(chan struct{})
	c.mu.Unlock()

	c.ch.Request.SetAttribute("request.id", uniuri.New())
	go c.runAndSignal()
}

// awaitDispatch blocks until the in-flight request's dispatch has run all
// the way through to completion (possibly across several suspend/
// redispatch passes), then frees the slot for the next request.
func (c *conn) awaitDispatch() {
	c.mu.Lock()
	done := c.done
	c.mu.Unlock()

	if done == nil {
		return
	}

	<-done

	c.mu.Lock()
	c.done = nil
	c.mu.Unlock()
}

// Redispatch implements channel.Connector: it posts the Channel back onto
// a fresh goroutine, whether called directly (a timed-out request) or via
// the State.SetRedispatcher hook wired in newConn (an application thread
// resuming a suspended request). Run itself is a no-op if this races a
// pass already in flight — State.Handling reports the spurious wake and
// Run returns immediately — so firing twice for one event is harmless.
func (c *conn) Redispatch(ch *channel.Channel) {
	go c.runAndSignal()
}

// runAndSignal runs exactly one dispatch pass and, only if that pass
// drove the State all the way to COMPLETED, closes done — a pass that
// merely suspends again leaves done open for whatever redispatches next.
func (c *conn) runAndSignal() {
	c.ch.Run(context.Background())

	if c.ch.State.GetState() != channel.PhaseCompleted {
		return
	}

	c.mu.Lock()
	done := c.done
	c.mu.Unlock()

	if done != nil {
		close(done)
	}
}

// ScheduleTimeout implements channel.Connector using a plain
// time.AfterFunc — the teacher reaches for nothing fancier than stdlib
// timers anywhere in its own scheduling code, and this is a single
// one-shot deadline per dispatch pass, not a pool that would justify
// pulling in a timer-wheel library.
func (c *conn) ScheduleTimeout(d time.Duration, fn func()) (cancel func()) {
	timer := time.AfterFunc(d, fn)
	return func() { timer.Stop() }
}

// Running implements channel.Connector: whether the owning Server is
// still in a state where dispatch-loop iterations should continue.
func (c *conn) Running() bool {
	return c.server == nil || c.server.Running()
}

// LocalAddr and RemoteAddr implement channel.Endpoint.
func (c *conn) LocalAddr() net.Addr  { return c.netConn.LocalAddr() }
func (c *conn) RemoteAddr() net.Addr { return c.netConn.RemoteAddr() }

func (c *conn) logf(format string, args ...any) {
	logger := log.Default()
	if c.server != nil && c.server.logger != nil {
		logger = c.server.logger
	}
	logger.Printf(format, args...)
}
