package channel

import (
	"net"
	"time"
)

// Transport is the narrow sink the Channel commits and writes through. At
// most one Commit call for the final response reaches a given Transport per
// request, optionally preceded by one interim 100 Continue Commit from
// continue_100; every Write after the final Commit appends further content
// until one arrives with complete=true.
type Transport interface {
	// Commit serialises info as the HTTP response headers, appends
	// content (may be nil), and — if complete — finalises the response.
	Commit(info ResponseInfo, content []byte, complete bool) error
	// Write appends further content after commit; if complete, finalises.
	// Blocking by contract.
	Write(content []byte, complete bool) error
	// ChannelCompleted notifies the transport that the Channel has
	// finished its active phase, so it may release resources or begin
	// reading the next request off the connection.
	ChannelCompleted() error
}

// Router is the application surface the dispatch loop invokes: the
// "servlet/filter/handler tree" spec's scope explicitly excludes from the
// Channel's own responsibilities but which the Channel still has to call
// into. OnRequest handles the initial dispatch; OnAsync handles a resumed
// one; OnError is given first refusal at rendering an error page before
// Response.SendError falls back to a minimal default body.
type Router interface {
	OnRequest(req *Request) error
	OnAsync(req *Request) error
	OnError(req *Request, err error) error
}

// Connector is the executor + scheduler + server handle the Channel
// borrows but never owns. Redispatch posts a suspended Channel back onto
// the executor; ScheduleTimeout arranges a deadline callback; Running
// reports whether the server is still accepting dispatch-loop iterations
// (the loop's step 3 precondition).
type Connector interface {
	Redispatch(ch *Channel)
	ScheduleTimeout(d time.Duration, fn func()) (cancel func())
	Running() bool
}

// Endpoint exposes the connection's local/remote addresses, borrowed by
// the Channel for request customisation (spec's "SNI info" aside) and by
// handlers that want to log or key rate limits off the remote address.
type Endpoint interface {
	LocalAddr() net.Addr
	RemoteAddr() net.Addr
}
