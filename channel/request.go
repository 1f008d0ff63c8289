package channel

import (
	"context"
	"time"

	"github.com/duskhttp/dusk/http/cookie"
	"github.com/duskhttp/dusk/http/method"
	"github.com/duskhttp/dusk/http/mime"
	"github.com/duskhttp/dusk/http/version"
	"github.com/duskhttp/dusk/kv"
)

// DispatcherType tags which of the two dispatch passes the Channel is
// currently running: the original request or a resumed async one.
type DispatcherType uint8

const (
	DispatcherRequest DispatcherType = iota
	DispatcherAsync
)

func (d DispatcherType) String() string {
	if d == DispatcherAsync {
		return "ASYNC"
	}
	return "REQUEST"
}

// Request accumulates everything the parser hands the Channel about one
// HTTP request. It is owned exclusively by the Channel and reused across
// requests on a persistent connection via Recycle; the back-reference to
// the owning Channel exists so the handful of ergonomic helpers below
// (Respond, Body, StartAsync) don't force every handler signature to carry
// a second parameter, but it is a non-owning handle in the sense spec's
// design notes describe a Request's back-reference: there is exactly one
// Channel for the lifetime of the connection, not a fresh one per request.
type Request struct {
	channel *Channel

	Method    method.Method
	RawMethod string

	RawURI string
	Path   string
	Query  string

	Version version.Version

	ServerName string
	ServerPort string

	Headers *kv.Storage

	Timestamp time.Time

	Dispatcher DispatcherType
	handled    bool
	persistent bool

	charset    mime.Charset
	charsetSet bool

	attrs map[string]any

	Input *Input

	cookies       *kv.Storage
	cookiesParsed bool

	ctx context.Context
}

// NewRequest allocates a Request bound to ch, with headroom for
// headersHint headers and an Input capped at maxBody bytes (0 =
// unbounded).
func NewRequest(ch *Channel, headersHint int, maxBody uint64) *Request {
	return &Request{
		channel: ch,
		Headers: kv.NewPrealloc(headersHint),
		Input:   NewInput(maxBody),
		attrs:   make(map[string]any),
	}
}

// SetMethod installs the parsed method enum alongside its raw wire token
// (kept around for methods Parse doesn't recognise).
func (r *Request) SetMethod(m method.Method, raw string) {
	r.Method = m
	r.RawMethod = raw
}

// SetURI records the raw request-target exactly as the parser saw it.
func (r *Request) SetURI(raw string) { r.RawURI = raw }

// SetPathInfo installs the decoded, canonicalised path.
func (r *Request) SetPathInfo(path string) { r.Path = path }

// SetHTTPVersion installs the negotiated protocol version.
func (r *Request) SetHTTPVersion(v version.Version) { r.Version = v }

// SetServerName installs the host the client addressed, from the Host
// header or a CONNECT authority.
func (r *Request) SetServerName(host string) { r.ServerName = host }

// SetServerPort installs the port the client addressed.
func (r *Request) SetServerPort(port string) { r.ServerPort = port }

// SetCharacterEncodingUnchecked installs a charset derived from the
// Content-Type header without validating it against any registry — an
// unrecognised-but-well-formed token is still accepted, deferring any
// rejection to whatever reads Body() and tries to decode with it.
func (r *Request) SetCharacterEncodingUnchecked(cs mime.Charset) {
	r.charset = cs
	r.charsetSet = true
}

// CharacterEncoding returns the installed charset and whether one was
// ever set.
func (r *Request) CharacterEncoding() (mime.Charset, bool) { return r.charset, r.charsetSet }

// SetPersistent records whether the connection should stay open past this
// request's completion.
func (r *Request) SetPersistent(flag bool) { r.persistent = flag }

// IsPersistent reports the persistence decision header_complete made.
func (r *Request) IsPersistent() bool { return r.persistent }

// SetDispatcherType tags the current dispatch pass.
func (r *Request) SetDispatcherType(d DispatcherType) { r.Dispatcher = d }

// SetHandled records whether the application has taken responsibility for
// this request (as opposed to it falling through to a default 404).
func (r *Request) SetHandled(flag bool) { r.handled = flag }

// IsHandled reports the handled flag.
func (r *Request) IsHandled() bool { return r.handled }

// SetAttribute stores an opaque value in the per-request attribute bag.
func (r *Request) SetAttribute(key string, value any) { r.attrs[key] = value }

// Attribute retrieves a value previously stored with SetAttribute.
func (r *Request) Attribute(key string) (any, bool) {
	v, ok := r.attrs[key]
	return v, ok
}

// SetTimeStamp records when the first byte of the request arrived.
func (r *Request) SetTimeStamp(t time.Time) { r.Timestamp = t }

// Fields returns the request header multimap, for both reading and
// structured appends (parsed_header's own target).
func (r *Request) Fields() *kv.Storage { return r.Headers }

// Body returns the Input the parser feeds. The first call per request
// gives continue_100 its chance to commit a 100 Continue response before
// the application starts reading, exactly as spec's 100-continue section
// requires ("called when the application first asks for the input
// stream").
func (r *Request) Body() *Input {
	if r.channel != nil {
		if err := r.channel.Continue100(r.Input.Available()); err != nil {
			r.channel.logf("continue_100: %v", err)
		}
	}
	return r.Input
}

// Cookies lazily parses the Cookie request header into a jar, caching the
// result for the lifetime of the request.
func (r *Request) Cookies() *kv.Storage {
	if r.cookiesParsed {
		return r.cookies
	}

	r.cookiesParsed = true
	if r.cookies == nil {
		prealloc := 0
		if r.channel != nil && r.channel.Config != nil {
			prealloc = r.channel.Config.Headers.CookiesPrealloc
		}
		r.cookies = kv.NewPrealloc(prealloc)
	}

	if raw, ok := r.Headers.Get("Cookie"); ok {
		_ = cookie.Parse(r.cookies, raw)
	}

	return r.cookies
}

// Respond returns the Response the owning Channel will eventually commit.
// Handlers mutate it directly rather than constructing their own.
func (r *Request) Respond() *Response {
	return r.channel.Response
}

// StartAsync marks the current dispatch pass as suspended: the handler
// should return immediately afterwards, and a later call to the
// Channel's State.Dispatch (via the Connector) will resume it.
func (r *Request) StartAsync() {
	r.channel.State.StartAsync()
}

// IsSuspended reports whether the owning Channel's State is currently
// parked waiting for an async redispatch.
func (r *Request) IsSuspended() bool {
	return r.channel.State.IsSuspended()
}

// Context returns the context installed for the current dispatch pass, or
// context.Background() outside of one. It is the scoped, per-pass
// equivalent of spec's per-thread "current channel" slot: a helper deep in
// a handler's call graph that only has a context.Context can still reach
// the Channel via FromContext(req.Context()).
func (r *Request) Context() context.Context {
	if r.ctx == nil {
		return context.Background()
	}
	return r.ctx
}

func (r *Request) setContext(ctx context.Context) { r.ctx = ctx }

// Recycle resets every accumulated field ahead of the next request on a
// persistent connection. The Input is reset separately by the Channel,
// since it may still be draining when this is called.
func (r *Request) Recycle() {
	r.Method = method.Unknown
	r.RawMethod = ""
	r.RawURI = ""
	r.Path = ""
	r.Query = ""
	r.Version = version.Unknown
	r.ServerName = ""
	r.ServerPort = ""
	r.Headers.Clear()
	r.Timestamp = time.Time{}
	r.Dispatcher = DispatcherRequest
	r.handled = false
	r.persistent = false
	r.charset = mime.Unset
	r.charsetSet = false
	r.cookiesParsed = false
	if r.cookies != nil {
		r.cookies.Clear()
	}

	for k := range r.attrs {
		delete(r.attrs, k)
	}
}
