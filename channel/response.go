package channel

import (
	"strconv"
	"sync/atomic"

	jsoniter "github.com/json-iterator/go"

	"github.com/duskhttp/dusk/http/cookie"
	"github.com/duskhttp/dusk/http/method"
	"github.com/duskhttp/dusk/http/mime"
	"github.com/duskhttp/dusk/http/status"
	"github.com/duskhttp/dusk/http/version"
	"github.com/duskhttp/dusk/kv"
)

// ResponseInfo is the immutable snapshot new_response_info() produces at
// the moment of commit: everything the Transport needs to serialise a
// status line and header block, frozen so a concurrent Response mutation
// after commit can never be observed by the wire writer.
type ResponseInfo struct {
	Version version.Version
	Headers *kv.Storage
	// ContentLength is -1 when unknown at commit time (the Transport must
	// fall back to chunked framing or a close-delimited body).
	ContentLength int64
	Status        status.Code
	Reason        string
	IsHead        bool
}

// Response accumulates the status/headers/body the application builds up
// for the current request. Every write — whether through Output or one of
// the convenience builders below — ultimately funnels through the owning
// Channel's write(), which enforces the commit-once rule; Response itself
// only ever refuses a direct mutation once IsCommitted() is already true.
type Response struct {
	ch *Channel

	statusCode status.Code
	reason     string

	headers *kv.Storage

	output *responseWriter
}

// NewResponse allocates a Response bound to ch, defaulting to 200 OK.
func NewResponse(ch *Channel) *Response {
	r := &Response{
		ch:         ch,
		statusCode: status.OK,
		headers:    kv.New(),
	}
	r.output = &responseWriter{r: r}
	return r
}

// SetStatus installs the status code and, optionally, an explicit reason
// phrase overriding the canonical one status.Text would supply.
func (r *Response) SetStatus(code status.Code, reason ...string) error {
	if r.IsCommitted() {
		return ErrCommitted
	}

	r.statusCode = code
	if len(reason) > 0 && reason[0] != "" {
		r.reason = reason[0]
	} else {
		r.reason = string(status.Text(code))
	}

	return nil
}

// Status returns the currently installed status code and reason.
func (r *Response) Status() (status.Code, string) { return r.statusCode, r.reason }

// Fields returns the response header multimap for reading and mutation.
// Mutating it after commit has no effect on the wire but is not itself an
// error — IsCommitted() is the contract callers are expected to check.
func (r *Response) Fields() *kv.Storage { return r.headers }

// IsCommitted reflects the owning Channel's committed flag.
func (r *Response) IsCommitted() bool { return r.ch.IsCommitted() }

// NewResponseInfo produces the immutable snapshot used at commit. Content
// length is read off an explicit Content-Length header if the caller (or
// a builder like Bytes/String/JSON) set one; otherwise it is reported
// unknown, which the Transport is expected to treat as "frame with
// chunked encoding, or close the connection once done".
func (r *Response) NewResponseInfo() ResponseInfo {
	length := int64(-1)
	if raw, ok := r.headers.Get("Content-Length"); ok {
		if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
			length = n
		}
	}

	return ResponseInfo{
		Version:       r.ch.Request.Version,
		Headers:       r.headers,
		ContentLength: length,
		Status:        r.statusCode,
		Reason:        r.reason,
		IsHead:        r.ch.Request.Method == method.HEAD,
	}
}

// Output returns the io.Writer handlers stream a body through. Every
// Write routes through the owning Channel's write(content, false); the
// final chunk is sealed by Complete.
func (r *Response) Output() *responseWriter { return r.output }

// Complete tells the transport to finalise the response with an empty,
// complete write. It is safe to call more than once (only the
// first call that actually reaches the transport sends the finalising
// write) and safe to call even when a builder like Bytes already
// completed the response in one shot.
func (r *Response) Complete() error {
	if !atomic.CompareAndSwapInt32(&r.ch.completedOnce, 0, 1) {
		return nil
	}
	return r.ch.write(nil, true)
}

// SendError renders an error response. If a Router is bound to the owning
// Channel, it is given first refusal at rendering the page (spec's
// "configured error handler"). If it accepts, whatever it committed
// stands, and a response it left uncommitted is finalised with no body;
// if it declines or is absent, a minimal text/plain body is sent instead.
func (r *Response) SendError(code status.Code, message string) error {
	if r.IsCommitted() {
		return ErrCommitted
	}

	_ = r.SetStatus(code, "")

	if r.ch.Router != nil {
		httpErr := status.NewError(code, message)
		if err := r.ch.Router.OnError(r.ch.Request, httpErr); err == nil {
			if r.IsCommitted() {
				return nil
			}
			atomic.StoreInt32(&r.ch.completedOnce, 1)
			return r.ch.write(nil, true)
		}
	}

	body := []byte(message)
	if len(body) == 0 {
		body = []byte(status.Text(code))
	}

	r.headers.Set("Content-Type", mime.Plain)
	r.headers.Set("Content-Length", strconv.Itoa(len(body)))
	atomic.StoreInt32(&r.ch.completedOnce, 1)
	return r.ch.write(body, true)
}

// String sets the status, a text/plain body and completes the response in
// one shot.
func (r *Response) String(code status.Code, body string) error {
	return r.Bytes(code, []byte(body))
}

// Bytes sets the status, a text/plain (unless a Content-Type is already
// set) body and completes the response in one shot.
func (r *Response) Bytes(code status.Code, body []byte) error {
	if r.IsCommitted() {
		return ErrCommitted
	}

	if err := r.SetStatus(code); err != nil {
		return err
	}

	if !r.headers.Has("Content-Type") {
		r.headers.Set("Content-Type", mime.Plain)
	}
	r.headers.Set("Content-Length", strconv.Itoa(len(body)))

	atomic.StoreInt32(&r.ch.completedOnce, 1)
	return r.ch.write(body, true)
}

// JSON marshals v and completes the response with an application/json
// body, mirroring the teacher's http.Response.TryJSON.
func (r *Response) JSON(code status.Code, v any) error {
	body, err := jsoniter.Marshal(v)
	if err != nil {
		return err
	}

	if r.IsCommitted() {
		return ErrCommitted
	}

	if err := r.SetStatus(code); err != nil {
		return err
	}

	r.headers.Set("Content-Type", mime.JSON)
	r.headers.Set("Content-Length", strconv.Itoa(len(body)))

	atomic.StoreInt32(&r.ch.completedOnce, 1)
	return r.ch.write(body, true)
}

// Header sets a single response header.
func (r *Response) Header(key, value string) *Response {
	r.headers.Set(key, value)
	return r
}

// Headers merges a set of response headers.
func (r *Response) Headers(headers map[string]string) *Response {
	for k, v := range headers {
		r.headers.Set(k, v)
	}
	return r
}

// Cookie appends a Set-Cookie header rendered from c.
func (r *Response) Cookie(c cookie.Cookie) *Response {
	r.headers.Add("Set-Cookie", c.String())
	return r
}

// Recycle resets status, reason and headers ahead of the next
// request on a persistent connection.
func (r *Response) Recycle() {
	r.statusCode = status.OK
	r.reason = ""
	r.headers.Clear()
}

// responseWriter adapts Response.Output to io.Writer, funnelling every
// write through the owning Channel's commit-aware write().
type responseWriter struct {
	r *Response
}

func (w *responseWriter) Write(p []byte) (int, error) {
	if err := w.r.ch.write(p, false); err != nil {
		return 0, err
	}
	return len(p), nil
}
