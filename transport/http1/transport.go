// Package http1 is the concrete channel.Transport for a TCP connection
// speaking HTTP/1.x: it renders a ResponseInfo into a status line and
// header block, frames the body (a known Content-Length, chunked, or a
// close-delimited tail for HTTP/1.0), and decides — once the channel says
// the exchange is complete — whether the connection survives for the next
// request or gets torn down.
package http1

import (
	"bufio"
	"net"
	"strconv"

	"github.com/indigo-web/utils/strcomp"

	"github.com/duskhttp/dusk/channel"
	"github.com/duskhttp/dusk/config"
	"github.com/duskhttp/dusk/http/status"
	"github.com/duskhttp/dusk/http/version"
)

const (
	colonsp = ": "
	crlf    = "\r\n"
)

var chunkedFinalizer = []byte("0\r\n\r\n")

type bodyMode uint8

const (
	modeContentLength bodyMode = iota
	modeChunked
	modeClose
)

// Transport owns the write half of one connection. It is not safe for
// concurrent use — the Channel never calls Commit/Write from more than one
// goroutine at a time for a given request, per its own commit-once
// contract.
type Transport struct {
	conn net.Conn
	w    *bufio.Writer

	buff        []byte
	chunkHeader []byte

	defaultHeaders defaultHeaders

	mode     bodyMode
	headOnly bool

	committed   bool
	shouldClose bool
	closed      bool
}

// NewTransport wraps conn, buffering writes per cfg.NET.WriteBufferSize and
// merging cfg.Headers.Default into every response unless a handler already
// set the same key.
func NewTransport(conn net.Conn, cfg *config.Config) *Transport {
	return &Transport{
		conn:           conn,
		w:              bufio.NewWriterSize(conn, cfg.NET.WriteBufferSize),
		buff:           make([]byte, 0, 512),
		chunkHeader:    make([]byte, 0, 20),
		defaultHeaders: processDefaultHeaders(cfg.Headers.Default),
	}
}

// Commit serialises info as a status line and header block, decides body
// framing, then writes content exactly like a Write call would.
func (t *Transport) Commit(info channel.ResponseInfo, content []byte, complete bool) error {
	if t.closed {
		return net.ErrClosed
	}

	t.buff = t.buff[:0]
	t.defaultHeaders.reset()

	switch {
	case info.ContentLength >= 0:
		t.mode = modeContentLength
	case info.Version == version.HTTP11:
		t.mode = modeChunked
	default:
		t.mode = modeClose
	}

	t.renderStatusLine(info)
	t.renderHeaders(info)

	if t.mode == modeClose || strcomp.EqualFold(info.Headers.Value("Connection"), "close") {
		t.shouldClose = true
	}

	t.buff = append(t.buff, crlf...)
	if _, err := t.w.Write(t.buff); err != nil {
		return err
	}

	t.headOnly = info.IsHead
	t.committed = true

	if err := t.writeBody(content, complete); err != nil {
		return err
	}

	// An interim response (no body, not yet complete — continue_100's own
	// commit is the only caller this applies to) must reach the wire right
	// away: nothing else is going to flush it, and the client is blocked
	// waiting to see it before it sends the body writeBody's own
	// complete-triggered flush is gated on.
	if !complete && len(content) == 0 {
		return t.w.Flush()
	}

	return nil
}

// Write appends further content after Commit, framing it per the mode
// Commit decided.
func (t *Transport) Write(content []byte, complete bool) error {
	if !t.committed {
		return errNotCommitted
	}
	return t.writeBody(content, complete)
}

// ChannelCompleted flushes whatever is still buffered and, if the last
// commit called for it, closes the connection — otherwise it leaves the
// socket open for the next pipelined or persistent request.
func (t *Transport) ChannelCompleted() error {
	if t.closed {
		return nil
	}

	if err := t.w.Flush(); err != nil {
		return err
	}

	t.committed = false

	if t.shouldClose {
		t.closed = true
		return t.conn.Close()
	}

	return nil
}

func (t *Transport) writeBody(content []byte, complete bool) error {
	if !t.headOnly && len(content) > 0 {
		if t.mode == modeChunked {
			if err := t.writeChunk(content); err != nil {
				return err
			}
		} else if _, err := t.w.Write(content); err != nil {
			return err
		}
	}

	if complete && t.mode == modeChunked {
		if _, err := t.w.Write(chunkedFinalizer); err != nil {
			return err
		}
	}

	if complete {
		return t.w.Flush()
	}

	return nil
}

func (t *Transport) writeChunk(content []byte) error {
	t.chunkHeader = strconv.AppendUint(t.chunkHeader[:0], uint64(len(content)), 16)
	t.chunkHeader = append(t.chunkHeader, crlf...)

	if _, err := t.w.Write(t.chunkHeader); err != nil {
		return err
	}
	if _, err := t.w.Write(content); err != nil {
		return err
	}
	_, err := t.w.Write([]byte(crlf))
	return err
}

func (t *Transport) renderStatusLine(info channel.ResponseInfo) {
	t.buff = append(t.buff, info.Version.String()...)
	t.buff = append(t.buff, ' ')
	t.buff = strconv.AppendInt(t.buff, int64(info.Status), 10)
	t.buff = append(t.buff, ' ')

	reason := info.Reason
	if reason == "" {
		reason = string(status.Text(info.Status))
	}
	t.buff = append(t.buff, reason...)
	t.buff = append(t.buff, crlf...)
}

// renderHeaders writes every header the response explicitly set, then the
// framing header the chosen body mode calls for if the response didn't
// already set one itself, then any default header whose key wasn't
// already among them — mirroring the teacher's own defaultHeaders.Exclude
// dance in its serializer.
func (t *Transport) renderHeaders(info channel.ResponseInfo) {
	for key, value := range info.Headers.Iter() {
		t.defaultHeaders.exclude(key)
		t.renderHeaderLine(key, value)
	}

	// 1xx responses are interim — RFC 9110 §15.2 forbids a body on them,
	// so no framing header belongs on the wire at all, not even an
	// explicit Content-Length: 0.
	informational := info.Status < status.OK

	switch {
	case informational:
	case t.mode == modeContentLength:
		if !info.Headers.Has("Content-Length") {
			t.renderHeaderLine("Content-Length", strconv.FormatInt(info.ContentLength, 10))
		}
	case t.mode == modeChunked:
		if !info.Headers.Has("Transfer-Encoding") {
			t.renderHeaderLine("Transfer-Encoding", "chunked")
		}
	}

	for _, h := range t.defaultHeaders {
		if !h.excluded {
			t.buff = append(t.buff, h.full...)
		}
	}
}

func (t *Transport) renderHeaderLine(key, value string) {
	t.buff = append(t.buff, key...)
	t.buff = append(t.buff, colonsp...)
	t.buff = append(t.buff, value...)
	t.buff = append(t.buff, crlf...)
}

type defaultHeader struct {
	key      string
	full     string
	excluded bool
}

type defaultHeaders []defaultHeader

func processDefaultHeaders(hdrs map[string]string) defaultHeaders {
	processed := make(defaultHeaders, 0, len(hdrs))

	for key, value := range hdrs {
		processed = append(processed, defaultHeader{
			key:  key,
			full: key + colonsp + value + crlf,
		})
	}

	return processed
}

func (d defaultHeaders) exclude(key string) {
	for i, h := range d {
		if strcomp.EqualFold(h.key, key) {
			d[i].excluded = true
			return
		}
	}
}

func (d defaultHeaders) reset() {
	for i := range d {
		d[i].excluded = false
	}
}

type notCommittedErr struct{}

func (notCommittedErr) Error() string { return "transport/http1: write before commit" }

var errNotCommitted = notCommittedErr{}
