// Package http1 is the incremental, push-based HTTP/1.x wire parser: the
// Channel's external collaborator on the read side, deliberately kept out
// of the channel package itself (a Channel is driven by whatever recognises
// request syntax, not coupled to one specific wire format). Feed is called
// once per network read; it drives a Sink (*channel.Channel, in practice)
// through exactly the callback sequence the Sink's own doc comments
// describe, pausing whenever it runs out of bytes and picking back up on
// the next Feed call.
package http1

import (
	"bytes"
	"io"
	"strconv"
	"strings"

	"github.com/indigo-web/chunkedbody"
	"github.com/indigo-web/utils/buffer"
	"github.com/indigo-web/utils/strcomp"
	"github.com/indigo-web/utils/uf"

	"github.com/duskhttp/dusk/config"
	"github.com/duskhttp/dusk/http/method"
	"github.com/duskhttp/dusk/http/status"
	"github.com/duskhttp/dusk/http/uri"
	"github.com/duskhttp/dusk/http/version"
)

// Event reports why Feed stopped consuming bytes, so the caller knows
// whether it must act before resuming.
type Event uint8

const (
	// NeedMore means the parser ran out of bytes; read more off the wire
	// and Feed again.
	NeedMore Event = iota
	// HeadersReady means a request's header block just completed and the
	// request carries a body still to arrive. The caller must dispatch
	// the request now — a continue_100 decision can only be made before
	// the body shows up — and keep feeding rest straight back in as body
	// content, without waiting for the dispatch to finish.
	HeadersReady
	// MessageComplete means a request (headers and, if any, body) has
	// been delivered to the Sink in full. For a bodyless request this is
	// the only event raised — no preceding HeadersReady — so the caller
	// must dispatch if it hasn't already. Either way, rest must not be
	// fed back in until that dispatch has completely finished (through
	// every async redispatch) and the Sink has been reset: rest may
	// already hold the next pipelined request, and the Sink has exactly
	// one Request/Response pair to its name.
	MessageComplete
)

type state uint8

const (
	stateRequestLine state = iota
	stateHeaderLine
	stateBodyPlain
	stateBodyChunked
	// stateDead marks a connection whose current message was already
	// answered with a synthetic response via Sink.BadMessage; Feed
	// is a no-op from then on for the life of the Parser.
	stateDead
)

// Parser turns a byte stream into calls against a Sink. It is not safe for
// concurrent use — exactly one goroutine (the connection's reader) ever
// calls Feed.
type Parser struct {
	sink Sink

	state state

	// line is the scratch buffer shared by the request line and every
	// header line of one message. Cleared exactly once per message, when
	// the message completes — never mid-message — mirroring the teacher's own startLineBuff/
	// headerKeyBuff/headerValueBuff lifecycle.
	line *buffer.Buffer

	maxRequestLine  int
	maxHeaderSpace  int
	maxHeaders      int
	headerSpaceUsed int
	headersSeen     int

	hasContentLength bool
	contentLength    int64
	chunked          bool
	hasTrailer       bool

	bodyRemaining   int64
	chunkedReceived int64
	chunkedSettings chunkedbody.Settings
	chunkedParser   *chunkedbody.Parser
}

// NewParser builds a Parser that drives sink, bounding scratch allocation
// and header/body limits per cfg.
func NewParser(sink Sink, cfg *config.Config) *Parser {
	scratchCap := cfg.URI.RequestLineSize.Maximal + cfg.Headers.Space.Maximal
	settings := chunkedbody.DefaultSettings()

	return &Parser{
		sink:            sink,
		state:           stateRequestLine,
		line:            newBuffer(scratchCap),
		maxRequestLine:  cfg.URI.RequestLineSize.Maximal,
		maxHeaderSpace:  cfg.Headers.Space.Maximal,
		maxHeaders:      cfg.Headers.Number.Maximal,
		chunkedSettings: settings,
		chunkedParser:   chunkedbody.NewParser(settings),
	}
}

func newBuffer(max int) *buffer.Buffer {
	b := buffer.New(256, max)
	return &b
}

// Feed hands data to the parser, driving the Sink through as many
// callbacks as the bytes on hand allow, then returns the unconsumed
// remainder and why it stopped. Any protocol error is already reported to
// the Sink via BadMessage, never returned to the caller — check Dead
// after a call that might have hit one, since the caller has nothing more
// useful to do with it than close the connection once the Sink says the
// exchange is complete.
func (p *Parser) Feed(data []byte) (rest []byte, ev Event) {
	for len(data) > 0 {
		switch p.state {
		case stateDead:
			return nil, NeedMore

		case stateRequestLine:
			idx := bytes.IndexByte(data, '\n')
			if idx == -1 {
				if !p.line.Append(data) || p.line.SegmentLength() > p.maxRequestLine {
					p.fail(status.RequestURITooLong, "request line too long")
				}
				return nil, NeedMore
			}

			if !p.line.Append(data[:idx]) {
				p.fail(status.RequestURITooLong, "request line too long")
				return nil, NeedMore
			}

			line := trimCR(p.line.Finish())
			if len(line) > p.maxRequestLine {
				p.fail(status.RequestURITooLong, "request line too long")
				return nil, NeedMore
			}

			data = data[idx+1:]
			if err := p.parseRequestLine(line); err != nil {
				return nil, NeedMore
			}

		case stateHeaderLine:
			idx := bytes.IndexByte(data, '\n')
			if idx == -1 {
				if !p.line.Append(data) {
					p.fail(status.HeaderFieldsTooLarge, "header block too large")
					return nil, NeedMore
				}
				if p.headerSpaceUsed+p.line.SegmentLength() > p.maxHeaderSpace {
					p.fail(status.HeaderFieldsTooLarge, "header block too large")
				}
				return nil, NeedMore
			}

			if !p.line.Append(data[:idx]) {
				p.fail(status.HeaderFieldsTooLarge, "header block too large")
				return nil, NeedMore
			}

			line := trimCR(p.line.Finish())
			p.headerSpaceUsed += len(line)
			if p.headerSpaceUsed > p.maxHeaderSpace {
				p.fail(status.HeaderFieldsTooLarge, "header block too large")
				return nil, NeedMore
			}

			data = data[idx+1:]

			if len(line) == 0 {
				p.sink.HeaderComplete()
				return data, p.startBody()
			}

			if err := p.parseHeaderField(line); err != nil {
				return nil, NeedMore
			}

		case stateBodyPlain:
			consumed, done := p.feedPlainBody(data)
			data = data[consumed:]
			if done {
				p.resetForNextMessage()
				return data, MessageComplete
			}
			return nil, NeedMore

		case stateBodyChunked:
			rest, done, err := p.feedChunkedBody(data)
			if err != nil {
				p.fail(status.BadRequest, "malformed chunked body")
				return nil, NeedMore
			}

			data = rest
			if done {
				p.resetForNextMessage()
				return data, MessageComplete
			}
			return nil, NeedMore
		}
	}

	return nil, NeedMore
}

// Dead reports whether the current message was already answered with a
// synthetic response via Sink.BadMessage. The connection has nothing left
// to parse and should be closed.
func (p *Parser) Dead() bool {
	return p.state == stateDead
}

func trimCR(line []byte) []byte {
	if n := len(line); n > 0 && line[n-1] == '\r' {
		return line[:n-1]
	}
	return line
}

func (p *Parser) fail(code status.Code, reason string) {
	p.sink.BadMessage(code, reason)
	p.state = stateDead
}

// parseRequestLine recognises "METHOD target[ HTTP/x.y]" — the version
// token is optional, per HTTP/0.9's historically simple request form.
func (p *Parser) parseRequestLine(line []byte) error {
	sp := bytes.IndexByte(line, ' ')
	if sp == -1 {
		p.fail(status.BadRequest, "malformed request line")
		return errBadMessage
	}

	rawMethod := string(line[:sp])
	m := method.Parse(rawMethod)
	if m == method.Unknown {
		p.fail(status.NotImplemented, "unsupported method")
		return errBadMessage
	}

	rest := line[sp+1:]

	var rawURI string
	v := version.HTTP09

	if sp2 := bytes.LastIndexByte(rest, ' '); sp2 == -1 {
		rawURI = string(rest)
	} else {
		rawURI = string(rest[:sp2])
		v = version.FromBytes(rest[sp2+1:])
		if v == version.Unknown {
			p.fail(status.HTTPVersionNotSupported, "unsupported http version")
			return errBadMessage
		}
	}

	if len(rawURI) == 0 {
		p.fail(status.BadRequest, "empty request target")
		return errBadMessage
	}

	p.sink.StartRequest(m, rawMethod, rawURI, v)

	p.state = stateHeaderLine
	p.headerSpaceUsed = 0
	p.headersSeen = 0
	p.hasContentLength = false
	p.contentLength = 0
	p.chunked = false
	p.hasTrailer = false

	return nil
}

// parseHeaderField recognises one header field or a folded continuation
// (a line starting with a space or tab). Feed handles the blank line
// ending the block itself, since that transition also decides whether the
// caller must pause.
func (p *Parser) parseHeaderField(line []byte) error {
	if line[0] == ' ' || line[0] == '\t' {
		// strings.Clone forces a real copy: line aliases the shared
		// scratch buffer, which the next header line's Append will
		// grow straight past — but ParsedHeader's value must outlive
		// that, since Headers.Add stores it for the request's whole
		// lifetime, possibly across an async suspend.
		p.sink.ParsedHeader("", strings.Clone(uf.B2S(trimWS(line))))
		return nil
	}

	colon := bytes.IndexByte(line, ':')
	if colon == -1 {
		p.fail(status.BadRequest, "malformed header line")
		return errBadMessage
	}

	if p.headersSeen++; p.headersSeen > p.maxHeaders {
		p.fail(status.HeaderFieldsTooLarge, "too many headers")
		return errBadMessage
	}

	// Compare against the known side-channel headers zero-copy, via the
	// shared scratch buffer, the way the teacher's own parser does —
	// then materialise independent copies before they ever reach the
	// Sink, for the reason noted above.
	keyBytes := trimWS(line[:colon])
	valueBytes := trimWS(line[colon+1:])
	rawKey := uf.B2S(keyBytes)
	rawValue := uf.B2S(valueBytes)

	switch {
	case strcomp.EqualFold(rawKey, "Content-Length"):
		n, err := strconv.ParseInt(rawValue, 10, 63)
		if err != nil || n < 0 {
			p.fail(status.BadRequest, "malformed content-length")
			return errBadMessage
		}
		p.hasContentLength = true
		p.contentLength = n

	case strcomp.EqualFold(rawKey, "Transfer-Encoding"):
		if containsTokenFold(rawValue, "chunked") {
			p.chunked = true
		}

	case strcomp.EqualFold(rawKey, "Trailer"):
		p.hasTrailer = true

	case strcomp.EqualFold(rawKey, "Host"):
		host, port := uri.SplitAuthority(strings.Clone(rawValue))
		p.sink.ParsedHostHeader(host, port)
	}

	p.sink.ParsedHeader(strings.Clone(rawKey), strings.Clone(rawValue))

	return nil
}

func trimWS(b []byte) []byte {
	for len(b) > 0 && (b[0] == ' ' || b[0] == '\t') {
		b = b[1:]
	}
	for len(b) > 0 && (b[len(b)-1] == ' ' || b[len(b)-1] == '\t') {
		b = b[:len(b)-1]
	}
	return b
}

func containsTokenFold(value, token string) bool {
	for len(value) > 0 {
		var part string
		if i := strings.IndexByte(value, ','); i != -1 {
			part, value = value[:i], value[i+1:]
		} else {
			part, value = value, ""
		}

		if strcomp.EqualFold(strings.TrimSpace(part), token) {
			return true
		}
	}

	return false
}

// startBody decides the body-reading strategy now that the header block is
// complete, or fires message_complete immediately for a bodyless message.
func (p *Parser) startBody() Event {
	switch {
	case p.chunked:
		p.chunkedReceived = 0
		p.state = stateBodyChunked
		return HeadersReady

	case p.hasContentLength && p.contentLength > 0:
		p.bodyRemaining = p.contentLength
		p.state = stateBodyPlain
		return HeadersReady

	default:
		p.sink.MessageComplete(0)
		p.resetForNextMessage()
		return MessageComplete
	}
}

func (p *Parser) feedPlainBody(data []byte) (consumed int, done bool) {
	if int64(len(data)) >= p.bodyRemaining {
		n := int(p.bodyRemaining)
		if n > 0 {
			p.sink.Content(data[:n])
		}
		p.bodyRemaining = 0
		p.sink.MessageComplete(int(p.contentLength))
		return n, true
	}

	if len(data) > 0 {
		p.sink.Content(data)
	}
	p.bodyRemaining -= int64(len(data))

	return len(data), false
}

func (p *Parser) feedChunkedBody(data []byte) (rest []byte, done bool, err error) {
	chunk, extra, perr := p.chunkedParser.Parse(data, p.hasTrailer)
	switch perr {
	case nil:
		if len(chunk) > 0 {
			p.chunkedReceived += int64(len(chunk))
			p.sink.Content(chunk)
		}
		return extra, false, nil

	case io.EOF:
		if len(chunk) > 0 {
			p.chunkedReceived += int64(len(chunk))
			p.sink.Content(chunk)
		}
		p.sink.MessageComplete(int(p.chunkedReceived))
		return extra, true, nil

	default:
		return nil, false, perr
	}
}

// resetForNextMessage clears per-message scratch and limits so a
// pipelined or persistent-connection's next request starts clean.
func (p *Parser) resetForNextMessage() {
	p.line.Clear()
	p.headerSpaceUsed = 0
	p.headersSeen = 0
	p.hasContentLength = false
	p.contentLength = 0
	p.chunked = false
	p.hasTrailer = false
	p.bodyRemaining = 0
	p.chunkedReceived = 0
	p.state = stateRequestLine
}

// Close tells the parser the connection is gone mid-message: a body still
// in flight is reported as an early EOF rather than silently dropped.
func (p *Parser) Close() {
	if p.state == stateBodyPlain || p.state == stateBodyChunked {
		p.sink.EarlyEOF()
	}
	p.state = stateDead
}

var errBadMessage = badMessageErr{}

type badMessageErr struct{}

func (badMessageErr) Error() string { return "http1: malformed message, already reported to sink" }
