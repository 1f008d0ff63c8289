package http1

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/duskhttp/dusk/config"
	"github.com/duskhttp/dusk/http/method"
	"github.com/duskhttp/dusk/http/status"
	"github.com/duskhttp/dusk/http/version"
)

type headerPair struct{ name, value string }

type fakeSink struct {
	startedMethod  method.Method
	startedRawURI  string
	startedVersion version.Version

	headers []headerPair
	host    string
	port    string

	headerCompleteCalls int
	content             [][]byte
	messageCompleteLen  []int
	earlyEOFCalls       int

	badMessageCode   status.Code
	badMessageReason string
	badMessageCalls  int
}

func (s *fakeSink) StartRequest(m method.Method, rawMethod, rawURI string, v version.Version) bool {
	s.startedMethod = m
	s.startedRawURI = rawURI
	s.startedVersion = v
	return false
}

func (s *fakeSink) ParsedHeader(name, value string) bool {
	s.headers = append(s.headers, headerPair{name, value})
	return false
}

func (s *fakeSink) ParsedHostHeader(host, port string) bool {
	s.host, s.port = host, port
	return false
}

func (s *fakeSink) HeaderComplete() bool {
	s.headerCompleteCalls++
	return false
}

func (s *fakeSink) Content(buffer []byte) bool {
	s.content = append(s.content, append([]byte(nil), buffer...))
	return true
}

func (s *fakeSink) MessageComplete(length int) bool {
	s.messageCompleteLen = append(s.messageCompleteLen, length)
	return true
}

func (s *fakeSink) EarlyEOF() bool {
	s.earlyEOFCalls++
	return false
}

func (s *fakeSink) BadMessage(code status.Code, reason string) bool {
	s.badMessageCalls++
	s.badMessageCode = code
	s.badMessageReason = reason
	return true
}

func newTestParser(sink Sink) *Parser {
	return NewParser(sink, config.Default())
}

// feedAll drains data the way a connector would across several reads: it
// keeps re-feeding whatever Feed hands back as rest until the parser
// genuinely has nothing left to work with (NeedMore with an empty rest),
// collecting every Event raised along the way. Individual tests that care
// about the pause boundary itself call Feed directly instead.
func feedAll(p *Parser, data []byte) []Event {
	var events []Event

	for {
		rest, ev := p.Feed(data)
		events = append(events, ev)

		if ev == NeedMore || len(rest) == 0 {
			return events
		}

		data = rest
	}
}

func TestParser_SimpleGETNoBody(t *testing.T) {
	sink := &fakeSink{}
	p := newTestParser(sink)

	feedAll(p, []byte("GET /hello?x=1 HTTP/1.1\r\nHost: example.com\r\n\r\n"))

	assert.Equal(t, method.GET, sink.startedMethod)
	assert.Equal(t, "/hello?x=1", sink.startedRawURI)
	assert.Equal(t, version.HTTP11, sink.startedVersion)
	assert.Equal(t, "example.com", sink.host)
	assert.Equal(t, 1, sink.headerCompleteCalls)
	require.Len(t, sink.messageCompleteLen, 1)
	assert.Equal(t, 0, sink.messageCompleteLen[0])
}

func TestParser_HeaderFoldedContinuation(t *testing.T) {
	sink := &fakeSink{}
	p := newTestParser(sink)

	feedAll(p, []byte("GET / HTTP/1.1\r\nX-Long: first\r\n second\r\n\r\n"))

	require.Len(t, sink.headers, 2)
	assert.Equal(t, "X-Long", sink.headers[0].name)
	assert.Equal(t, "first", sink.headers[0].value)
	assert.Equal(t, "", sink.headers[1].name)
	assert.Equal(t, "second", sink.headers[1].value)
}

func TestParser_ContentLengthBodyAcrossMultipleFeeds(t *testing.T) {
	sink := &fakeSink{}
	p := newTestParser(sink)

	feedAll(p, []byte("POST /submit HTTP/1.1\r\nContent-Length: 5\r\n\r\nhel"))
	require.Len(t, sink.content, 1)
	assert.Equal(t, "hel", string(sink.content[0]))
	assert.Empty(t, sink.messageCompleteLen)

	feedAll(p, []byte("lo"))
	require.Len(t, sink.content, 2)
	assert.Equal(t, "lo", string(sink.content[1]))
	require.Len(t, sink.messageCompleteLen, 1)
	assert.Equal(t, 5, sink.messageCompleteLen[0])
}

func TestParser_ZeroLengthBodyCompletesImmediately(t *testing.T) {
	sink := &fakeSink{}
	p := newTestParser(sink)

	feedAll(p, []byte("POST /submit HTTP/1.1\r\nContent-Length: 0\r\n\r\n"))
	require.Len(t, sink.messageCompleteLen, 1)
	assert.Empty(t, sink.content)
}

func TestParser_PipelinedRequestsInOneFeed(t *testing.T) {
	sink := &fakeSink{}
	p := newTestParser(sink)

	feedAll(p, []byte("GET /a HTTP/1.1\r\n\r\nGET /b HTTP/1.1\r\n\r\n"))

	assert.Equal(t, "/b", sink.startedRawURI, "second request's StartRequest overwrites the first in this sink, but both ran")
	assert.Equal(t, 2, sink.headerCompleteCalls)
	assert.Len(t, sink.messageCompleteLen, 2)
}

func TestParser_UnknownMethodIsBadMessage(t *testing.T) {
	sink := &fakeSink{}
	p := newTestParser(sink)

	feedAll(p, []byte("FROB / HTTP/1.1\r\n\r\n"))

	require.Equal(t, 1, sink.badMessageCalls)
	assert.Equal(t, status.NotImplemented, sink.badMessageCode)
}

func TestParser_MalformedVersionTokenIsBadMessage(t *testing.T) {
	sink := &fakeSink{}
	p := newTestParser(sink)

	feedAll(p, []byte("GET / HTTP/9.9\r\n\r\n"))

	require.Equal(t, 1, sink.badMessageCalls)
	assert.Equal(t, status.HTTPVersionNotSupported, sink.badMessageCode)
}

func TestParser_MissingColonInHeaderIsBadMessage(t *testing.T) {
	sink := &fakeSink{}
	p := newTestParser(sink)

	feedAll(p, []byte("GET / HTTP/1.1\r\nNotAHeader\r\n\r\n"))

	require.Equal(t, 1, sink.badMessageCalls)
	assert.Equal(t, status.BadRequest, sink.badMessageCode)
}

func TestParser_HTTP09RequestLineHasNoVersionToken(t *testing.T) {
	sink := &fakeSink{}
	p := newTestParser(sink)

	feedAll(p, []byte("GET /old\r\n\r\n"))

	assert.Equal(t, version.HTTP09, sink.startedVersion)
	assert.Equal(t, "/old", sink.startedRawURI)
}

func TestParser_CloseMidBodyRaisesEarlyEOF(t *testing.T) {
	sink := &fakeSink{}
	p := newTestParser(sink)

	feedAll(p, []byte("POST /submit HTTP/1.1\r\nContent-Length: 10\r\n\r\nonly3"))
	p.Close()

	assert.Equal(t, 1, sink.earlyEOFCalls)
}

func TestParser_CloseAfterCleanCompletionIsNoop(t *testing.T) {
	sink := &fakeSink{}
	p := newTestParser(sink)

	feedAll(p, []byte("GET / HTTP/1.1\r\n\r\n"))
	p.Close()

	assert.Equal(t, 0, sink.earlyEOFCalls)
}

// TestParser_Feed_HeadersReadyCarriesBodyAsRest pins the event a connector
// relies on to dispatch a request before its body has fully arrived (the
// only way continue_100 can ever fire ahead of the body): a single Feed
// call must stop the instant the header block ends, handing back whatever
// followed it as rest rather than folding it into Content itself.
func TestParser_Feed_HeadersReadyCarriesBodyAsRest(t *testing.T) {
	sink := &fakeSink{}
	p := newTestParser(sink)

	rest, ev := p.Feed([]byte("POST /submit HTTP/1.1\r\nContent-Length: 5\r\n\r\nhel"))

	assert.Equal(t, HeadersReady, ev)
	assert.Equal(t, "hel", string(rest))
	assert.Empty(t, sink.content, "Content must not run yet — the caller hasn't fed rest back in")
	assert.Equal(t, 1, sink.headerCompleteCalls)
}

// TestParser_Feed_BodylessRequestSkipsStraightToMessageComplete checks that
// a bodyless request never raises a separate HeadersReady: a connector
// that only dispatches on HeadersReady would otherwise never run it.
func TestParser_Feed_BodylessRequestSkipsStraightToMessageComplete(t *testing.T) {
	sink := &fakeSink{}
	p := newTestParser(sink)

	rest, ev := p.Feed([]byte("GET / HTTP/1.1\r\n\r\n"))

	assert.Equal(t, MessageComplete, ev)
	assert.Empty(t, rest)
}

// TestParser_Feed_StopsAtFirstMessageBoundaryEvenWithMoreBuffered ensures a
// single Feed call never silently runs two requests through the same Sink:
// the second request's raw bytes must come back as rest, untouched, rather
// than triggering a second StartRequest before the caller has dispatched
// and reset for the first.
func TestParser_Feed_StopsAtFirstMessageBoundaryEvenWithMoreBuffered(t *testing.T) {
	sink := &fakeSink{}
	p := newTestParser(sink)

	rest, ev := p.Feed([]byte("GET /a HTTP/1.1\r\n\r\nGET /b HTTP/1.1\r\n\r\n"))

	assert.Equal(t, MessageComplete, ev)
	assert.Equal(t, "GET /b HTTP/1.1\r\n\r\n", string(rest))
	assert.Equal(t, "/a", sink.startedRawURI)
	assert.Equal(t, 1, sink.headerCompleteCalls)
}

func TestParser_Dead_TrueOnlyAfterBadMessage(t *testing.T) {
	sink := &fakeSink{}
	p := newTestParser(sink)

	assert.False(t, p.Dead())

	feedAll(p, []byte("FROB / HTTP/1.1\r\n\r\n"))

	assert.True(t, p.Dead())
}
