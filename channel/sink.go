package channel

import (
	"io"
	"strings"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"github.com/duskhttp/dusk/http/method"
	"github.com/duskhttp/dusk/http/mime"
	"github.com/duskhttp/dusk/http/status"
	"github.com/duskhttp/dusk/http/uri"
	"github.com/duskhttp/dusk/http/version"
	"github.com/duskhttp/dusk/internal/strutil"
	"github.com/duskhttp/dusk/kv"
)

// dateLayout is the RFC 7231 wire format for the Date header. Defined
// locally rather than pulled from net/http.TimeFormat: nothing else in
// this module imports net/http, and this core is itself an HTTP server
// implementation, not a client of one.
const dateLayout = "Mon, 02 Jan 2006 15:04:05 GMT"

// StartRequest is the parser's first callback per request. It resets the
// per-request expectation flags, stamps the arrival time when none is
// recorded yet (Request.Recycle clears it, so every request on a
// keep-alive connection gets its own), and decodes/canonicalises the
// request-target into Request.Path.
func (c *Channel) StartRequest(m method.Method, rawMethod, rawURI string, v version.Version) bool {
	c.expectContinue = false
	c.expectProcessing = false
	c.expectUnsupported = false

	if c.Request.Timestamp.IsZero() {
		c.Request.SetTimeStamp(time.Now())
	}

	c.Request.SetMethod(m, rawMethod)
	c.Request.SetURI(rawURI)
	c.Request.SetHTTPVersion(v)

	if m == method.CONNECT {
		host, port := uri.SplitAuthority(rawURI)
		c.Request.SetServerName(host)
		c.Request.SetServerPort(port)
		c.Request.SetPathInfo(rawURI)
		return false
	}

	path, query := uri.SplitTarget(rawURI)
	c.Request.Query = query

	rawPath := []byte(path)
	if !utf8.Valid(rawPath) {
		c.logf("channel: request path %q is not valid UTF-8, decoding as ISO-8859-1", path)
	}

	c.Request.SetPathInfo(uri.Clean(uri.DecodePath(rawPath)))

	return false
}

// ParsedHeader appends (name, value) to the request header multimap and
// applies the two special cases spec calls out: Expect and Content-Type.
// A folded continuation line arrives with an empty name; it is appended
// onto the previous header's value in place rather than creating a blank
// key.
func (c *Channel) ParsedHeader(name, value string) bool {
	if name == "" {
		if pairs := c.Request.Headers.Expose(); len(pairs) > 0 {
			pairs[len(pairs)-1].Value += " " + value
		}
		return false
	}

	c.Request.Headers.Add(name, value)

	switch {
	case strutil.CmpFold(name, "Expect"):
		c.parseExpect(value)
	case strutil.CmpFold(name, "Content-Type"):
		if cs, ok := mime.ParseCharset(value); ok {
			c.Request.SetCharacterEncodingUnchecked(cs)
		}
	}

	return false
}

// parseExpect looks up the Expect header's token(s) in the known set
// (100-continue, 102-processing), setting expectUnsupported for anything
// else. A single token is the common case and skips the split/trim pass
// a comma-separated list requires.
func (c *Channel) parseExpect(value string) {
	if !strings.ContainsRune(value, ',') {
		c.applyExpectToken(strutil.LStripWS(strutil.RStripWS(value)))
		return
	}

	for _, tok := range strings.Split(value, ",") {
		c.applyExpectToken(strutil.LStripWS(strutil.RStripWS(tok)))
	}
}

func (c *Channel) applyExpectToken(tok string) {
	switch {
	case strutil.CmpFold(tok, "100-continue"):
		c.expectContinue = true
	case strutil.CmpFold(tok, "102-processing"):
		c.expectProcessing = true
	default:
		c.expectUnsupported = true
	}
}

// ParsedHostHeader forwards a Host header (or CONNECT authority) the
// parser split into host/port parts.
func (c *Channel) ParsedHostHeader(host, port string) bool {
	c.Request.SetServerName(host)
	c.Request.SetServerPort(port)
	return false
}

// HeaderComplete increments the "requests handled" counter, decides
// connection persistence per the request's HTTP version, and — for
// HTTP/1.1 with an unsupported Expect token — short-circuits straight to
// a synthetic 417 (its body taken from config.HTTP.OnExpectationFailed
// when set, the default text otherwise).
//
// The HTTP/1.0-keep-alive branch deliberately never evaluates
// expectUnsupported: preserved as specified (see DESIGN.md's "Open
// Questions resolved") rather than fixed, since spec's design notes flag
// this ordering as possibly-buggy but ask for it to be kept as-is.
func (c *Channel) HeaderComplete() bool {
	atomic.AddUint64(&c.handledCount, 1)

	switch c.Request.Version {
	case version.HTTP09:
		c.Request.SetPersistent(false)

	case version.HTTP10:
		persistent := containsToken(c.Request.Headers.Value("Connection"), "keep-alive")
		c.Request.SetPersistent(persistent)
		if persistent {
			c.Response.Fields().Add("Connection", "keep-alive")
		}

	case version.HTTP11:
		persistent := !containsToken(c.Request.Headers.Value("Connection"), "close")
		c.Request.SetPersistent(persistent)
		if !persistent {
			c.Response.Fields().Add("Connection", "close")
		}
		if c.expectUnsupported {
			var body []byte
			if c.Config.HTTP.OnExpectationFailed != nil {
				body = c.Config.HTTP.OnExpectationFailed()
			}
			c.respondSynthetic(status.ExpectationFailed, "", body)
			return true
		}

	default:
		c.Request.SetPersistent(false)
	}

	if c.Config.HTTP.SendDate {
		c.Response.Fields().Set("Date", c.Request.Timestamp.UTC().Format(dateLayout))
	}

	return c.expectContinue
}

func containsToken(headerValue, token string) bool {
	for _, part := range strings.Split(headerValue, ",") {
		if strutil.CmpFold(strutil.LStripWS(strutil.RStripWS(part)), token) {
			return true
		}
	}
	return false
}

// Content appends a body chunk to the Request's Input and always asks the
// parser to suspend, letting the application drain what's arrived so far
// before more is fed in.
func (c *Channel) Content(buffer []byte) bool {
	if err := c.Request.Input.Write(buffer); err != nil {
		c.logf("channel: input write: %v", err)
		c.Request.Input.Shutdown(err)
	}
	return true
}

// MessageComplete shuts the Input down (no more producer writes) and asks
// the parser to suspend.
func (c *Channel) MessageComplete(length int) bool {
	c.Request.Input.Shutdown(nil)
	return true
}

// EarlyEOF shuts the Input down but — unlike MessageComplete — does not
// ask the parser to suspend, letting the dispatch loop observe the EOF on
// its own. Preserved asymmetrically, as specified.
func (c *Channel) EarlyEOF() bool {
	c.Request.Input.Shutdown(io.EOF)
	return false
}

// BadMessage answers a malformed request with a synthetic response,
// bypassing the application entirely, and drives the State all the way to
// COMPLETED itself — by routing through the same finishCompletion a
// dispatch pass would, so Transport.ChannelCompleted() still fires exactly
// once, never zero times.
func (c *Channel) BadMessage(code status.Code, reason string) bool {
	return c.respondSynthetic(code, reason, nil)
}

// respondSynthetic is what BadMessage answers with; HeaderComplete's
// Expect-unsupported short-circuit also goes through it directly so it can
// supply a caller-customised 417 body (config.HTTP.OnExpectationFailed)
// instead of the plain-text default.
func (c *Channel) respondSynthetic(code status.Code, reason string, body []byte) bool {
	if code < 400 || code > 599 {
		code = status.BadRequest
	}
	if reason == "" {
		reason = string(status.Text(code))
	}

	if !c.State.Handling() {
		// A dispatch is already under way — most likely the handler is
		// blocked reading Request.Body() when the malformed body turned
		// up. Committing here too would race whatever that handler is
		// about to write, so force its own Unhandle to land in
		// COMPLETING instead and let the in-flight Run drive
		// finishCompletion when it unwinds.
		c.State.Error(status.NewError(code, reason))
		return true
	}

	info := ResponseInfo{
		Version:       version.HTTP11,
		Headers:       kv.New(),
		ContentLength: int64(len(body)),
		Status:        code,
		Reason:        reason,
		IsHead:        false,
	}
	if won, err := c.commitResponse(info, body, true); !won {
		c.logf("channel: bad_message: lost the commit race for synthetic %d", code)
	} else if err != nil {
		c.logf("channel: bad_message: transport commit: %v", err)
	}

	c.State.Unhandle()
	c.finishCompletion()

	return true
}
