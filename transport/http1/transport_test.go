package http1

import (
	"io"
	"net"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/duskhttp/dusk/channel"
	"github.com/duskhttp/dusk/config"
	"github.com/duskhttp/dusk/http/status"
	"github.com/duskhttp/dusk/http/version"
	"github.com/duskhttp/dusk/kv"
)

// newTestTransport wires a Transport to one end of a net.Pipe and starts
// draining the other end concurrently — net.Pipe is unbuffered, so a
// Commit/Write that flushes would otherwise deadlock against a reader that
// hasn't started yet. out() blocks until the client side sees EOF, which
// happens either because the Transport closed its end (shouldClose) or the
// test closes the client end itself once it's read enough.
func newTestTransport(t *testing.T, cfg *config.Config) (tr *Transport, client net.Conn, out func() []byte) {
	t.Helper()
	server, client := net.Pipe()

	if cfg == nil {
		cfg = config.Default()
	}

	read := make(chan []byte, 1)
	go func() {
		buf, _ := io.ReadAll(client)
		read <- buf
	}()

	return NewTransport(server, cfg), client, func() []byte { return <-read }
}

func TestTransport_CommitWithKnownLengthWritesWholeResponse(t *testing.T) {
	tr, client, out := newTestTransport(t, nil)

	headers := kv.New()
	headers.Set("Content-Type", "text/plain")
	info := channel.ResponseInfo{
		Version:       version.HTTP11,
		Headers:       headers,
		ContentLength: 2,
		Status:        status.OK,
		Reason:        "OK",
	}

	require.NoError(t, tr.Commit(info, []byte("hi"), true))
	require.NoError(t, tr.ChannelCompleted())
	client.Close()

	got := string(out())
	assert.Contains(t, got, "HTTP/1.1 200 OK\r\n")
	assert.Contains(t, got, "Content-Type: text/plain\r\n")
	assert.True(t, len(got) >= 2 && got[len(got)-2:] == "hi")
}

// TestTransport_CommitRendersContentLengthWhenHandlerDidNotSetOne covers a
// synthetic response (bad_message, the 417) that only sets the
// ResponseInfo.ContentLength field and never touches info.Headers itself —
// Commit must still render the framing header, not just pick the body mode
// off it internally.
func TestTransport_CommitRendersContentLengthWhenHandlerDidNotSetOne(t *testing.T) {
	tr, client, out := newTestTransport(t, nil)

	info := channel.ResponseInfo{
		Version:       version.HTTP11,
		Headers:       kv.New(),
		ContentLength: 5,
		Status:        status.BadRequest,
		Reason:        "Bad Request",
	}

	require.NoError(t, tr.Commit(info, []byte("hello"), true))
	client.Close()

	got := string(out())
	assert.Contains(t, got, "Content-Length: 5\r\n")
	assert.NotContains(t, got, "Transfer-Encoding")
}

// TestTransport_CommitDoesNotDuplicateAnExplicitContentLength covers the
// builder path (response.go's String/Bytes/JSON already set the header
// themselves) — Commit must not render a second one.
func TestTransport_CommitDoesNotDuplicateAnExplicitContentLength(t *testing.T) {
	tr, client, out := newTestTransport(t, nil)

	headers := kv.New()
	headers.Set("Content-Length", "2")
	info := channel.ResponseInfo{
		Version:       version.HTTP11,
		Headers:       headers,
		ContentLength: 2,
		Status:        status.OK,
		Reason:        "OK",
	}

	require.NoError(t, tr.Commit(info, []byte("hi"), true))
	client.Close()

	got := string(out())
	assert.Equal(t, 1, strings.Count(got, "Content-Length:"))
}

// TestTransport_100ContinueCarriesNoFramingHeader covers the interim
// response continue_100 commits: ContentLength: 0, no body — it must go
// out as a bare status line and blank line, with no Content-Length or
// Transfer-Encoding header a strict client would read a body off of.
func TestTransport_100ContinueCarriesNoFramingHeader(t *testing.T) {
	tr, client, out := newTestTransport(t, nil)

	info := channel.ResponseInfo{
		Version:       version.HTTP11,
		Headers:       kv.New(),
		ContentLength: 0,
		Status:        status.Continue,
		Reason:        "Continue",
	}

	require.NoError(t, tr.Commit(info, nil, false))

	okInfo := channel.ResponseInfo{
		Version:       version.HTTP11,
		Headers:       kv.New(),
		ContentLength: 2,
		Status:        status.OK,
		Reason:        "OK",
	}
	require.NoError(t, tr.Commit(okInfo, []byte("ok"), true))
	require.NoError(t, tr.ChannelCompleted())
	client.Close()

	got := string(out())
	assert.Contains(t, got, "HTTP/1.1 100 Continue\r\n\r\n")
	assert.NotContains(t, got, "100 Continue\r\nContent-Length")
	assert.NotContains(t, got, "100 Continue\r\nTransfer-Encoding")
}

func TestTransport_ChunkedFramingForUnknownLengthHTTP11(t *testing.T) {
	tr, client, out := newTestTransport(t, nil)

	info := channel.ResponseInfo{
		Version:       version.HTTP11,
		Headers:       kv.New(),
		ContentLength: -1,
		Status:        status.OK,
		Reason:        "OK",
	}

	require.NoError(t, tr.Commit(info, []byte("abc"), false))
	require.NoError(t, tr.Write([]byte("de"), true))
	client.Close()

	got := string(out())
	assert.Contains(t, got, "Transfer-Encoding: chunked\r\n")
	assert.Contains(t, got, "3\r\nabc\r\n")
	assert.Contains(t, got, "2\r\nde\r\n")
	assert.Contains(t, got, "0\r\n\r\n")
}

func TestTransport_UnknownLengthHTTP10ClosesConnection(t *testing.T) {
	tr, _, out := newTestTransport(t, nil)

	info := channel.ResponseInfo{
		Version:       version.HTTP10,
		Headers:       kv.New(),
		ContentLength: -1,
		Status:        status.OK,
		Reason:        "OK",
	}

	require.NoError(t, tr.Commit(info, []byte("body"), true))
	require.NoError(t, tr.ChannelCompleted())

	got := out()
	assert.Contains(t, string(got), "body")
	assert.True(t, tr.closed)
}

func TestTransport_ConnectionCloseHeaderClosesAfterComplete(t *testing.T) {
	tr, _, out := newTestTransport(t, nil)

	headers := kv.New()
	headers.Add("Connection", "close")
	info := channel.ResponseInfo{
		Version:       version.HTTP11,
		Headers:       headers,
		ContentLength: 0,
		Status:        status.OK,
		Reason:        "OK",
	}

	require.NoError(t, tr.Commit(info, nil, true))
	require.NoError(t, tr.ChannelCompleted())
	assert.True(t, tr.closed)
	out()
}

func TestTransport_HeadRequestSuppressesBody(t *testing.T) {
	tr, client, out := newTestTransport(t, nil)

	headers := kv.New()
	headers.Set("Content-Length", "2")
	info := channel.ResponseInfo{
		Version:       version.HTTP11,
		Headers:       headers,
		ContentLength: 2,
		Status:        status.OK,
		Reason:        "OK",
		IsHead:        true,
	}

	require.NoError(t, tr.Commit(info, []byte("hi"), true))
	client.Close()

	got := string(out())
	assert.Contains(t, got, "Content-Length: 2\r\n")
	assert.NotContains(t, got, "hi")
}

func TestTransport_DefaultHeaderOverriddenByHandler(t *testing.T) {
	cfg := config.Default()
	cfg.Headers.Default["Server"] = "dusk"
	tr, client, out := newTestTransport(t, cfg)

	headers := kv.New()
	headers.Set("Server", "custom")
	info := channel.ResponseInfo{
		Version:       version.HTTP11,
		Headers:       headers,
		ContentLength: 0,
		Status:        status.OK,
		Reason:        "OK",
	}

	require.NoError(t, tr.Commit(info, nil, true))
	client.Close()

	got := string(out())
	assert.Contains(t, got, "Server: custom\r\n")
	assert.NotContains(t, got, "Server: dusk\r\n")
}

func TestTransport_DefaultHeaderAppliedWhenNotOverridden(t *testing.T) {
	cfg := config.Default()
	cfg.Headers.Default["Server"] = "dusk"
	tr, client, out := newTestTransport(t, cfg)

	info := channel.ResponseInfo{
		Version:       version.HTTP11,
		Headers:       kv.New(),
		ContentLength: 0,
		Status:        status.OK,
		Reason:        "OK",
	}

	require.NoError(t, tr.Commit(info, nil, true))
	client.Close()

	got := string(out())
	assert.Contains(t, got, "Server: dusk\r\n")
}

func TestTransport_WriteBeforeCommitErrors(t *testing.T) {
	tr, client, _ := newTestTransport(t, nil)
	defer client.Close()

	err := tr.Write([]byte("x"), true)
	assert.ErrorIs(t, err, errNotCommitted)
}

func TestTransport_CommitAfterCloseErrors(t *testing.T) {
	tr, client, _ := newTestTransport(t, nil)
	defer client.Close()

	tr.closed = true

	info := channel.ResponseInfo{
		Version: version.HTTP11,
		Headers: kv.New(),
		Status:  status.OK,
	}
	err := tr.Commit(info, nil, true)
	assert.ErrorIs(t, err, net.ErrClosed)
}
