package middleware

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/duskhttp/dusk/channel"
	"github.com/duskhttp/dusk/http/method"
	"github.com/duskhttp/dusk/http/status"
	"github.com/duskhttp/dusk/http/version"
	"github.com/duskhttp/dusk/router"
)

type fakeTransport struct{}

func (fakeTransport) Commit(channel.ResponseInfo, []byte, bool) error { return nil }
func (fakeTransport) Write([]byte, bool) error                       { return nil }
func (fakeTransport) ChannelCompleted() error                        { return nil }

type recordingLogger struct {
	lines []string
}

func (l *recordingLogger) Printf(format string, v ...any) {
	l.lines = append(l.lines, fmt.Sprintf(format, v...))
}

func newTestRequest(t *testing.T) *channel.Request {
	t.Helper()
	ch := channel.New(nil)
	ch.Transport = fakeTransport{}
	require.False(t, ch.StartRequest(method.GET, "GET", "/widgets", version.HTTP11))
	require.False(t, ch.HeaderComplete())
	return ch.Request
}

func TestLogRequests_LogsStatusOnSuccess(t *testing.T) {
	logger := &recordingLogger{}
	req := newTestRequest(t)
	req.SetAttribute("request.id", "abc123")

	handler := LogRequests(logger)(func(req *channel.Request) error {
		return req.Respond().String(status.OK, "ok")
	})

	require.NoError(t, handler(req))
	require.Len(t, logger.lines, 1)
	assert.Contains(t, logger.lines[0], "abc123")
	assert.Contains(t, logger.lines[0], "GET")
	assert.Contains(t, logger.lines[0], "/widgets")
	assert.Contains(t, logger.lines[0], "200")
}

func TestLogRequests_LogsErrorWithoutStatus(t *testing.T) {
	logger := &recordingLogger{}
	req := newTestRequest(t)

	boom := fmt.Errorf("boom")
	handler := LogRequests(logger)(func(req *channel.Request) error {
		return boom
	})

	err := handler(req)
	require.ErrorIs(t, err, boom)
	require.Len(t, logger.lines, 1)
	assert.Contains(t, logger.lines[0], "error")
	assert.Contains(t, logger.lines[0], "boom")
}

func TestLogRequests_FansOutToEveryLogger(t *testing.T) {
	a, b := &recordingLogger{}, &recordingLogger{}
	req := newTestRequest(t)

	handler := LogRequests(a, b)(func(req *channel.Request) error {
		return req.Respond().String(status.OK, "")
	})

	require.NoError(t, handler(req))
	require.Len(t, a.lines, 1)
	require.Len(t, b.lines, 1)
}

var _ router.Middleware = LogRequests()
