package router

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/duskhttp/dusk/channel"
	"github.com/duskhttp/dusk/http/method"
	"github.com/duskhttp/dusk/http/status"
	"github.com/duskhttp/dusk/http/version"
)

// fakeTransport is the same narrow recorder channel's own tests use,
// reimplemented here since that one is unexported.
type fakeTransport struct {
	commits []commitCall
}

type commitCall struct {
	info     channel.ResponseInfo
	content  []byte
	complete bool
}

func (f *fakeTransport) Commit(info channel.ResponseInfo, content []byte, complete bool) error {
	f.commits = append(f.commits, commitCall{info, content, complete})
	return nil
}

func (f *fakeTransport) Write(content []byte, complete bool) error { return nil }
func (f *fakeTransport) ChannelCompleted() error                   { return nil }

func newTestChannel(t *testing.T, r *Router) (*channel.Channel, *fakeTransport) {
	t.Helper()
	ch := channel.New(nil)
	tr := &fakeTransport{}
	ch.Transport = tr
	ch.Router = r
	require.False(t, ch.StartRequest(method.GET, "GET", "/", version.HTTP11))
	require.False(t, ch.HeaderComplete())
	return ch, tr
}

func TestRouter_ExactRouteMatch(t *testing.T) {
	r := New()
	called := false
	r.Get("/hello", func(req *channel.Request) error {
		called = true
		return req.Respond().String(status.OK, "hi")
	})

	ch, tr := newTestChannel(t, r)
	ch.Request.SetPathInfo("/hello")

	require.NoError(t, r.OnRequest(ch.Request))
	assert.True(t, called)
	require.Len(t, tr.commits, 1)
	assert.Equal(t, status.OK, tr.commits[0].info.Status)
}

func TestRouter_HeadFallsBackToGet(t *testing.T) {
	r := New()
	r.Get("/hello", func(req *channel.Request) error {
		return req.Respond().String(status.OK, "hi")
	})

	ch, tr := newTestChannel(t, r)
	ch.Request.SetPathInfo("/hello")
	ch.Request.SetMethod(method.HEAD, "HEAD")

	require.NoError(t, r.OnRequest(ch.Request))
	require.Len(t, tr.commits, 1)
	assert.Equal(t, status.OK, tr.commits[0].info.Status)
	assert.True(t, tr.commits[0].info.IsHead)
}

func TestRouter_WrongMethodRenders405WithAllowHeader(t *testing.T) {
	r := New()
	r.Get("/hello", func(req *channel.Request) error {
		return req.Respond().String(status.OK, "hi")
	})
	r.Post("/hello", func(req *channel.Request) error {
		return req.Respond().String(status.OK, "hi")
	})

	ch, tr := newTestChannel(t, r)
	ch.Request.SetPathInfo("/hello")
	ch.Request.SetMethod(method.DELETE, "DELETE")

	require.NoError(t, r.OnRequest(ch.Request))
	require.Len(t, tr.commits, 1)
	assert.Equal(t, status.MethodNotAllowed, tr.commits[0].info.Status)
	assert.Equal(t, "GET,POST", tr.commits[0].info.Headers.Value("Allow"))
}

func TestRouter_UnknownPathFallsBackTo404(t *testing.T) {
	r := New()

	ch, tr := newTestChannel(t, r)
	ch.Request.SetPathInfo("/nope")

	require.NoError(t, r.OnRequest(ch.Request))
	require.Len(t, tr.commits, 1)
	assert.Equal(t, status.NotFound, tr.commits[0].info.Status)
}

func TestRouter_CatcherHandlesUnmatchedPrefix(t *testing.T) {
	r := New()
	var servedPath string
	r.Catch("/static/", func(req *channel.Request) error {
		servedPath = req.Path
		return req.Respond().String(status.OK, "file")
	})

	ch, tr := newTestChannel(t, r)
	ch.Request.SetPathInfo("/static/app.js")

	require.NoError(t, r.OnRequest(ch.Request))
	assert.Equal(t, "/static/app.js", servedPath)
	require.Len(t, tr.commits, 1)
	assert.Equal(t, status.OK, tr.commits[0].info.Status)
}

func TestRouter_ExactRouteTakesPriorityOverCatcher(t *testing.T) {
	r := New()
	r.Catch("/static/", func(req *channel.Request) error {
		t.Fatal("the catcher must not run when an exact route exists")
		return nil
	})
	r.Get("/static/pinned", func(req *channel.Request) error {
		return req.Respond().String(status.OK, "pinned")
	})

	ch, _ := newTestChannel(t, r)
	ch.Request.SetPathInfo("/static/pinned")

	require.NoError(t, r.OnRequest(ch.Request))
}

func TestRouter_MiddlewareRunsInRegistrationOrder(t *testing.T) {
	r := New()
	var order []string
	mw := func(tag string) Middleware {
		return func(next Handler) Handler {
			return func(req *channel.Request) error {
				order = append(order, tag+":before")
				err := next(req)
				order = append(order, tag+":after")
				return err
			}
		}
	}

	r.Use(mw("outer")).Use(mw("inner"))
	r.Get("/x", func(req *channel.Request) error {
		order = append(order, "handler")
		return req.Respond().String(status.OK, "")
	})

	ch, _ := newTestChannel(t, r)
	ch.Request.SetPathInfo("/x")

	require.NoError(t, r.OnRequest(ch.Request))
	assert.Equal(t, []string{"outer:before", "inner:before", "handler", "inner:after", "outer:after"}, order)
}

func TestRouter_MiddlewareRegisteredAfterRouteDoesNotApply(t *testing.T) {
	r := New()
	r.Get("/x", func(req *channel.Request) error {
		return req.Respond().String(status.OK, "")
	})

	ran := false
	r.Use(func(next Handler) Handler {
		return func(req *channel.Request) error {
			ran = true
			return next(req)
		}
	})

	ch, _ := newTestChannel(t, r)
	ch.Request.SetPathInfo("/x")

	require.NoError(t, r.OnRequest(ch.Request))
	assert.False(t, ran, "middleware registered after a route must not retroactively wrap it")
}

func TestRouter_OnAsyncResolvesTheSameRoute(t *testing.T) {
	r := New()
	r.Get("/resume", func(req *channel.Request) error {
		return req.Respond().String(status.OK, "resumed")
	})

	ch, tr := newTestChannel(t, r)
	ch.Request.SetPathInfo("/resume")

	require.NoError(t, r.OnAsync(ch.Request))
	require.Len(t, tr.commits, 1)
	assert.Equal(t, status.OK, tr.commits[0].info.Status)
}

func TestRouter_OnErrorUsesRegisteredHandler(t *testing.T) {
	r := New()
	r.RouteError(status.NotFound, func(req *channel.Request) error {
		return req.Respond().String(status.NotFound, "custom 404")
	})

	ch, tr := newTestChannel(t, r)

	err := r.OnError(ch.Request, status.NewError(status.NotFound, ""))
	require.NoError(t, err)
	require.Len(t, tr.commits, 1)
	assert.Equal(t, status.NotFound, tr.commits[0].info.Status)
}

func TestRouter_OnErrorDeclinesWithoutAHandler(t *testing.T) {
	r := New()
	ch, tr := newTestChannel(t, r)

	err := r.OnError(ch.Request, status.NewError(status.InternalServerError, ""))
	require.Error(t, err)
	assert.Empty(t, tr.commits, "declining must not itself commit anything")
}

func TestRouter_MethodNotAllowedDefaultHandlerSetsAllowHeader(t *testing.T) {
	r := New()
	r.Get("/x", func(req *channel.Request) error {
		return req.Respond().String(status.OK, "")
	})

	ch, tr := newTestChannel(t, r)
	ch.Request.SetPathInfo("/x")
	ch.Request.SetMethod(method.POST, "POST")

	require.NoError(t, r.OnRequest(ch.Request))
	require.Len(t, tr.commits, 1)
	assert.Equal(t, status.MethodNotAllowed, tr.commits[0].info.Status)
	assert.Equal(t, "GET", tr.commits[0].info.Headers.Value("Allow"))
}
