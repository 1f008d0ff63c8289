// Package router is the application surface a Channel dispatches into:
// the "servlet tree" spec's scope explicitly excludes from the Channel
// itself but that a runnable server still needs. It is deliberately thin
// — an exact-path/method table plus prefix catchers, no radix tree —
// since routing logic beyond the minimal Router interface is out of
// scope; what's here exists to exercise channel.Router end-to-end, not
// to compete with a real router.
package router

import (
	"errors"
	"strings"

	"github.com/duskhttp/dusk/channel"
	"github.com/duskhttp/dusk/http/method"
	"github.com/duskhttp/dusk/http/status"
)

// Handler answers one request (or one resumed async dispatch) by mutating
// req.Respond(). Returning an error is equivalent to the teacher's handler
// panicking or returning a non-nil error: the Channel's handleException
// takes over.
type Handler func(req *channel.Request) error

// Middleware wraps a Handler, à la the teacher's inbuilt.Middleware: it
// receives the next handler in the chain and must itself call it (or not)
// to decide whether the request proceeds.
type Middleware func(next Handler) Handler

// Catcher answers any request whose path starts with Prefix and that no
// exact route claimed — the teacher's use case is serving static files
// out of a directory tree.
type Catcher struct {
	Prefix  string
	Handler Handler
}

// Router is a channel.Router: an exact-match route table keyed by path
// then method, a list of prefix catchers consulted when no exact route
// matches, and a status-code-keyed table of error pages.
type Router struct {
	routes        map[string]map[method.Method]Handler
	catchers      []Catcher
	middlewares   []Middleware
	errorHandlers map[status.Code]Handler
}

// New returns an empty Router with the teacher's one non-generic default
// error page wired in (405's Allow header).
func New() *Router {
	return &Router{
		routes:        make(map[string]map[method.Method]Handler),
		errorHandlers: defaultErrorHandlers(),
	}
}

// Use appends a middleware applied to every route and catcher registered
// afterwards — matching the teacher's registration-order semantics rather
// than retroactively wrapping routes already added.
func (r *Router) Use(mw Middleware) *Router {
	r.middlewares = append(r.middlewares, mw)
	return r
}

// Route registers handler for method m at path, composed with every
// middleware installed via Use so far.
func (r *Router) Route(m method.Method, path string, handler Handler) *Router {
	methods := r.routes[path]
	if methods == nil {
		methods = make(map[method.Method]Handler)
		r.routes[path] = methods
	}
	methods[m] = compose(handler, r.middlewares)
	return r
}

func (r *Router) Get(path string, handler Handler) *Router    { return r.Route(method.GET, path, handler) }
func (r *Router) Post(path string, handler Handler) *Router   { return r.Route(method.POST, path, handler) }
func (r *Router) Put(path string, handler Handler) *Router    { return r.Route(method.PUT, path, handler) }
func (r *Router) Delete(path string, handler Handler) *Router { return r.Route(method.DELETE, path, handler) }
func (r *Router) Patch(path string, handler Handler) *Router  { return r.Route(method.PATCH, path, handler) }

// Catch registers a prefix catcher, consulted in registration order after
// an exact route lookup misses entirely (not after a method mismatch —
// that still renders 405).
func (r *Router) Catch(prefix string, handler Handler) *Router {
	r.catchers = append(r.catchers, Catcher{Prefix: prefix, Handler: compose(handler, r.middlewares)})
	return r
}

// RouteError overrides (or adds) the page rendered for a given status
// code when Response.SendError reaches out to this Router.
func (r *Router) RouteError(code status.Code, handler Handler) *Router {
	r.errorHandlers[code] = handler
	return r
}

func compose(h Handler, mws []Middleware) Handler {
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}
	return h
}

// OnRequest implements channel.Router: the initial dispatch pass.
func (r *Router) OnRequest(req *channel.Request) error {
	return r.dispatch(req)
}

// OnAsync implements channel.Router: a resumed dispatch pass. The route
// table lookup is idempotent on (Method, Path), so re-resolving is
// correct — it's the same request being handed back to the same handler.
func (r *Router) OnAsync(req *channel.Request) error {
	return r.dispatch(req)
}

func (r *Router) dispatch(req *channel.Request) error {
	handler, allow, found := r.resolve(req.Path, req.Method)
	if found {
		return handler(req)
	}

	if allow != "" {
		req.SetAttribute("router.allow", allow)
		return req.Respond().SendError(status.MethodNotAllowed, "")
	}

	if handler := r.matchCatcher(req.Path); handler != nil {
		return handler(req)
	}

	return req.Respond().SendError(status.NotFound, "")
}

func (r *Router) resolve(path string, m method.Method) (handler Handler, allow string, found bool) {
	methods, ok := r.routes[path]
	if !ok {
		return nil, "", false
	}

	if h, ok := methods[m]; ok {
		return h, "", true
	}

	// HEAD falls back to GET, exactly as the teacher's obtainer does: a
	// route only ever registers a body-producing GET handler, and the
	// Transport already suppresses the body for a HEAD request.
	if m == method.HEAD {
		if h, ok := methods[method.GET]; ok {
			return h, "", true
		}
	}

	return nil, allowedMethods(methods), false
}

func (r *Router) matchCatcher(path string) Handler {
	for _, c := range r.catchers {
		if strings.HasPrefix(path, c.Prefix) {
			return c.Handler
		}
	}
	return nil
}

func allowedMethods(methods map[method.Method]Handler) string {
	var b strings.Builder
	for _, m := range method.List {
		if _, ok := methods[m]; ok {
			if b.Len() > 0 {
				b.WriteByte(',')
			}
			b.WriteString(m.String())
		}
	}
	return b.String()
}

// errDeclined is OnError's signal to Response.SendError that no page is
// registered for this code, so SendError should fall back to its own
// minimal text/plain body.
var errDeclined = errors.New("router: no error handler registered")

// OnError implements channel.Router: Response.SendError's first refusal
// at rendering an error page. code is recovered from err via
// status.HTTPError — the only shape handleException and SendError ever
// hand this method (see channel/exceptions.go, channel/response.go).
func (r *Router) OnError(req *channel.Request, err error) error {
	code := status.InternalServerError
	var httpErr status.HTTPError
	if errors.As(err, &httpErr) {
		code = httpErr.Code
	}

	handler, ok := r.errorHandlers[code]
	if !ok {
		return errDeclined
	}

	return handler(req)
}
