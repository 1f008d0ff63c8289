package router

import (
	"github.com/duskhttp/dusk/channel"
	"github.com/duskhttp/dusk/http/status"
)

// defaultErrorHandlers mirrors the teacher's own minimalism
// (router/inbuilt/defaulterrhandlers.go): the generic
// Response.SendError fallback already renders a perfectly serviceable
// status-text body for every other code, so the only page worth
// overriding is 405 — it's the one response HTTP requires a header on
// that SendError's generic path has no way to know about.
func defaultErrorHandlers() map[status.Code]Handler {
	return map[status.Code]Handler{
		status.MethodNotAllowed: methodNotAllowedHandler,
	}
}

func methodNotAllowedHandler(req *channel.Request) error {
	allow, _ := req.Attribute("router.allow")
	resp := req.Respond().Header("Allow", allow.(string))
	return resp.String(status.MethodNotAllowed, "")
}
