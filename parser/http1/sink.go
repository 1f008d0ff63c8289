package http1

import (
	"github.com/duskhttp/dusk/http/method"
	"github.com/duskhttp/dusk/http/status"
	"github.com/duskhttp/dusk/http/version"
)

// Sink is the parser's only collaborator: the set of callbacks it drives
// as it recognises each piece of an incoming request. *channel.Channel
// satisfies it structurally — this package never imports channel, so
// channel can import parser/http1 without a cycle (it currently does
// not need to, but transport/http1 and connector will).
type Sink interface {
	StartRequest(m method.Method, rawMethod, rawURI string, v version.Version) bool
	ParsedHeader(name, value string) bool
	ParsedHostHeader(host, port string) bool
	HeaderComplete() bool
	Content(buffer []byte) bool
	MessageComplete(length int) bool
	EarlyEOF() bool
	BadMessage(code status.Code, reason string) bool
}
