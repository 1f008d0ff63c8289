package connector

import "errors"

// ErrGracefulShutdown and ErrShutdown are the two ways Server.run's
// accept loop ever returns cleanly, mirrored from the teacher's
// status.ErrGracefulShutdown/status.ErrShutdown: a connector-lifecycle
// signal, not an HTTP status, so it lives here rather than in
// http/status.
var (
	// ErrGracefulShutdown is sent by GracefulStop: new connections stop
	// being accepted, but every connection already being served runs to
	// its own natural completion.
	ErrGracefulShutdown = errors.New("connector: graceful shutdown requested")
	// ErrShutdown is sent by Stop: every acceptor and every open
	// connection is torn down immediately.
	ErrShutdown = errors.New("connector: shutdown requested")
)
