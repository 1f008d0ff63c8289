// Package connector is spec's "Connector (executor + scheduler + server
// handle)" the Channel borrows but never owns: it accepts connections,
// builds a Channel per connection, runs the dual-goroutine read/dispatch
// loop each one needs (see conn.go), and answers ScheduleTimeout/
// Redispatch/Running for every Channel it owns.
//
// Grounded on the teacher's indi.go (App: Listen/TLS/HTTPS/AutoHTTPS/
// Serve/GracefulStop/Stop) and internal/server/tcp (the accept loop and
// per-connection bookkeeping).
package connector

import (
	"log"
	"net"
	"sync"
	"sync/atomic"

	"github.com/duskhttp/dusk/channel"
	"github.com/duskhttp/dusk/config"
)

// acceptor owns one net.Listener and every connection it has accepted,
// exactly like the teacher's internal/server/tcp.Server — down to
// Stop/GracefulShutdown's two different teardown strengths.
type acceptor struct {
	sock net.Listener

	mu       sync.Mutex
	conns    map[net.Conn]struct{}
	shutdown bool

	onConn func(net.Conn)
}

func newAcceptor(sock net.Listener, onConn func(net.Conn)) *acceptor {
	return &acceptor{
		sock:   sock,
		conns:  make(map[net.Conn]struct{}),
		onConn: onConn,
	}
}

func (a *acceptor) start() error {
	wg := new(sync.WaitGroup)

	for {
		c, err := a.sock.Accept()
		if err != nil {
			wg.Wait()

			a.mu.Lock()
			shutdown := a.shutdown
			a.mu.Unlock()

			if shutdown {
				return nil
			}
			return err
		}

		a.mu.Lock()
		a.conns[c] = struct{}{}
		a.mu.Unlock()

		wg.Add(1)
		go a.handle(wg, c)
	}
}

func (a *acceptor) handle(wg *sync.WaitGroup, c net.Conn) {
	defer wg.Done()
	a.onConn(c)

	a.mu.Lock()
	delete(a.conns, c)
	a.mu.Unlock()
}

// stopListener marks the acceptor as shutting down and closes the
// listening socket, without touching any connection already accepted.
func (a *acceptor) stopListener() error {
	a.mu.Lock()
	a.shutdown = true
	a.mu.Unlock()
	return a.sock.Close()
}

// stop closes the listener and every open connection immediately.
func (a *acceptor) stop() error {
	if err := a.stopListener(); err != nil {
		return err
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	for c := range a.conns {
		_ = c.Close()
	}
	return nil
}

// listenerSpec is one Listen/TLS/HTTPS/AutoHTTPS call recorded against
// the Server, resolved into a real net.Listener only once Serve runs —
// exactly the teacher's Listener{Port, Constructor, Encryption}.
type listenerSpec struct {
	addr        string
	constructor ListenerConstructor
}

// Server is the connector's builder and server handle: addresses to
// listen on, the Router every accepted connection dispatches into, and
// the Config every Channel borrows.
type Server struct {
	router channel.Router
	cfg    *config.Config
	logger *log.Logger

	listenerSpecs []listenerSpec
	acceptors     []*acceptor

	running atomic.Bool

	onStart, onStop func()
	errCh           chan error
}

// NewServer returns a Server dispatching into r with cfg (config.Default()
// if nil). Call Listen/TLS/HTTPS/AutoHTTPS to add listeners, then Serve.
func NewServer(r channel.Router, cfg *config.Config) *Server {
	if cfg == nil {
		cfg = config.Default()
	}

	return &Server{
		router: r,
		cfg:    cfg,
		logger: log.Default(),
		errCh:  make(chan error),
	}
}

// SetLogger overrides the *log.Logger every accepted connection's Channel
// logs through. Must be called before Serve.
func (s *Server) SetLogger(l *log.Logger) *Server {
	s.logger = l
	return s
}

// Listen adds a plain TCP listener at addr.
func (s *Server) Listen(addr string) *Server {
	return s.addListener(addr, net.Listen)
}

// TLS adds a listener at addr built by constructor — ordinarily one of
// TLSListener or AutoTLSListener.
func (s *Server) TLS(addr string, constructor ListenerConstructor) *Server {
	return s.addListener(addr, constructor)
}

// HTTPS adds a TLS listener serving the given certificate/key pair.
func (s *Server) HTTPS(addr, cert, key string) *Server {
	return s.TLS(addr, TLSListener(cert, key))
}

// AutoHTTPS adds a TLS listener that obtains certificates automatically:
// ACME for a real domain, or a generated self-signed certificate when
// addr's host is a loopback address (ACME has no authority to issue
// against localhost).
func (s *Server) AutoHTTPS(addr string, domains ...string) *Server {
	if isLocalAddr(addr) {
		cert, key, err := generateSelfSignedCert()
		if err != nil {
			s.logger.Printf("connector: auto https: can't generate self-signed cert: %s, disabling TLS", err)
			return s
		}
		return s.HTTPS(addr, cert, key)
	}

	return s.TLS(addr, AutoTLSListener(domains...))
}

func (s *Server) addListener(addr string, constructor ListenerConstructor) *Server {
	s.listenerSpecs = append(s.listenerSpecs, listenerSpec{addr: addr, constructor: constructor})
	return s
}

// NotifyOnStart registers cb to run once every listener is accepting
// connections.
func (s *Server) NotifyOnStart(cb func()) *Server {
	s.onStart = cb
	return s
}

// NotifyOnStop registers cb to run once every listener and connection has
// shut down.
func (s *Server) NotifyOnStop(cb func()) *Server {
	s.onStop = cb
	return s
}

// Running reports whether the Server is still accepting dispatch-loop
// iterations — the precondition channel.Connector.Running exposes to the
// Channel's own dispatch loop.
func (s *Server) Running() bool {
	return s.running.Load()
}

// Serve resolves every registered listener and blocks until GracefulStop
// or Stop is called (or a listener fails outright), mirroring the
// teacher's App.Serve/App.run.
func (s *Server) Serve() error {
	if len(s.listenerSpecs) == 0 {
		s.Listen(":0")
	}

	for _, spec := range s.listenerSpecs {
		sock, err := spec.constructor("tcp", spec.addr)
		if err != nil {
			return err
		}
		s.acceptors = append(s.acceptors, newAcceptor(sock, s.onConn))
	}

	s.running.Store(true)

	var failSilently atomic.Bool

	for _, a := range s.acceptors {
		go func(a *acceptor) {
			err := a.start()

			if failSilently.Swap(true) {
				return
			}
			s.errCh <- err
		}(a)
	}

	if s.onStart != nil {
		s.onStart()
	}

	err := <-s.errCh

	s.running.Store(false)

	if err == ErrGracefulShutdown {
		for _, a := range s.acceptors {
			_ = a.stopListener()
		}
	} else {
		for _, a := range s.acceptors {
			_ = a.stop()
		}
	}

	if s.onStop != nil {
		s.onStop()
	}

	return err
}

// GracefulStop stops accepting new connections but lets every connection
// already being served run to completion. Non-blocking: Serve is still
// running when this call returns.
func (s *Server) GracefulStop() {
	s.errCh <- ErrGracefulShutdown
}

// Stop tears the whole server down immediately, connections included.
// Non-blocking: Serve is still running when this call returns.
func (s *Server) Stop() {
	s.errCh <- ErrShutdown
}

func (s *Server) onConn(netConn net.Conn) {
	c := newConn(netConn, s.cfg, s.router, s)
	c.serve()
}

func isLocalAddr(addr string) bool {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		host = addr
	}
	if host == "" || host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
