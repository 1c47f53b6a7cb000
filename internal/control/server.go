package control

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"os"
	"os/user"
	"path/filepath"
	"sync/atomic"

	"github.com/rs/zerolog"
	"github.com/sourcegraph/conc"

	"github.com/YangYuS8/wayvid/internal/errdefs"
)

// SocketName is the socket file created under XDG_RUNTIME_DIR.
const SocketName = "wayvid.sock"

// SocketPath returns the control socket location: explicit wins, then
// $XDG_RUNTIME_DIR/wayvid.sock, then a per-user path under /tmp.
func SocketPath(explicit string) string {
	if explicit != "" {
		return explicit
	}
	if dir := os.Getenv("XDG_RUNTIME_DIR"); dir != "" {
		return filepath.Join(dir, SocketName)
	}
	name := "unknown"
	if u, err := user.Current(); err == nil {
		name = u.Username
	}
	return filepath.Join(os.TempDir(), fmt.Sprintf("wayvid-%s.sock", name))
}

// Pending is one request waiting for the main loop. Reply must be called
// exactly once.
type Pending struct {
	Req   Request
	reply chan Response
}

// Reply completes the request. A second call is ignored.
func (p *Pending) Reply(r Response) {
	select {
	case p.reply <- r:
	default:
	}
}

// Server accepts control connections and queues decoded requests. Each
// connection gets its own reader goroutine; the only contact with the main
// thread is the pending-command queue plus a wake callback.
type Server struct {
	ln       net.Listener
	path     string
	queue    chan *Pending
	wake     func()
	wg       conc.WaitGroup
	done     atomic.Bool
	shutdown chan struct{}
	log      zerolog.Logger
}

// Listen binds the control socket, replacing a stale one left by a crashed
// process, and starts accepting. wake is invoked after each enqueue so the
// main loop's multiplexer returns.
func Listen(path string, wake func(), log zerolog.Logger) (*Server, error) {
	/* a previous instance may have crashed without unlinking */
	if _, err := os.Stat(path); err == nil {
		if probe, derr := net.Dial("unix", path); derr == nil {
			_ = probe.Close()
			return nil, errdefs.New(errdefs.Environment, "control socket %s is in use", path)
		}
		log.Warn().Str("path", path).Msg("removing stale control socket")
		_ = os.Remove(path)
	}

	ln, err := net.Listen("unix", path)
	if err != nil {
		return nil, errdefs.Wrap(errdefs.Environment, err, "listen on %s", path)
	}
	if err := os.Chmod(path, 0o600); err != nil {
		_ = ln.Close()
		return nil, errdefs.Wrap(errdefs.Environment, err, "chmod %s", path)
	}

	s := &Server{
		ln:       ln,
		path:     path,
		queue:    make(chan *Pending, 16),
		wake:     wake,
		shutdown: make(chan struct{}),
		log:      log,
	}
	s.wg.Go(s.acceptLoop)
	log.Info().Str("path", path).Msg("control channel listening")
	return s, nil
}

// Pending returns the queue of requests for the main loop to drain.
func (s *Server) Pending() <-chan *Pending {
	return s.queue
}

// Path returns the bound socket path.
func (s *Server) Path() string {
	return s.path
}

// Close stops accepting, waits for connection handlers, and unlinks the
// socket.
func (s *Server) Close() {
	if !s.done.CompareAndSwap(false, true) {
		return
	}
	close(s.shutdown)
	_ = s.ln.Close()
	s.wg.Wait()
	_ = os.Remove(s.path)
}

func (s *Server) acceptLoop() {
	for {
		conn, err := s.ln.Accept()
		if err != nil {
			if s.done.Load() || errors.Is(err, net.ErrClosed) {
				return
			}
			s.log.Warn().Err(err).Msg("control accept failed")
			continue
		}
		s.wg.Go(func() { s.serve(conn) })
	}
}

// serve reads newline-framed requests until the peer hangs up. Malformed
// requests are answered in-band and never reach the main loop.
func (s *Server) serve(conn net.Conn) {
	defer conn.Close()
	scan := bufio.NewScanner(conn)
	enc := json.NewEncoder(conn)
	for scan.Scan() {
		line := scan.Bytes()
		if len(line) == 0 {
			continue
		}

		var req Request
		if err := json.Unmarshal(line, &req); err != nil {
			_ = enc.Encode(Fail("malformed request: %v", err))
			continue
		}
		if req.Command == "" {
			_ = enc.Encode(Fail("missing command"))
			continue
		}

		p := &Pending{Req: req, reply: make(chan Response, 1)}
		select {
		case s.queue <- p:
		case <-s.shutdown:
			_ = enc.Encode(Fail("shutting down"))
			return
		}
		if s.wake != nil {
			s.wake()
		}

		var resp Response
		select {
		case resp = <-p.reply:
		case <-s.shutdown:
			/* the main loop stopped draining; answer in-band and drop
			 * the connection */
			resp = Fail("shutting down")
		}
		if err := enc.Encode(resp); err != nil {
			s.log.Debug().Err(err).Msg("control client went away mid-response")
			return
		}
	}
}
