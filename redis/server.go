package redis

import (
	"errors"
	"strings"

	"github.com/tidwall/redcon"

	"minikv/logger"
)

// Server serves a Store over the Redis protocol.
type Server struct {
	addr   string
	store  Store
	server *redcon.Server
}

func NewServer(addr string, store Store) *Server {
	svr := &Server{addr: addr, store: store}
	svr.server = redcon.NewServer(addr, svr.handle, svr.accept, svr.closed)
	return svr
}

// ListenAndServe blocks until Close is called or the listener fails.
func (svr *Server) ListenAndServe() error {
	logger.Info("minikv RESP server listening", "addr", svr.addr)
	return svr.server.ListenAndServe()
}

func (svr *Server) Close() error {
	return svr.server.Close()
}

func (svr *Server) accept(conn redcon.Conn) bool {
	logger.Debug("Accepted connection", "remote", conn.RemoteAddr())
	return true
}

func (svr *Server) closed(conn redcon.Conn, err error) {
	if err != nil {
		logger.Debug("Connection closed", "remote", conn.RemoteAddr(), "error", err.Error())
	}
}

func (svr *Server) handle(conn redcon.Conn, cmd redcon.Command) {
	reply, err := execute(svr.store, cmd.Args)
	if errors.Is(err, errQuit) {
		conn.WriteString("OK")
		_ = conn.Close()
		return
	}
	if err != nil {
		msg := err.Error()
		if !strings.HasPrefix(msg, "ERR ") {
			msg = "ERR " + msg
		}
		conn.WriteError(msg)
		return
	}
	writeReply(conn, reply)
}

func writeReply(conn redcon.Conn, reply interface{}) {
	switch v := reply.(type) {
	case nil:
		conn.WriteNull()
	case redcon.SimpleString:
		conn.WriteString(string(v))
	case []byte:
		conn.WriteBulk(v)
	case int:
		conn.WriteInt(v)
	default:
		conn.WriteAny(v)
	}
}
