package ws

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"scrapyard.dev/internal/protocol"
)

// Backend answers decoded plugin requests. session.Session implements it.
type Backend interface {
	Submit(ctx context.Context, connID string, msg any) (any, error)
}

type Options struct {
	// AllowRemote accepts plugins from other hosts and browser pages from
	// any origin. Off, only loopback peers with a loopback or empty Origin
	// may upgrade.
	AllowRemote bool
}

type Server struct {
	backend Backend
	log     *zap.Logger
	opts    Options

	upgrader websocket.Upgrader
	conns    atomic.Int64
}

func NewServer(b Backend, logger *zap.Logger, opts Options) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		backend: b,
		log:     logger,
		opts:    opts,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  64 * 1024,
			WriteBufferSize: 64 * 1024,
		},
	}
	s.upgrader.CheckOrigin = s.checkOrigin
	return s
}

func (s *Server) checkOrigin(r *http.Request) bool {
	if s.opts.AllowRemote {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil || u.Host == "" {
		return false
	}
	host := u.Hostname()
	if strings.EqualFold(host, "localhost") {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

// IsLoopbackAddr reports whether a host:port remote address is a loopback
// IP.
func IsLoopbackAddr(remoteAddr string) bool {
	host := remoteAddr
	if h, _, err := net.SplitHostPort(remoteAddr); err == nil {
		host = h
	}
	host = strings.TrimPrefix(host, "[")
	host = strings.TrimSuffix(host, "]")
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

// Connections is the number of attached plugins.
func (s *Server) Connections() int64 { return s.conns.Load() }

func (s *Server) Handler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if !s.opts.AllowRemote && !IsLoopbackAddr(r.RemoteAddr) {
			s.log.Warn("remote plugin refused", zap.String("remote", r.RemoteAddr))
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}
		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			s.log.Debug("upgrade failed", zap.String("remote", r.RemoteAddr), zap.Error(err))
			return
		}
		defer conn.Close()

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		connID, out := s.handshake(ctx, conn)
		if connID == "" {
			return
		}
		s.conns.Add(1)
		defer s.conns.Add(-1)
		log := s.log.With(zap.String("conn", connID))
		log.Info("plugin connected", zap.String("remote", r.RemoteAddr))

		// Writer goroutine.
		writerDone := make(chan struct{})
		go func() {
			defer close(writerDone)
			for {
				select {
				case <-ctx.Done():
					return
				case b := <-out:
					_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
					if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
						cancel()
						return
					}
				}
			}
		}()

		// Reader loop.
		for {
			_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
			_, raw, err := conn.ReadMessage()
			if err != nil {
				break
			}
			resp := s.handle(ctx, connID, raw)
			b, err := json.Marshal(resp)
			if err != nil {
				log.Error("encode response", zap.Error(err))
				continue
			}
			select {
			case out <- b:
			case <-ctx.Done():
			default:
				log.Warn("outbound queue full, dropping response")
			}
		}
		cancel()
		<-writerDone
		log.Info("plugin disconnected")
	}
}

func (s *Server) handle(ctx context.Context, connID string, raw []byte) any {
	msg, err := protocol.Decode(raw)
	if err != nil {
		return errorMsg(err, "")
	}
	resp, err := s.backend.Submit(ctx, connID, msg)
	if err != nil {
		base, _ := protocol.DecodeBase(raw)
		return errorMsg(err, base.ReqID)
	}
	return resp
}

func errorMsg(err error, reqID string) protocol.ErrorMsg {
	var perr *protocol.Error
	if errors.As(err, &perr) {
		m := perr.Msg()
		if m.ReqID == "" {
			m.ReqID = reqID
		}
		return m
	}
	return protocol.ErrorMsg{Type: protocol.TypeError, ProtocolVersion: protocol.Version, ReqID: reqID, Code: protocol.ErrInternal, Message: err.Error()}
}

func (s *Server) handshake(ctx context.Context, conn *websocket.Conn) (connID string, out chan []byte) {
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		return "", nil
	}

	base, err := protocol.DecodeBase(msg)
	if err != nil || base.Type != protocol.TypeHello {
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "expected HELLO"), time.Now().Add(time.Second))
		return "", nil
	}

	var hello protocol.HelloMsg
	if err := json.Unmarshal(msg, &hello); err != nil {
		return "", nil
	}
	if hello.ProtocolVersion != protocol.Version {
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "bad protocol_version"), time.Now().Add(time.Second))
		return "", nil
	}
	if hello.ClientName == "" {
		hello.ClientName = "plugin"
	}

	maxQ := hello.MaxQueue
	if maxQ <= 0 {
		maxQ = 8
	}
	if maxQ > 64 {
		maxQ = 64
	}
	out = make(chan []byte, maxQ)

	connID = uuid.NewString()
	welcome, err := s.backend.Submit(ctx, connID, &hello)
	if err != nil {
		_ = writeJSON(conn, errorMsg(err, ""))
		return "", nil
	}
	if err := writeJSON(conn, welcome); err != nil {
		return "", nil
	}
	return connID, out
}

func writeJSON(conn *websocket.Conn, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return conn.WriteMessage(websocket.TextMessage, b)
}
