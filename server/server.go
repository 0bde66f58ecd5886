package server

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/websocket"
	"github.com/samber/lo"
	"github.com/sourcegraph/conc"

	"github.com/wfunc/chessrelay/config"
	"github.com/wfunc/chessrelay/lobby"
	"github.com/wfunc/chessrelay/logger"
	"github.com/wfunc/chessrelay/monitor"
	"github.com/wfunc/chessrelay/network"
	"github.com/wfunc/chessrelay/room"
	relayrpc "github.com/wfunc/chessrelay/rpc"
	"github.com/wfunc/chessrelay/session"
)

const shutdownTimeout = 10 * time.Second

type GameServer struct {
	cfg        *config.Config
	upgrader   websocket.Upgrader
	sessions   *session.Manager
	rooms      *room.Store
	lobby      *lobby.Manager
	dispatcher *lobby.Dispatcher
	monitor    *monitor.Monitor
	validate   *validator.Validate
	conns      conc.WaitGroup
}

func NewGameServer(cfg *config.Config) *GameServer {
	s := &GameServer{
		cfg:        cfg,
		sessions:   session.NewManager(),
		rooms:      room.NewStore(),
		dispatcher: lobby.NewDispatcher(cfg.Lobby.EventBuffer),
		monitor:    monitor.NewMonitor(cfg.Metrics.Namespace),
		validate:   validator.New(validator.WithRequiredStructEnabled()),
	}
	s.lobby = lobby.NewManager(s.rooms, s.sessions, s.monitor)
	s.upgrader = websocket.Upgrader{
		CheckOrigin: s.checkOrigin,
	}
	return s
}

// checkOrigin allows every origin unless websocket.allowed_origins is set.
func (s *GameServer) checkOrigin(r *http.Request) bool {
	allowed := s.cfg.WebSocket.AllowedOrigins
	origin := r.Header.Get("Origin")
	if len(allowed) == 0 || origin == "" {
		return true
	}
	return lo.Contains(allowed, origin)
}

// Handler returns the HTTP routes served by the relay.
func (s *GameServer) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWebSocket)
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.Handle("/metrics", s.monitor.Handler())
	return mux
}

// Start serves until ctx is cancelled, then drains connections and stops
// the dispatcher.
func (s *GameServer) Start(ctx context.Context) error {
	go s.dispatcher.Run(ctx)

	if addr := s.cfg.Server.RPCAddress; addr != "" {
		rpcServer, err := relayrpc.NewServer(addr, relayrpc.NewLobbyService(s.lobby, s.dispatcher))
		if err != nil {
			return err
		}
		go rpcServer.Start()
		defer rpcServer.Stop()
	}

	httpServer := &http.Server{
		Addr:        s.cfg.Server.HTTPAddress,
		Handler:     s.Handler(),
		BaseContext: func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Log.Infof("Relay server listening on %s", s.cfg.Server.HTTPAddress)
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Log.Info("Shutting down relay server.")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	err := httpServer.Shutdown(shutdownCtx)
	s.conns.Wait()
	<-s.dispatcher.Done()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

type healthResponse struct {
	Status      string `json:"status"`
	Rooms       int    `json:"rooms"`
	Connections int    `json:"connections"`
}

func (s *GameServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(healthResponse{
		Status:      "ok",
		Rooms:       s.rooms.Len(),
		Connections: s.sessions.Count(),
	})
}

func (s *GameServer) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Log.Infof("Failed to upgrade connection: %v", err)
		return
	}
	s.handleConnection(r.Context(), conn)
}

func (s *GameServer) connectionOptions() network.Options {
	ws := s.cfg.WebSocket
	return network.Options{
		ReadLimit:  ws.ReadLimit,
		SendBuffer: ws.SendBuffer,
		PingPeriod: ws.PingPeriod,
		PongWait:   ws.PongWait,
		WriteWait:  ws.WriteWait,
	}
}

func (s *GameServer) handleConnection(ctx context.Context, conn *websocket.Conn) {
	wsConn := network.NewWSConnection(conn, s.connectionOptions())
	sess := session.NewSession(session.NewHandle(), wsConn)
	s.sessions.Add(sess)
	s.monitor.IncOnlinePlayers()

	s.conns.Go(func() { wsConn.WritePump(ctx) })

	logger.Log.Infof("New connection from %s, session ID: %s", wsConn.RemoteAddr(), sess.GetID())

	defer func() {
		logger.Log.Infof("Connection closed from %s, session ID: %s", wsConn.RemoteAddr(), sess.GetID())
		s.disconnect(sess)
		s.monitor.DecOnlinePlayers()
		_ = wsConn.Terminate()
	}()

	for {
		msg, err := wsConn.ReadMessage()
		if err != nil {
			var decodeErr *network.DecodeError
			if errors.As(err, &decodeErr) {
				logger.Log.Warnf("Session %s sent a malformed frame: %v", sess.GetID(), err)
				continue
			}
			return
		}
		s.handleMessage(sess, msg)
	}
}

// disconnect ends the session's room and drops it from the registry, in
// that order, on the dispatcher. Once the dispatcher has stopped the
// session is dropped directly.
func (s *GameServer) disconnect(sess *session.Session) {
	err := s.dispatcher.Call(context.Background(), func() {
		s.lobby.HandleDisconnect(sess)
		s.sessions.Remove(sess.GetID())
	})
	if err != nil {
		logger.Log.Infof("Session %s removed without room teardown: %v", sess.GetID(), err)
		s.sessions.Remove(sess.GetID())
	}
}
