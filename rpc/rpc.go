package rpc

import (
	"context"
	"errors"
	"net"
	"net/rpc"
	"time"

	"github.com/samber/lo"

	"github.com/wfunc/chessrelay/lobby"
	"github.com/wfunc/chessrelay/logger"
	"github.com/wfunc/chessrelay/room"
)

// ServiceName is the name LobbyService is registered under.
const ServiceName = "Lobby"

const callTimeout = 5 * time.Second

// Server manages the RPC listener.
type Server struct {
	listener net.Listener
	address  string
	rpc      *rpc.Server
}

// NewServer listens on addr and serves service there once Start is called.
func NewServer(addr string, service *LobbyService) (*Server, error) {
	srv := rpc.NewServer()
	if err := srv.RegisterName(ServiceName, service); err != nil {
		return nil, err
	}

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	return &Server{
		listener: listener,
		address:  listener.Addr().String(),
		rpc:      srv,
	}, nil
}

// Addr returns the address actually bound.
func (s *Server) Addr() string {
	return s.address
}

// Start begins listening for RPC requests.
func (s *Server) Start() {
	logger.Log.Infof("RPC server listening on %s", s.address)
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				logger.Log.Info("RPC server listener closed.")
				return
			}
			logger.Log.Errorf("RPC server accept error: %v", err)
			continue
		}
		go s.rpc.ServeConn(conn)
	}
}

// Stop closes the RPC listener.
func (s *Server) Stop() {
	if s.listener != nil {
		logger.Log.Info("Stopping RPC server.")
		s.listener.Close()
	}
}

// LobbyService exposes read access and forced closure of rooms to
// operators. Every call runs on the lobby dispatcher.
type LobbyService struct {
	manager    *lobby.Manager
	dispatcher *lobby.Dispatcher
}

func NewLobbyService(manager *lobby.Manager, dispatcher *lobby.Dispatcher) *LobbyService {
	return &LobbyService{manager: manager, dispatcher: dispatcher}
}

type ListRoomsArgs struct{}

type RoomInfo struct {
	ID           string
	Status       string
	Participants []room.Participant
	CreatedAt    time.Time
}

type ListRoomsReply struct {
	Rooms []RoomInfo
}

func (ls *LobbyService) ListRooms(args *ListRoomsArgs, reply *ListRoomsReply) error {
	snapshot := make(chan []*room.Room, 1)
	if err := ls.call(func() { snapshot <- ls.manager.Rooms() }); err != nil {
		return err
	}
	rooms := <-snapshot
	reply.Rooms = lo.Map(rooms, func(r *room.Room, _ int) RoomInfo {
		return RoomInfo{
			ID:           r.ID,
			Status:       r.Status().String(),
			Participants: r.Participants,
			CreatedAt:    r.CreatedAt,
		}
	})
	return nil
}

type CloseRoomArgs struct {
	RoomID string
}

type CloseRoomReply struct {
	Closed bool
}

func (ls *LobbyService) CloseRoom(args *CloseRoomArgs, reply *CloseRoomReply) error {
	roomID := args.RoomID
	closed := make(chan bool, 1)
	err := ls.call(func() {
		before := ls.manager.RoomCount()
		ls.manager.CloseRoom(roomID, "")
		closed <- ls.manager.RoomCount() < before
	})
	if err != nil {
		return err
	}
	reply.Closed = <-closed
	return nil
}

func (ls *LobbyService) call(fn func()) error {
	ctx, cancel := context.WithTimeout(context.Background(), callTimeout)
	defer cancel()
	return ls.dispatcher.Call(ctx, fn)
}
