package rpc

import (
	"net"
	"net/rpc"

	"github.com/23jmo/typr-server/logger"
	"github.com/23jmo/typr-server/matchmaking"
	"github.com/23jmo/typr-server/room"
	"github.com/23jmo/typr-server/services"
	"github.com/23jmo/typr-server/session"
)

// Server manages the RPC listener.
type Server struct {
	listener net.Listener
	address  string
}

// NewServer creates a new RPC server. Services are registered by the
// caller before Start.
func NewServer(addr string) (*Server, error) {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	return &Server{
		listener: listener,
		address:  addr,
	}, nil
}

// Start begins listening for RPC requests.
func (s *Server) Start() {
	logger.Log.Infof("RPC server listening on %s", s.address)
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			// Check if the error is due to the listener being closed.
			if _, ok := err.(*net.OpError); ok {
				logger.Log.Info("RPC server listener closed.")
				return
			}
			logger.Log.Errorf("RPC server accept error: %v", err)
			continue
		}
		go rpc.ServeConn(conn)
	}
}

// Stop closes the RPC listener.
func (s *Server) Stop() {
	if s.listener != nil {
		logger.Log.Info("Stopping RPC server.")
		s.listener.Close()
	}
}

// AdminService exposes operational queries over net/rpc.
type AdminService struct {
	races      *services.RaceService
	rooms      *room.Service
	sessions   *session.Manager
	matchmaker *matchmaking.Matchmaker
}

func NewAdminService(races *services.RaceService, rooms *room.Service, sessions *session.Manager, mm *matchmaking.Matchmaker) *AdminService {
	return &AdminService{
		races:      races,
		rooms:      rooms,
		sessions:   sessions,
		matchmaker: mm,
	}
}

// Arguments and replies follow the net/rpc signature rules: exported
// types, pointer reply, error return.
type PlayerStatsArgs struct {
	PlayerID string
}

type PlayerStatsReply struct {
	Data   map[string]interface{}
	Online bool
}

func (a *AdminService) GetPlayerStats(args *PlayerStatsArgs, reply *PlayerStatsReply) error {
	data, err := a.races.PlayerStats(args.PlayerID)
	if err != nil {
		return err
	}
	reply.Data = data
	reply.Online = len(a.sessions.GetByPlayerID(args.PlayerID)) > 0
	return nil
}

type CountsArgs struct{}

type CountsReply struct {
	Sessions int
	Rooms    int
	Queued   int
}

// ServerCounts reports live session, room and queue occupancy.
func (a *AdminService) ServerCounts(args *CountsArgs, reply *CountsReply) error {
	reply.Sessions = a.sessions.Count()
	reply.Rooms = a.rooms.Rooms().Count()
	if a.matchmaker != nil {
		n, err := a.matchmaker.QueueLen()
		if err == nil {
			reply.Queued = n
		}
	}
	return nil
}
