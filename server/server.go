package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	netrpc "net/rpc"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/23jmo/typr-server/config"
	"github.com/23jmo/typr-server/logger"
	"github.com/23jmo/typr-server/matchmaking"
	"github.com/23jmo/typr-server/models"
	"github.com/23jmo/typr-server/monitor"
	"github.com/23jmo/typr-server/network"
	"github.com/23jmo/typr-server/room"
	typrrpc "github.com/23jmo/typr-server/rpc"
	"github.com/23jmo/typr-server/services"
	"github.com/23jmo/typr-server/session"
)

type GameServer struct {
	addr           string
	heartbeat      time.Duration
	upgrader       websocket.Upgrader
	router         *mux.Router
	roomService    *room.Service
	sessionManager *session.Manager
	matchmaker     *matchmaking.Matchmaker
	monitor        *monitor.Monitor
	rpcServer      *typrrpc.Server
	shutdownChan   chan struct{}
}

func NewGameServer(cfg config.ServerConfig, roomService *room.Service, sessions *session.Manager, mm *matchmaking.Matchmaker, races *services.RaceService, mon *monitor.Monitor) *GameServer {
	s := &GameServer{
		addr:           cfg.HTTPAddress,
		heartbeat:      cfg.Heartbeat(),
		roomService:    roomService,
		sessionManager: sessions,
		matchmaker:     mm,
		monitor:        mon,
		shutdownChan:   make(chan struct{}),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true // 允许所有跨域请求
			},
		},
	}

	rpcServer, err := typrrpc.NewServer(cfg.RPCAddress)
	if err != nil {
		logger.Log.Fatalf("Failed to create RPC server: %v", err)
	}
	s.rpcServer = rpcServer

	admin := typrrpc.NewAdminService(races, roomService, sessions, mm)
	netrpc.Register(admin)

	s.router = mux.NewRouter()
	s.router.HandleFunc("/ws", s.handleWebSocket)
	s.router.HandleFunc("/api/rooms", s.handleCreateRoom).Methods(http.MethodPost)
	s.router.HandleFunc("/api/rooms/{id}", s.handleGetRoom).Methods(http.MethodGet)

	return s
}

func (s *GameServer) Start() error {
	go s.rpcServer.Start()

	logger.Log.Infof("Game server listening on %s", s.addr)
	return http.ListenAndServe(s.addr, s.router)
}

func (s *GameServer) Shutdown() {
	close(s.shutdownChan)
	s.rpcServer.Stop()
}

type createRoomRequest struct {
	Name        string `json:"name"`
	CustomText  string `json:"customText"`
	TimeLimit   int    `json:"timeLimit"`
	TextLength  int    `json:"textLength"`
	PlayerLimit int    `json:"playerLimit"`
}

func (s *GameServer) handleCreateRoom(w http.ResponseWriter, r *http.Request) {
	var req createRoomRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	created := s.roomService.CreateRoom(req.Name, req.CustomText, req.TimeLimit, req.TextLength, req.PlayerLimit)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(created.Snapshot())
}

func (s *GameServer) handleGetRoom(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	rm, exists := s.roomService.Rooms().Get(id)
	if !exists {
		http.Error(w, "room not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(rm.Snapshot())
}

func (s *GameServer) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Log.Infof("Failed to upgrade connection: %v", err)
		return
	}
	s.handleConnection(conn)
}

func (s *GameServer) handleConnection(conn *websocket.Conn) {
	wsConn := network.NewWSConnection(conn)
	if s.heartbeat > 0 {
		wsConn.SetHeartbeat(s.heartbeat)
	}
	sess := session.NewSession(uuid.New().String(), wsConn)
	s.sessionManager.Add(sess)
	s.monitor.IncOnlinePlayers()

	logger.Log.Infof("New connection from %s, session ID: %s", wsConn.RemoteAddr(), sess.GetID())

	defer func() {
		logger.Log.Infof("Connection closed from %s, session ID: %s", wsConn.RemoteAddr(), sess.GetID())
		// Queue purge first so the dropped player cannot be matched while
		// their seat is being reconciled.
		s.matchmaker.HandleDisconnect(context.Background(), sess.GetID())
		s.roomService.HandleDisconnect(sess)
		s.sessionManager.Remove(sess.GetID())
		s.monitor.DecOnlinePlayers()
		wsConn.Close()
	}()

	for {
		select {
		case <-s.shutdownChan:
			return
		default:
			msg, err := wsConn.ReadMessage()
			if err != nil {
				return
			}
			sess.LastActive = time.Now()
			s.monitor.IncMessagesReceived()
			s.handleMessage(sess, msg)
		}
	}
}

func (s *GameServer) handleMessage(sess *session.Session, msg *models.InboundMessage) {
	var err error
	switch msg.Event {
	case network.EventPing:
		// The read already refreshed the deadline and LastActive.
		return
	case network.EventJoin:
		err = s.handleJoin(sess, msg.Data)
	case network.EventLeave:
		s.roomService.Leave(sess)
	case network.EventSetReady:
		err = s.roomService.SetReady(sess)
	case network.EventProgress:
		err = s.handleProgress(sess, msg.Data)
	case network.EventFinished:
		err = s.handleFinished(sess, msg.Data)
	case network.EventVote:
		err = s.handleVote(sess, msg.Data)
	case network.EventRematch:
		err = s.roomService.Rematch(sess)
	case network.EventFindMatch:
		err = s.handleFindMatch(sess, msg.Data)
	case network.EventCancelMatch:
		err = s.handleCancelMatch(sess)
	default:
		logger.Log.Debugf("Unknown event %q from session %s", msg.Event, sess.GetID())
		return
	}

	if err != nil {
		s.sendError(sess, err)
	}
}

func (s *GameServer) handleJoin(sess *session.Session, data json.RawMessage) error {
	var p models.JoinPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return errors.New("malformed join payload")
	}
	if p.PlayerID == "" {
		p.PlayerID = uuid.New().String()
	}
	if p.Username == "" {
		p.Username = "guest"
	}
	return s.roomService.Join(sess, p.RoomID, p.PlayerID, p.Username)
}

func (s *GameServer) handleProgress(sess *session.Session, data json.RawMessage) error {
	var p models.ProgressPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return errors.New("malformed progress payload")
	}
	return s.roomService.Progress(sess, p.Progress, p.WPM, p.Accuracy)
}

func (s *GameServer) handleFinished(sess *session.Session, data json.RawMessage) error {
	var p models.FinishedPayload
	if len(data) > 0 {
		if err := json.Unmarshal(data, &p); err != nil {
			return errors.New("malformed finished payload")
		}
	}
	return s.roomService.Finish(sess, p.WPM, p.Accuracy)
}

func (s *GameServer) handleVote(sess *session.Session, data json.RawMessage) error {
	var p models.VotePayload
	if err := json.Unmarshal(data, &p); err != nil {
		return errors.New("malformed vote payload")
	}
	return s.roomService.Vote(sess, p.Topic)
}

func (s *GameServer) handleFindMatch(sess *session.Session, data json.RawMessage) error {
	var p models.FindMatchPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return errors.New("malformed find_match payload")
	}
	if p.PlayerID == "" {
		return errors.New("find_match requires a playerId")
	}
	if p.Username == "" {
		p.Username = "guest"
	}
	if p.Rating <= 0 {
		p.Rating = 1000
	}

	matched, err := s.matchmaker.Enqueue(context.Background(), sess, p.PlayerID, p.Username, p.Rating)
	if err != nil {
		return err
	}
	if matched == nil {
		// Queued and waiting; match_found is pushed to both sides later.
		return sess.Send(network.EventQueueJoined, nil)
	}
	return nil
}

func (s *GameServer) handleCancelMatch(sess *session.Session) error {
	if err := s.matchmaker.Cancel(context.Background(), sess.GetID()); err != nil {
		return err
	}
	return sess.Send(network.EventQueueLeft, nil)
}

func (s *GameServer) sendError(sess *session.Session, err error) {
	if sendErr := sess.Send(network.EventError, models.ErrorPayload{Message: err.Error()}); sendErr != nil {
		logger.Log.Debugf("Failed to send error to session %s: %v", sess.GetID(), sendErr)
	}
}
