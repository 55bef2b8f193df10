package room

import (
	"errors"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/23jmo/typr-server/config"
	"github.com/23jmo/typr-server/logger"
	"github.com/23jmo/typr-server/models"
	"github.com/23jmo/typr-server/network"
	"github.com/23jmo/typr-server/session"
	"github.com/23jmo/typr-server/state"
	"github.com/23jmo/typr-server/texts"
	"github.com/23jmo/typr-server/timer"
)

var (
	ErrRoomNotFound   = errors.New("room not found")
	ErrRoomFull       = errors.New("room is full")
	ErrAlreadyStarted = errors.New("room already started")
	ErrNotInRoom      = errors.New("player is not in a room")
	ErrWrongPhase     = errors.New("action not allowed in current phase")
	ErrInvalidTopic   = errors.New("topic is not among the offered options")
	ErrNotEnough      = errors.New("not enough connected players")
)

const voteOptionCount = 3

// generationTimeout bounds how long voting resolution waits on the text
// provider before falling back to local random prose.
const generationTimeout = 3 * time.Second

// Service drives every room through its lifecycle. All room mutation
// funnels through here: player events, timer firings and matchmaker room
// creation all take the room lock, mutate, snapshot, then broadcast.
type Service struct {
	rooms       *Manager
	timers      *timer.Manager
	broadcaster Broadcaster
	provider    TextProvider
	fallback    *texts.Generator
	stats       StatsSink
	metrics     Metrics

	raceCfg  config.RaceConfig
	matchCfg config.MatchmakingConfig

	rng   *rand.Rand
	rngMu sync.Mutex
}

func NewService(rooms *Manager, timers *timer.Manager, broadcaster Broadcaster, provider TextProvider, stats StatsSink, metrics Metrics, raceCfg config.RaceConfig, matchCfg config.MatchmakingConfig) *Service {
	fallback := texts.NewGenerator()
	if provider == nil {
		provider = fallback
	}
	return &Service{
		rooms:       rooms,
		timers:      timers,
		broadcaster: broadcaster,
		provider:    provider,
		fallback:    fallback,
		stats:       stats,
		metrics:     metrics,
		raceCfg:     raceCfg,
		matchCfg:    matchCfg,
		rng:         rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Rooms exposes the registry for read-only collaborators (HTTP lookup,
// broadcaster, admin RPC).
func (s *Service) Rooms() *Manager {
	return s.rooms
}

// CreateRoom makes a new room in the waiting phase. Zero-valued options
// fall back to configured defaults; a non-empty customText pins the race
// text and marks its provenance.
func (s *Service) CreateRoom(name, customText string, timeLimit, textLength, playerLimit int) *Room {
	if timeLimit <= 0 {
		timeLimit = s.raceCfg.TimeLimitSeconds
	}
	if textLength <= 0 {
		textLength = s.raceCfg.TextLength
	}
	if playerLimit <= 0 {
		playerLimit = s.raceCfg.PlayerLimit
	}
	if name == "" {
		name = "Race Room"
	}

	r := &Room{
		ID:          uuid.New().String(),
		Name:        name,
		Phase:       state.PhaseWaiting,
		CreatedAt:   time.Now(),
		TimeLimit:   timeLimit,
		TextLength:  textLength,
		PlayerLimit: playerLimit,
		Players:     make(map[string]*models.Player),
		sessions:    make(map[string]string),
	}

	if customText != "" {
		r.Text = customText
		r.TextSource = models.TextSourceCustom
	} else {
		r.Text = s.fallback.Random(textLength)
		r.TextSource = models.TextSourceRandom
	}

	s.rooms.Add(r)
	s.observeRoomCount()
	logger.Log.Infof("Created room %s (%q)", r.ID, r.Name)
	return r
}

// CreateMatchRoom synthesizes a ranked 1v1 room directly in the countdown
// phase with both players seated and readied. The countdown timer is not
// armed here; the matchmaker schedules ArmMatchCountdown after its client
// notification delay.
func (s *Service) CreateMatchRoom(a, b models.QueueEntry) *Room {
	r := &Room{
		ID:          uuid.New().String(),
		Name:        "Ranked Match",
		Phase:       state.PhaseCountdown,
		CreatedAt:   time.Now(),
		TimeLimit:   s.raceCfg.TimeLimitSeconds,
		TextLength:  s.matchCfg.MatchTextLength,
		PlayerLimit: 2,
		Ranked:      true,
		Players:     make(map[string]*models.Player),
		sessions:    make(map[string]string),
		Text:        s.fallback.Random(s.matchCfg.MatchTextLength),
		TextSource:  models.TextSourceRandom,
		PreMatchRatings: map[string]int{
			a.PlayerID: a.Rating,
			b.PlayerID: b.Rating,
		},
	}

	for _, entry := range []models.QueueEntry{a, b} {
		r.Players[entry.PlayerID] = &models.Player{
			ID:        entry.PlayerID,
			Username:  entry.Username,
			Ready:     true,
			Connected: true,
		}
		r.sessions[entry.PlayerID] = entry.SessionID
	}

	s.rooms.Add(r)
	s.observeRoomCount()

	s.timers.Schedule(s.matchCfg.StartDelay(), func(int64) {
		s.armMatchCountdown(r.ID)
	})

	logger.Log.Infof("Created ranked room %s for %s vs %s", r.ID, a.Username, b.Username)
	return r
}

// armMatchCountdown fires after the match-found notification delay. The
// room id is re-resolved and the phase re-checked: both players may have
// dropped and deleted the room in the meantime.
func (s *Service) armMatchCountdown(roomID string) {
	r, exists := s.rooms.Get(roomID)
	if !exists {
		return
	}

	r.mu.Lock()
	if r.Phase != state.PhaseCountdown || r.countdownTimerID != 0 {
		r.mu.Unlock()
		return
	}
	s.armCountdownLocked(r)
	snap := r.snapshot()
	r.mu.Unlock()

	s.broadcast(roomID, snap)
}

// Join seats a new player or reseats a returning one. New players are
// only admitted while the room is waiting and under its limit.
func (s *Service) Join(sess *session.Session, roomID, playerID, username string) error {
	r, exists := s.rooms.Get(roomID)
	if !exists {
		return ErrRoomNotFound
	}

	r.mu.Lock()
	if p, seated := r.Players[playerID]; seated {
		// Reconnect: reclaim the seat and void any pending deletion.
		p.Connected = true
		if username != "" {
			p.Username = username
		}
		r.sessions[playerID] = sess.ID
		if r.cleanupTimerID != 0 {
			s.timers.Cancel(r.cleanupTimerID)
			r.cleanupTimerID = 0
		}
	} else {
		if r.Phase != state.PhaseWaiting {
			r.mu.Unlock()
			return ErrAlreadyStarted
		}
		if len(r.Players) >= r.PlayerLimit {
			r.mu.Unlock()
			return ErrRoomFull
		}
		r.Players[playerID] = &models.Player{
			ID:        playerID,
			Username:  username,
			Connected: true,
		}
		r.sessions[playerID] = sess.ID
		if r.HostID == "" {
			r.HostID = playerID
		}
	}
	snap := r.snapshot()
	r.mu.Unlock()

	sess.SetRoom(roomID)
	sess.SetPlayer(playerID)

	s.broadcast(roomID, snap)
	return nil
}

// SetReady toggles the sender's ready flag. Only honored while waiting;
// when at least two connected players are all ready the countdown starts.
func (s *Service) SetReady(sess *session.Session) error {
	r, p, err := s.seat(sess)
	if err != nil {
		return err
	}

	r.mu.Lock()
	if r.Phase != state.PhaseWaiting {
		r.mu.Unlock()
		return ErrWrongPhase
	}
	p.Ready = !p.Ready

	if r.connectedCount() >= 2 && r.allConnectedReady() {
		s.enterCountdownLocked(r)
	}
	snap := r.snapshot()
	r.mu.Unlock()

	s.broadcast(r.ID, snap)
	return nil
}

// Progress records live stats and fans a lightweight update out to the
// other participants. No full snapshot is sent.
func (s *Service) Progress(sess *session.Session, progress, wpm, accuracy float64) error {
	r, p, err := s.seat(sess)
	if err != nil {
		return err
	}

	r.mu.Lock()
	if r.Phase != state.PhaseRacing {
		r.mu.Unlock()
		return ErrWrongPhase
	}
	p.Progress = clamp(progress, 0, 100)
	p.Accuracy = clamp(accuracy, 0, 100)
	p.WPM = max(wpm, 0)

	update := models.ProgressUpdate{
		PlayerID: p.ID,
		Username: p.Username,
		Progress: p.Progress,
		WPM:      p.WPM,
		Accuracy: p.Accuracy,
	}
	r.mu.Unlock()

	if err := s.broadcaster.BroadcastToRoomExcept(r.ID, sess.ID, network.EventPlayerProgress, update); err != nil {
		logger.Log.Warnf("Progress fan-out failed for room %s: %v", r.ID, err)
	}
	return nil
}

// Finish marks the sender done, once, while racing. The race completes
// when every connected player has finished.
func (s *Service) Finish(sess *session.Session, finalWPM, finalAccuracy *float64) error {
	r, p, err := s.seat(sess)
	if err != nil {
		return err
	}

	r.mu.Lock()
	if r.Phase != state.PhaseRacing {
		r.mu.Unlock()
		return ErrWrongPhase
	}
	if p.Finished {
		r.mu.Unlock()
		return nil
	}
	p.Finished = true
	p.Progress = 100
	p.FinishTime = time.Now().UnixMilli()
	if finalWPM != nil {
		p.WPM = max(*finalWPM, 0)
	}
	if finalAccuracy != nil {
		p.Accuracy = clamp(*finalAccuracy, 0, 100)
	}

	if r.allConnectedFinished() {
		s.completeRaceLocked(r)
	}
	snap := r.snapshot()
	r.mu.Unlock()

	s.broadcast(r.ID, snap)
	return nil
}

// Vote records a topic vote. Resolution happens early once every
// connected player has voted, otherwise when the voting timer expires.
func (s *Service) Vote(sess *session.Session, topic string) error {
	r, p, err := s.seat(sess)
	if err != nil {
		return err
	}

	r.mu.Lock()
	if r.Phase != state.PhaseVoting || r.votingResolved {
		r.mu.Unlock()
		return ErrWrongPhase
	}
	valid := false
	for _, option := range r.VoteOptions {
		if option == topic {
			valid = true
			break
		}
	}
	if !valid {
		r.mu.Unlock()
		return ErrInvalidTopic
	}
	p.Vote = topic

	resolve := r.allConnectedVoted()
	if resolve {
		if r.votingTimerID != 0 {
			s.timers.Cancel(r.votingTimerID)
			r.votingTimerID = 0
		}
		s.resolveVotingLocked(r)
	}
	snap := r.snapshot()
	r.mu.Unlock()

	s.broadcast(r.ID, snap)
	return nil
}

// Rematch requests another round. Once every connected player (at least
// two) wants one, the room moves to voting with fresh per-race state.
func (s *Service) Rematch(sess *session.Session) error {
	r, p, err := s.seat(sess)
	if err != nil {
		return err
	}

	r.mu.Lock()
	if r.Phase != state.PhaseFinished {
		r.mu.Unlock()
		return ErrWrongPhase
	}
	if r.connectedCount() < 2 {
		r.mu.Unlock()
		return ErrNotEnough
	}
	p.WantsRematch = true

	if r.allConnectedWantRematch() {
		s.enterVotingLocked(r)
	}
	snap := r.snapshot()
	r.mu.Unlock()

	s.broadcast(r.ID, snap)
	return nil
}

// HandleDisconnect reconciles a dropped transport with its room, if any.
// Queue cleanup is the matchmaker's side and happens independently.
func (s *Service) HandleDisconnect(sess *session.Session) {
	roomID := sess.GetRoom()
	playerID := sess.GetPlayer()
	if roomID == "" || playerID == "" {
		return
	}

	r, exists := s.rooms.Get(roomID)
	if !exists {
		return
	}

	r.mu.Lock()
	p, seated := r.Players[playerID]
	if !seated || r.sessions[playerID] != sess.ID {
		// A reconnect already replaced this handle; the old socket's
		// teardown must not kick the new one out.
		r.mu.Unlock()
		return
	}
	p.Connected = false
	p.Ready = false
	delete(r.sessions, playerID)

	connected := r.connectedCount()

	if connected < 2 && (r.Phase == state.PhaseVoting || r.Phase == state.PhaseCountdown) {
		s.downgradeToWaitingLocked(r)
	}

	if r.Phase == state.PhaseRacing && connected > 0 && r.allConnectedFinished() {
		s.completeRaceLocked(r)
	}

	if connected == 0 {
		grace := s.raceCfg.EmptyGrace()
		if r.Phase == state.PhaseRacing || r.Phase == state.PhaseFinished {
			grace = s.raceCfg.ActiveGrace()
		}
		if r.cleanupTimerID != 0 {
			s.timers.Cancel(r.cleanupTimerID)
		}
		r.cleanupTimerID = s.timers.Schedule(grace, func(int64) {
			s.maybeDeleteRoom(roomID)
		})
	}
	snap := r.snapshot()
	r.mu.Unlock()

	s.broadcast(roomID, snap)
}

// Leave is the explicit counterpart of a disconnect: the seat is marked
// disconnected (allowing a later rejoin) but the socket stays open.
func (s *Service) Leave(sess *session.Session) {
	s.HandleDisconnect(sess)
	sess.SetRoom("")
	sess.SetPlayer("")
}

// --- phase transitions; callers hold the room lock ---

// enterCountdownLocked moves a waiting or voting room into countdown and
// arms the countdown timer.
func (s *Service) enterCountdownLocked(r *Room) {
	if err := state.Validate(r.Phase, state.PhaseCountdown); err != nil {
		logger.Log.Errorf("Room %s: refusing %s -> countdown: %v", r.ID, r.Phase, err)
		return
	}
	r.Phase = state.PhaseCountdown
	s.armCountdownLocked(r)
}

// armCountdownLocked sets the countdown timestamp and timer for a room
// already in the countdown phase.
func (s *Service) armCountdownLocked(r *Room) {
	if r.votingTimerID != 0 {
		s.timers.Cancel(r.votingTimerID)
		r.votingTimerID = 0
	}
	r.VotingEndTime = 0
	r.CountdownStartedAt = time.Now().UnixMilli()

	// The callback captures the room id, never a pointer; the scheduler
	// hands it its own task id when it fires.
	roomID := r.ID
	r.countdownTimerID = s.timers.Schedule(s.raceCfg.CountdownDuration(), func(taskID int64) {
		s.countdownExpired(roomID, taskID)
	})
}

// countdownExpired is the countdown timer callback. The room is
// re-resolved and both the phase and the armed timer id re-checked, so a
// stale cancelled-and-replaced timer cannot corrupt later state.
func (s *Service) countdownExpired(roomID string, taskID int64) {
	r, exists := s.rooms.Get(roomID)
	if !exists {
		return
	}

	r.mu.Lock()
	if r.Phase != state.PhaseCountdown || r.countdownTimerID != taskID {
		r.mu.Unlock()
		return
	}
	r.Phase = state.PhaseRacing
	r.StartTime = time.Now().UnixMilli()
	r.CountdownStartedAt = 0
	r.countdownTimerID = 0

	if r.TimeLimit > 0 {
		r.raceTimerID = s.timers.Schedule(time.Duration(r.TimeLimit)*time.Second, func(taskID int64) {
			s.raceTimeLimitExpired(roomID, taskID)
		})
	}
	snap := r.snapshot()
	r.mu.Unlock()

	if s.metrics != nil {
		s.metrics.RaceStarted()
	}
	s.broadcast(roomID, snap)
}

// raceTimeLimitExpired force-finishes a race that hit its time limit.
func (s *Service) raceTimeLimitExpired(roomID string, taskID int64) {
	r, exists := s.rooms.Get(roomID)
	if !exists {
		return
	}

	r.mu.Lock()
	if r.Phase != state.PhaseRacing || r.raceTimerID != taskID {
		r.mu.Unlock()
		return
	}
	s.completeRaceLocked(r)
	snap := r.snapshot()
	r.mu.Unlock()

	s.broadcast(roomID, snap)
}

// completeRaceLocked moves racing -> finished, picks the winner and hands
// the outcome to the stats sink.
func (s *Service) completeRaceLocked(r *Room) {
	if err := state.Validate(r.Phase, state.PhaseFinished); err != nil {
		logger.Log.Errorf("Room %s: refusing %s -> finished: %v", r.ID, r.Phase, err)
		return
	}
	if r.raceTimerID != 0 {
		s.timers.Cancel(r.raceTimerID)
		r.raceTimerID = 0
	}
	r.Phase = state.PhaseFinished
	r.Winner = r.earliestFinisher()

	var duration time.Duration
	if r.StartTime != 0 {
		duration = time.Since(time.UnixMilli(r.StartTime))
	}
	if s.metrics != nil {
		s.metrics.RaceFinished(duration)
	}

	if s.stats != nil {
		result := models.RaceResult{
			RoomID:     r.ID,
			Ranked:     r.Ranked,
			WinnerID:   r.Winner,
			DurationMs: duration.Milliseconds(),
		}
		for _, p := range r.Players {
			result.Players = append(result.Players, models.RacePlayerResult{
				PlayerID:   p.ID,
				Username:   p.Username,
				WPM:        p.WPM,
				Accuracy:   p.Accuracy,
				FinishTime: p.FinishTime,
				Rating:     r.PreMatchRatings[p.ID],
			})
		}
		go s.stats.RecordRace(result)
	}
}

// enterVotingLocked resets per-race player state, deals fresh topic
// options and arms the voting timer.
func (s *Service) enterVotingLocked(r *Room) {
	if err := state.Validate(r.Phase, state.PhaseVoting); err != nil {
		logger.Log.Errorf("Room %s: refusing %s -> voting: %v", r.ID, r.Phase, err)
		return
	}
	r.Phase = state.PhaseVoting
	r.Winner = ""
	r.StartTime = 0
	for _, p := range r.Players {
		p.Progress = 0
		p.WPM = 0
		p.Accuracy = 0
		p.Finished = false
		p.FinishTime = 0
		p.Vote = ""
		p.WantsRematch = false
	}

	r.VoteOptions = s.fallback.VoteOptions(voteOptionCount)
	r.VotingEndTime = time.Now().Add(s.raceCfg.VotingDuration()).UnixMilli()
	r.votingResolved = false

	roomID := r.ID
	r.votingTimerID = s.timers.Schedule(s.raceCfg.VotingDuration(), func(taskID int64) {
		s.votingExpired(roomID, taskID)
	})
}

// votingExpired is the voting timer callback, with the same id-capture
// re-validation discipline as the countdown.
func (s *Service) votingExpired(roomID string, taskID int64) {
	r, exists := s.rooms.Get(roomID)
	if !exists {
		return
	}

	r.mu.Lock()
	if r.Phase != state.PhaseVoting || r.votingTimerID != taskID {
		r.mu.Unlock()
		return
	}
	r.votingTimerID = 0
	s.resolveVotingLocked(r)
	snap := r.snapshot()
	r.mu.Unlock()

	s.broadcast(roomID, snap)
}

// resolveVotingLocked tallies the votes and kicks off text generation.
// Ties among the plurality break uniformly at random; zero votes pick a
// random option. The room stays in voting until the generated text is
// applied, so generation never blocks the caller.
func (s *Service) resolveVotingLocked(r *Room) {
	r.votingResolved = true

	tally := make(map[string]int)
	for _, p := range r.Players {
		if p.Connected && p.Vote != "" {
			tally[p.Vote]++
		}
	}

	var winners []string
	best := 0
	for _, option := range r.VoteOptions {
		count := tally[option]
		if count > best {
			best = count
			winners = []string{option}
		} else if count == best && count > 0 {
			winners = append(winners, option)
		}
	}

	var topic string
	if len(winners) == 0 {
		topic = r.VoteOptions[s.intn(len(r.VoteOptions))]
	} else {
		topic = winners[s.intn(len(winners))]
	}

	r.Topic = topic
	r.VotingEndTime = 0

	roomID := r.ID
	length := r.TextLength
	go func() {
		text, fromTopic := texts.GenerateWithFallback(s.provider, s.fallback, topic, length, generationTimeout)
		s.applyGeneratedText(roomID, topic, text, fromTopic)
	}()
}

// applyGeneratedText re-enters the serialized mutation path when text
// generation completes. A forced downgrade may have raced it, so the
// phase is re-validated before the countdown starts.
func (s *Service) applyGeneratedText(roomID, topic, text string, fromTopic bool) {
	r, exists := s.rooms.Get(roomID)
	if !exists {
		return
	}

	r.mu.Lock()
	if r.Phase != state.PhaseVoting {
		r.mu.Unlock()
		return
	}
	r.Text = text
	if fromTopic {
		r.Topic = topic
		r.TextSource = models.TextSourceTopic
	} else {
		r.Topic = ""
		r.TextSource = models.TextSourceRandom
		logger.Log.Warnf("Room %s: topic %q generation failed, using random text", roomID, topic)
	}
	s.enterCountdownLocked(r)
	snap := r.snapshot()
	r.mu.Unlock()

	s.broadcast(roomID, snap)
}

// downgradeToWaitingLocked is the forced back-edge when a voting or
// countdown room drops below two connected players.
func (s *Service) downgradeToWaitingLocked(r *Room) {
	if err := state.Validate(r.Phase, state.PhaseWaiting); err != nil {
		logger.Log.Errorf("Room %s: refusing %s -> waiting: %v", r.ID, r.Phase, err)
		return
	}
	if r.countdownTimerID != 0 {
		s.timers.Cancel(r.countdownTimerID)
		r.countdownTimerID = 0
	}
	if r.votingTimerID != 0 {
		s.timers.Cancel(r.votingTimerID)
		r.votingTimerID = 0
	}
	r.Phase = state.PhaseWaiting
	r.CountdownStartedAt = 0
	r.VotingEndTime = 0
	r.StartTime = 0
	r.VoteOptions = nil
	r.votingResolved = false
	for _, p := range r.Players {
		p.Ready = false
		p.Vote = ""
	}
}

// maybeDeleteRoom fires after the empty-room grace delay. Deletion is
// skipped entirely if anyone reconnected during the window.
func (s *Service) maybeDeleteRoom(roomID string) {
	r, exists := s.rooms.Get(roomID)
	if !exists {
		return
	}

	r.mu.Lock()
	if r.connectedCount() > 0 {
		r.cleanupTimerID = 0
		r.mu.Unlock()
		return
	}
	for _, id := range []int64{r.countdownTimerID, r.votingTimerID, r.raceTimerID} {
		if id != 0 {
			s.timers.Cancel(id)
		}
	}
	r.countdownTimerID = 0
	r.votingTimerID = 0
	r.raceTimerID = 0
	r.mu.Unlock()

	s.rooms.Remove(roomID)
	s.observeRoomCount()
	logger.Log.Infof("Deleted empty room %s", roomID)
}

// --- helpers ---

// seat resolves the sender's room and player record.
func (s *Service) seat(sess *session.Session) (*Room, *models.Player, error) {
	roomID := sess.GetRoom()
	playerID := sess.GetPlayer()
	if roomID == "" || playerID == "" {
		return nil, nil, ErrNotInRoom
	}
	r, exists := s.rooms.Get(roomID)
	if !exists {
		return nil, nil, ErrRoomNotFound
	}
	r.mu.RLock()
	p, seated := r.Players[playerID]
	r.mu.RUnlock()
	if !seated {
		return nil, nil, ErrNotInRoom
	}
	return r, p, nil
}

func (s *Service) broadcast(roomID string, snap *models.RoomSnapshot) {
	if err := s.broadcaster.BroadcastToRoom(roomID, network.EventRoomState, snap); err != nil {
		logger.Log.Warnf("Broadcast failed for room %s: %v", roomID, err)
	}
}

func (s *Service) observeRoomCount() {
	if s.metrics != nil {
		s.metrics.SetActiveRooms(s.rooms.Count())
	}
}

func (s *Service) intn(n int) int {
	s.rngMu.Lock()
	defer s.rngMu.Unlock()
	return s.rng.Intn(n)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
