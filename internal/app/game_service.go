package app

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"quizclash-service/internal/domain"
)

const cleanupTimeout = 5 * time.Second

// GameService owns every session lifecycle transition. Each operation runs under the
// session's mutex, so broadcasts leave in the order the state changed.
type GameService struct {
	sessions  SessionRepository
	questions QuestionSetRepository
	hub       Broadcaster
	feed      *StatusFeed
	notifiers []StatusNotifier
	cleaner   ResourceCleaner
	settings  Settings
	clock     clockwork.Clock
	codes     CodeGenerator

	ctx       context.Context
	cancel    context.CancelFunc
	workers   sync.WaitGroup
	closeOnce sync.Once
}

// Option customizes a GameService.
type Option func(*GameService)

// WithClock replaces the real clock (tests use a fake one).
func WithClock(clock clockwork.Clock) Option {
	return func(s *GameService) { s.clock = clock }
}

// WithNotifier registers an extra status listener.
func WithNotifier(n StatusNotifier) Option {
	return func(s *GameService) { s.notifiers = append(s.notifiers, n) }
}

// WithCleaner registers the external resource cleaner invoked on teardown.
func WithCleaner(c ResourceCleaner) Option {
	return func(s *GameService) { s.cleaner = c }
}

// WithCodeGenerator overrides room code generation.
func WithCodeGenerator(gen CodeGenerator) Option {
	return func(s *GameService) { s.codes = gen }
}

// NewGameService wires the controller. questions may be nil when sets are always pushed
// through CompleteGeneration.
func NewGameService(store SessionRepository, questions QuestionSetRepository, hub Broadcaster, settings Settings, opts ...Option) *GameService {
	ctx, cancel := context.WithCancel(context.Background())
	s := &GameService{
		sessions:  store,
		questions: questions,
		hub:       hub,
		feed:      NewStatusFeed(),
		settings:  settings,
		clock:     clockwork.NewRealClock(),
		codes:     RandomCode,
		ctx:       ctx,
		cancel:    cancel,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateGameRequest holds the host's game configuration.
type CreateGameRequest struct {
	HostName        string
	TimePerQuestion int
	NumQuestions    int
	IsPrivate       bool
	QuestionSetID   string
}

// CreateGame registers a new session in status processing with the host as its only player.
// When QuestionSetID is set, question generation runs in the background.
func (s *GameService) CreateGame(_ context.Context, req CreateGameRequest) (domain.SessionSnapshot, error) {
	host, err := normalizeName(req.HostName)
	if err != nil {
		return domain.SessionSnapshot{}, err
	}
	if err := s.settings.validateGame(req.TimePerQuestion, req.NumQuestions); err != nil {
		return domain.SessionSnapshot{}, err
	}

	var sess *Session
	for attempt := 0; attempt < maxCodeAttempts; attempt++ {
		code, err := s.codes()
		if err != nil {
			return domain.SessionSnapshot{}, err
		}
		candidate := newSession(code, host, req.TimePerQuestion, req.NumQuestions, req.IsPrivate, s.clock.Now())
		err = s.sessions.Create(code, candidate)
		if errors.Is(err, domain.ErrCodeTaken) {
			continue
		}
		if err != nil {
			return domain.SessionSnapshot{}, fmt.Errorf("register session: %w", err)
		}
		sess = candidate
		break
	}
	if sess == nil {
		return domain.SessionSnapshot{}, fmt.Errorf("allocate room code: %w", domain.ErrCodeTaken)
	}

	sess.mu.Lock()
	snapshot := sess.snapshotLocked()
	s.notifyLocked(sess)
	sess.mu.Unlock()

	log.Info().Str("code", sess.code).Str("host", host).Int("numQuestions", req.NumQuestions).
		Int("timePerQuestion", req.TimePerQuestion).Bool("private", req.IsPrivate).Msg("game created")

	if req.QuestionSetID != "" && s.questions != nil {
		s.runGeneration(sess.code, req.QuestionSetID)
	}
	s.evictOverCap()
	return snapshot, nil
}

// JoinGame adds a guest to a lobby.
func (s *GameService) JoinGame(_ context.Context, code, name string) (domain.SessionSnapshot, error) {
	snapshot, _, err := s.join(code, name, false)
	return snapshot, err
}

// Attach lets a connection bind to a player: an existing roster name is reused,
// otherwise the name joins as a new guest. joined reports which case happened.
func (s *GameService) Attach(_ context.Context, code, name string) (domain.SessionSnapshot, bool, error) {
	return s.join(code, name, true)
}

func (s *GameService) join(code, name string, allowExisting bool) (domain.SessionSnapshot, bool, error) {
	name, err := normalizeName(name)
	if err != nil {
		return domain.SessionSnapshot{}, false, err
	}
	sess, err := s.lookup(code)
	if err != nil {
		return domain.SessionSnapshot{}, false, err
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()
	if sess.closed {
		return domain.SessionSnapshot{}, false, domain.ErrSessionNotFound
	}
	if existing := sess.playerLocked(name); existing != nil {
		if !allowExisting {
			return domain.SessionSnapshot{}, false, domain.ErrDuplicatePlayerName
		}
		sess.touchLocked(s.clock.Now())
		return sess.snapshotLocked(), false, nil
	}
	if sess.status == domain.StatusError {
		return domain.SessionSnapshot{}, false, domain.ErrQuestionGenerationFailed
	}
	if sess.status == domain.StatusStarted && sess.phase != domain.PhaseCompleted {
		return domain.SessionSnapshot{}, false, domain.ErrGameInProgress
	}
	if len(sess.players) >= s.settings.MaxPlayersPerGame {
		return domain.SessionSnapshot{}, false, domain.ErrSessionFull
	}

	sess.players = append(sess.players, &domain.Player{Name: name})
	sess.touchLocked(s.clock.Now())
	s.broadcastLocked(sess, domain.EventPlayersUpdated, domain.PlayersUpdatedPayload{Players: sess.rosterLocked()})

	log.Debug().Str("code", code).Str("player", name).Int("players", len(sess.players)).Msg("player joined")
	return sess.snapshotLocked(), true, nil
}

// Leave removes a player. The host leaving, or the last player leaving, destroys the session.
func (s *GameService) Leave(_ context.Context, code, name string) error {
	sess, err := s.lookup(code)
	if err != nil {
		return err
	}

	sess.mu.Lock()
	if sess.closed {
		sess.mu.Unlock()
		return domain.ErrSessionNotFound
	}
	player := sess.playerLocked(name)
	if player == nil {
		sess.mu.Unlock()
		return domain.ErrPlayerNotFound
	}

	if player.IsHost {
		s.broadcastLocked(sess, domain.EventHostLeft, domain.HostLeftPayload{})
		s.closeLocked(sess)
		sess.mu.Unlock()
		s.teardown(code, "host left")
		return nil
	}

	sess.removePlayerLocked(name)
	if len(sess.players) == 0 {
		s.closeLocked(sess)
		sess.mu.Unlock()
		s.teardown(code, "last player left")
		return nil
	}

	sess.touchLocked(s.clock.Now())
	s.broadcastLocked(sess, domain.EventPlayersUpdated, domain.PlayersUpdatedPayload{Players: sess.rosterLocked()})
	if sess.status == domain.StatusStarted && sess.phase == domain.PhaseQuestion && sess.allAnsweredLocked() {
		s.revealLocked(sess)
	}
	sess.mu.Unlock()

	log.Debug().Str("code", code).Str("player", name).Msg("player left")
	return nil
}

// StartGame moves a ready session into its first question and starts the countdown.
func (s *GameService) StartGame(_ context.Context, code, requester string) error {
	sess, err := s.lookup(code)
	if err != nil {
		return err
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()
	if sess.closed {
		return domain.ErrSessionNotFound
	}
	if err := sess.requireHostLocked(requester); err != nil {
		return err
	}
	if sess.status != domain.StatusReady {
		return fmt.Errorf("%w: cannot start from status %s", domain.ErrInvalidTransition, sess.status)
	}

	sess.status = domain.StatusStarted
	sess.phase = domain.PhaseQuestion
	sess.currentIndex = 0
	sess.timeLeft = sess.timePerQuestion
	sess.answered = make(map[string]int)
	sess.touchLocked(s.clock.Now())

	s.broadcastLocked(sess, domain.EventGameStarted, domain.GameStartedPayload{
		Questions:       domain.Views(sess.questions),
		QuestionIndex:   0,
		TimePerQuestion: sess.timePerQuestion,
	})
	s.notifyLocked(sess)
	s.startTimerLocked(sess)

	log.Info().Str("code", code).Int("players", len(sess.players)).Int("questions", len(sess.questions)).Msg("game started")
	return nil
}

// SubmitAnswer records a player's answer to the current question. Duplicate and late
// submissions are not errors; they come back with Accepted=false.
func (s *GameService) SubmitAnswer(_ context.Context, code, name, answer string) (domain.SubmitResult, error) {
	sess, err := s.lookup(code)
	if err != nil {
		return domain.SubmitResult{}, err
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()
	if sess.closed {
		return domain.SubmitResult{}, domain.ErrSessionNotFound
	}
	player := sess.playerLocked(name)
	if player == nil {
		return domain.SubmitResult{}, domain.ErrPlayerNotFound
	}
	sess.touchLocked(s.clock.Now())

	if sess.status != domain.StatusStarted || sess.phase != domain.PhaseQuestion {
		return domain.SubmitResult{TotalScore: player.Score}, nil
	}
	if _, done := sess.answered[name]; done {
		return domain.SubmitResult{TotalScore: player.Score}, nil
	}

	sess.answered[name] = sess.timeLeft
	question := sess.questions[sess.currentIndex]
	correct := answer == question.CorrectAnswer
	points := domain.Score(correct, sess.timeLeft, sess.timePerQuestion, s.settings.ScoreBand)
	player.Score += points
	if correct {
		player.CorrectCount++
	}

	s.broadcastLocked(sess, domain.EventPlayerAnswered, domain.PlayerAnsweredPayload{
		AnsweredCount: sess.answeredCountLocked(),
		TotalPlayers:  len(sess.players),
	})
	if sess.allAnsweredLocked() {
		s.revealLocked(sess)
	}

	return domain.SubmitResult{
		Accepted:      true,
		IsCorrect:     correct,
		PointsAwarded: points,
		TotalScore:    player.Score,
	}, nil
}

// ShowLeaderboard toggles between the reveal and leaderboard phases.
func (s *GameService) ShowLeaderboard(_ context.Context, code, requester string, show bool) error {
	sess, err := s.lookup(code)
	if err != nil {
		return err
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()
	if sess.closed {
		return domain.ErrSessionNotFound
	}
	if err := sess.requireHostLocked(requester); err != nil {
		return err
	}
	if sess.status != domain.StatusStarted {
		return fmt.Errorf("%w: game is not running", domain.ErrInvalidTransition)
	}

	switch {
	case show && (sess.phase == domain.PhaseReveal || sess.phase == domain.PhaseLeaderboard):
		sess.phase = domain.PhaseLeaderboard
	case !show && (sess.phase == domain.PhaseLeaderboard || sess.phase == domain.PhaseReveal):
		sess.phase = domain.PhaseReveal
	default:
		return fmt.Errorf("%w: leaderboard unavailable in phase %s", domain.ErrInvalidTransition, sess.phase)
	}

	sess.touchLocked(s.clock.Now())
	s.broadcastLocked(sess, domain.EventShowLeaderboard, domain.ShowLeaderboardPayload{
		Show:      show,
		Standings: sess.standingsLocked(),
		Context:   sess.currentContextLocked(),
	})
	return nil
}

// NextQuestion advances to nextIndex or completes the game when it is past the last
// question. Requests that do not target currentIndex+1 from the reveal or leaderboard
// phase are ignored, which makes repeated host clicks harmless. advanced reports whether
// anything happened.
func (s *GameService) NextQuestion(_ context.Context, code, requester string, nextIndex int) (bool, error) {
	sess, err := s.lookup(code)
	if err != nil {
		return false, err
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()
	if sess.closed {
		return false, domain.ErrSessionNotFound
	}
	if err := sess.requireHostLocked(requester); err != nil {
		return false, err
	}
	if sess.status != domain.StatusStarted {
		return false, nil
	}
	if sess.phase != domain.PhaseReveal && sess.phase != domain.PhaseLeaderboard {
		return false, nil
	}
	if nextIndex != sess.currentIndex+1 {
		return false, nil
	}

	sess.touchLocked(s.clock.Now())
	if nextIndex >= len(sess.questions) {
		sess.currentIndex = len(sess.questions)
		sess.phase = domain.PhaseCompleted
		sess.timeLeft = 0
		s.broadcastLocked(sess, domain.EventGameCompleted, domain.GameCompletedPayload{
			FinalStandings: sess.standingsLocked(),
			TotalQuestions: len(sess.questions),
		})
		log.Info().Str("code", code).Msg("game completed")
		return true, nil
	}

	sess.currentIndex = nextIndex
	sess.timeLeft = sess.timePerQuestion
	sess.answered = make(map[string]int)
	sess.phase = domain.PhaseQuestion
	s.broadcastLocked(sess, domain.EventNextQuestion, domain.NextQuestionPayload{
		QuestionIndex:   nextIndex,
		Context:         sess.currentContextLocked(),
		TimePerQuestion: sess.timePerQuestion,
	})
	s.startTimerLocked(sess)
	return true, nil
}

// ResetGame returns a completed game to the lobby with the same players and questions.
func (s *GameService) ResetGame(_ context.Context, code, requester string) error {
	sess, err := s.lookup(code)
	if err != nil {
		return err
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()
	if sess.closed {
		return domain.ErrSessionNotFound
	}
	if err := sess.requireHostLocked(requester); err != nil {
		return err
	}
	if sess.status != domain.StatusStarted || sess.phase != domain.PhaseCompleted {
		return fmt.Errorf("%w: only completed games can be reset", domain.ErrInvalidTransition)
	}

	s.stopTimerLocked(sess)
	sess.resetProgressLocked()
	sess.touchLocked(s.clock.Now())
	s.broadcastLocked(sess, domain.EventResetGame, domain.ResetGamePayload{})
	s.notifyLocked(sess)

	log.Info().Str("code", code).Msg("game reset")
	return nil
}

// Players returns the roster in join order.
func (s *GameService) Players(_ context.Context, code string) ([]domain.Player, error) {
	sess, err := s.lookup(code)
	if err != nil {
		return nil, err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	if sess.closed {
		return nil, domain.ErrSessionNotFound
	}
	return sess.rosterLocked(), nil
}

// Status returns the progress view of a session.
func (s *GameService) Status(_ context.Context, code string) (domain.StatusInfo, error) {
	sess, err := s.lookup(code)
	if err != nil {
		return domain.StatusInfo{}, err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	if sess.closed {
		return domain.StatusInfo{}, domain.ErrSessionNotFound
	}
	return sess.statusInfoLocked(s.clock.Now()), nil
}

// Snapshot returns a consistent copy of a session.
func (s *GameService) Snapshot(_ context.Context, code string) (domain.SessionSnapshot, error) {
	sess, err := s.lookup(code)
	if err != nil {
		return domain.SessionSnapshot{}, err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	if sess.closed {
		return domain.SessionSnapshot{}, domain.ErrSessionNotFound
	}
	return sess.snapshotLocked(), nil
}

// SubscribeStatus returns a channel of status changes for code.
// The caller must invoke the returned cancel function to avoid leaks.
func (s *GameService) SubscribeStatus(_ context.Context, code string) (<-chan domain.StatusInfo, func(), error) {
	if _, err := s.lookup(code); err != nil {
		return nil, nil, err
	}
	ch, cancel := s.feed.Subscribe(code)
	return ch, cancel, nil
}

// ListPublic returns non-private sessions that have players, busiest first.
// page is 1-based; total is the number of matching sessions.
func (s *GameService) ListPublic(_ context.Context, page, pageSize int) ([]domain.SessionSummary, int) {
	var rows []domain.SessionSummary
	for _, sess := range s.sessions.All() {
		sess.mu.Lock()
		if !sess.closed && !sess.isPrivate && len(sess.players) > 0 {
			rows = append(rows, sess.summaryLocked())
		}
		sess.mu.Unlock()
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].PlayerCount != rows[j].PlayerCount {
			return rows[i].PlayerCount > rows[j].PlayerCount
		}
		return rows[i].Code < rows[j].Code
	})

	total := len(rows)
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 10
	}
	if total == 0 || page-1 > (total-1)/pageSize {
		return []domain.SessionSummary{}, total
	}
	start := (page - 1) * pageSize
	end := total
	if total-start > pageSize {
		end = start + pageSize
	}
	return rows[start:end], total
}

// Close stops every timer and background job. Sessions stay registered.
func (s *GameService) Close() {
	s.closeOnce.Do(func() {
		s.cancel()
		for _, sess := range s.sessions.All() {
			sess.mu.Lock()
			s.stopTimerLocked(sess)
			sess.mu.Unlock()
		}
		s.workers.Wait()
	})
}

func (s *GameService) lookup(code string) (*Session, error) {
	sess, ok := s.sessions.Get(code)
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	return sess, nil
}

// revealLocked is the single question -> reveal transition shared by the timer and the
// last answer. It reports false when the question was already revealed.
func (s *GameService) revealLocked(sess *Session) bool {
	if sess.status != domain.StatusStarted || sess.phase != domain.PhaseQuestion {
		return false
	}
	s.stopTimerLocked(sess)
	sess.phase = domain.PhaseReveal
	s.broadcastLocked(sess, domain.EventShowAnswer, domain.ShowAnswerPayload{
		CorrectAnswer: sess.questions[sess.currentIndex].CorrectAnswer,
		QuestionIndex: sess.currentIndex,
		ScoreSnapshot: sess.standingsLocked(),
	})
	return true
}

func (s *GameService) broadcastLocked(sess *Session, eventType domain.EventType, payload any) {
	s.hub.Broadcast(sess.code, domain.Event{Type: eventType, Payload: payload})
}

func (s *GameService) notifyLocked(sess *Session) {
	info := sess.statusInfoLocked(s.clock.Now())
	s.feed.StatusChanged(info)
	for _, n := range s.notifiers {
		n.StatusChanged(info)
	}
}

// closeLocked marks the session dead; teardown must follow once the lock is released.
func (s *GameService) closeLocked(sess *Session) {
	sess.closed = true
	s.stopTimerLocked(sess)
}

func (s *GameService) teardown(code, reason string) {
	s.sessions.Delete(code)
	s.hub.Release(code)
	s.feed.Close(code)
	if s.cleaner != nil {
		ctx, cancel := context.WithTimeout(context.Background(), cleanupTimeout)
		defer cancel()
		if err := s.cleaner.CleanupSession(ctx, code); err != nil {
			log.Warn().Err(err).Str("code", code).Msg("session cleanup failed")
		}
	}
	log.Info().Str("code", code).Str("reason", reason).Msg("session destroyed")
}
