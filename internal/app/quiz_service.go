package app

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"quizdesk/internal/domain"
	"quizdesk/internal/parser"
)

// SessionRepository abstracts where live sessions are registered (in-memory, Redis, etc).
type SessionRepository interface {
	Put(session *Session)
	Get(sessionID string) (*Session, bool)
	Delete(sessionID string)
	All() []*Session
	// Reap closes and removes sessions whose liveness lapsed.
	Reap() []*Session
}

// QuizStore is the document store quizzes are written to on creation.
type QuizStore interface {
	SaveQuiz(ctx context.Context, quiz domain.Quiz) (string, error)
}

// QuizRepository loads stored quizzes (from cache/backing store).
type QuizRepository interface {
	GetQuiz(ctx context.Context, quizID string) (domain.Quiz, error)
}

// QuizEvents is notified after a quiz has been saved.
type QuizEvents interface {
	QuizCreated(ctx context.Context, quiz domain.Quiz) error
}

// QuizService contains the authoring and quiz-taking use cases.
type QuizService struct {
	sessions SessionRepository
	store    QuizStore
	quizzes  QuizRepository
	events   QuizEvents
	log      logrus.FieldLogger

	now             func() time.Time
	newID           func() string
	sessionOpts     []SessionOption
	parseOpts       []parser.Option
	defaultDuration int
}

// Option configures a QuizService.
type Option func(*QuizService)

func WithLogger(log logrus.FieldLogger) Option {
	return func(s *QuizService) { s.log = log }
}

func WithEvents(events QuizEvents) Option {
	return func(s *QuizService) { s.events = events }
}

// WithDefaultDuration sets the minutes used when a draft leaves the duration out.
func WithDefaultDuration(minutes int) Option {
	return func(s *QuizService) { s.defaultDuration = minutes }
}

func WithParseOptions(opts ...parser.Option) Option {
	return func(s *QuizService) { s.parseOpts = append(s.parseOpts, opts...) }
}

// WithSessionOptions is applied to every session the service opens.
func WithSessionOptions(opts ...SessionOption) Option {
	return func(s *QuizService) { s.sessionOpts = append(s.sessionOpts, opts...) }
}

// WithServiceClock sets the clock used for quiz creation timestamps.
func WithServiceClock(now func() time.Time) Option {
	return func(s *QuizService) { s.now = now }
}

func WithIDGenerator(newID func() string) Option {
	return func(s *QuizService) { s.newID = newID }
}

func NewQuizService(sessions SessionRepository, store QuizStore, quizzes QuizRepository, opts ...Option) *QuizService {
	s := &QuizService{
		sessions:        sessions,
		store:           store,
		quizzes:         quizzes,
		log:             logrus.StandardLogger(),
		now:             time.Now,
		newID:           uuid.NewString,
		defaultDuration: 30,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// OpenSession registers a new session in the authoring state.
func (s *QuizService) OpenSession(_ context.Context) *Session {
	session := NewSession(s.newID(), s.sessionOpts...)
	s.sessions.Put(session)
	s.log.WithField("session", session.ID()).Debug("session opened")
	return session
}

// SubmitQuiz parses the draft, saves the quiz and activates the session.
// When saving fails the session stays in the authoring state.
func (s *QuizService) SubmitQuiz(ctx context.Context, sessionID string, draft domain.Draft) (domain.SessionView, error) {
	session, err := s.session(sessionID)
	if err != nil {
		return domain.SessionView{}, err
	}

	minutes := s.defaultDuration
	if draft.Duration != "" {
		if minutes, err = domain.ParseDurationMinutes(draft.Duration); err != nil {
			return domain.SessionView{}, err
		}
	} else if minutes <= 0 || minutes > domain.MaxDurationMinutes {
		return domain.SessionView{}, domain.ErrInvalidDuration
	}

	if err := session.reserveSubmit(); err != nil {
		return domain.SessionView{}, err
	}
	log := s.log.WithField("session", sessionID)
	report := parser.ParseReport(draft.RawText, s.parseOpts...)
	logReport(log, report)

	quiz := domain.Quiz{
		SubjectName:     draft.SubjectName,
		QuizName:        draft.QuizName,
		DurationMinutes: minutes,
		Questions:       report.Questions,
		CreatedAt:       s.now().UTC(),
	}
	id, err := s.store.SaveQuiz(ctx, quiz)
	if err != nil {
		session.releaseSubmit()
		log.WithError(err).WithField("quizName", quiz.QuizName).Error("saving quiz failed")
		return domain.SessionView{}, fmt.Errorf("%w: %w", domain.ErrPersistQuiz, err)
	}
	quiz.ID = id
	log = log.WithField("quiz", id)

	view, err := session.Activate(quiz)
	if err != nil {
		session.releaseSubmit()
		log.WithError(err).Warn("quiz saved but session could not be activated")
		return domain.SessionView{}, err
	}
	log.WithField("questions", len(quiz.Questions)).Info("quiz created")

	if s.events != nil {
		if err := s.events.QuizCreated(ctx, quiz); err != nil {
			log.WithError(err).Warn("publishing quiz event failed")
		}
	}
	return view, nil
}

// SelectAnswer records an answer in an active session.
func (s *QuizService) SelectAnswer(_ context.Context, sessionID string, questionIndex int, key string) (domain.SessionView, error) {
	session, err := s.session(sessionID)
	if err != nil {
		return domain.SessionView{}, err
	}
	return session.SelectAnswer(questionIndex, key)
}

// View returns a snapshot of the session.
func (s *QuizService) View(_ context.Context, sessionID string) (domain.SessionView, error) {
	session, err := s.session(sessionID)
	if err != nil {
		return domain.SessionView{}, err
	}
	return session.View(), nil
}

// Subscribe returns a channel that receives a view on every tick and answer.
// The caller must invoke the returned cancel function to avoid leaks.
func (s *QuizService) Subscribe(_ context.Context, sessionID string) (<-chan domain.SessionView, func(), error) {
	session, err := s.session(sessionID)
	if err != nil {
		return nil, nil, err
	}
	return session.subscribe()
}

// CloseSession tears the session down and forgets it.
func (s *QuizService) CloseSession(_ context.Context, sessionID string) error {
	session, err := s.session(sessionID)
	if err != nil {
		return err
	}
	session.Close()
	s.sessions.Delete(sessionID)
	s.log.WithFields(logrus.Fields{
		"session": sessionID,
		"age":     session.Age().Round(time.Second),
	}).Debug("session closed")
	return nil
}

// GetQuiz returns a stored quiz.
func (s *QuizService) GetQuiz(ctx context.Context, quizID string) (domain.Quiz, error) {
	return s.quizzes.GetQuiz(ctx, quizID)
}

// StartStoredQuiz opens a fresh active session for a previously saved quiz.
func (s *QuizService) StartStoredQuiz(ctx context.Context, quizID string) (domain.SessionView, error) {
	quiz, err := s.quizzes.GetQuiz(ctx, quizID)
	if err != nil {
		return domain.SessionView{}, err
	}
	session := s.OpenSession(ctx)
	view, err := session.Activate(quiz.Clone())
	if err != nil {
		session.Close()
		s.sessions.Delete(session.ID())
		return domain.SessionView{}, err
	}
	s.log.WithFields(logrus.Fields{"session": session.ID(), "quiz": quizID}).Info("stored quiz started")
	return view, nil
}

// Preview parses text without saving anything.
func (s *QuizService) Preview(text string) parser.Report {
	return parser.ParseReport(text, s.parseOpts...)
}

// Shutdown closes every live session so no countdown outlives the service.
func (s *QuizService) Shutdown() {
	for _, session := range s.sessions.All() {
		session.Close()
		s.sessions.Delete(session.ID())
	}
}

// ReapIdle drops sessions the repository considers expired. Sessions with
// an attached stream count as in use and have their liveness refreshed first.
func (s *QuizService) ReapIdle() int {
	for _, session := range s.sessions.All() {
		if session.watched() {
			s.sessions.Get(session.ID())
		}
	}
	reaped := s.sessions.Reap()
	for _, session := range reaped {
		s.log.WithFields(logrus.Fields{
			"session": session.ID(),
			"age":     session.Age().Round(time.Second),
		}).Info("idle session reaped")
	}
	return len(reaped)
}

// RunReaper calls ReapIdle every interval until ctx is done.
func (s *QuizService) RunReaper(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.ReapIdle()
		}
	}
}

func (s *QuizService) session(sessionID string) (*Session, error) {
	session, ok := s.sessions.Get(sessionID)
	if !ok || session.isClosed() {
		return nil, domain.ErrSessionNotFound
	}
	return session, nil
}

func logReport(log logrus.FieldLogger, report parser.Report) {
	for _, q := range report.Discarded {
		log.WithField("question", q.Text).Warn("question without answer line discarded")
	}
	for _, line := range report.DroppedLines {
		log.WithFields(logrus.Fields{"line": line.Number, "reason": line.Reason}).Warn("line ignored")
	}
	for i, q := range report.Questions {
		if !q.WellFormed() {
			log.WithFields(logrus.Fields{"index": i, "question": q.Text}).Warn("question is missing options or a matching answer")
		}
	}
}

