package app

import (
	"fmt"
	"sync"
	"time"

	"quizdesk/internal/domain"
)

// Session is the state container behind one quiz view. It starts in the
// authoring state and moves to active once a quiz has been saved. Closing it
// stops the countdown and releases subscribers.
type Session struct {
	id        string
	createdAt time.Time
	now       func() time.Time
	newTicker TickerFactory

	mu          sync.RWMutex
	state       domain.SessionState
	closed      bool
	submitting  bool
	quiz        domain.Quiz
	answered    int
	countdown   *Countdown
	subscribers map[chan domain.SessionView]struct{}
}

// SessionOption customizes a new session.
type SessionOption func(*Session)

// WithClock overrides the wall clock (tests).
func WithClock(now func() time.Time) SessionOption {
	return func(s *Session) { s.now = now }
}

// WithTickerFactory overrides the countdown ticker (tests).
func WithTickerFactory(f TickerFactory) SessionOption {
	return func(s *Session) { s.newTicker = f }
}

// NewSession returns a session in the authoring state.
func NewSession(id string, opts ...SessionOption) *Session {
	s := &Session{
		id:          id,
		now:         time.Now,
		newTicker:   NewStdTicker,
		state:       domain.StateAuthoring,
		subscribers: make(map[chan domain.SessionView]struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.createdAt = s.now()
	return s
}

func (s *Session) ID() string { return s.id }

// Age reports how long ago the session was opened.
func (s *Session) Age() time.Duration { return s.now().Sub(s.createdAt) }

func (s *Session) State() domain.SessionState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Activate moves an authoring session to active with quiz and starts the
// countdown at the quiz duration.
func (s *Session) Activate(quiz domain.Quiz) (domain.SessionView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return domain.SessionView{}, domain.ErrSessionClosed
	}
	if s.state != domain.StateAuthoring {
		return domain.SessionView{}, domain.ErrSessionAlreadyActive
	}

	s.quiz = quiz
	s.quiz.Questions = append([]domain.Question(nil), quiz.Questions...)
	s.answered = 0
	for _, q := range quiz.Questions {
		if q.UserAnswer != "" {
			s.answered++
		}
	}
	s.state = domain.StateActive
	s.submitting = false
	s.countdown = NewCountdown(quiz.DurationMinutes*60, s.newTicker, s.onTick)
	s.countdown.Start()

	return s.broadcastLocked(), nil
}

// reserveSubmit claims the authoring→active transition for one caller so a
// concurrent submit fails before anything is saved.
func (s *Session) reserveSubmit() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return domain.ErrSessionClosed
	}
	if s.state != domain.StateAuthoring || s.submitting {
		return domain.ErrSessionAlreadyActive
	}
	s.submitting = true
	return nil
}

// releaseSubmit gives the reservation back after a failed submit.
func (s *Session) releaseSubmit() {
	s.mu.Lock()
	s.submitting = false
	s.mu.Unlock()
}

// SelectAnswer records key as the answer to the question at index. Only the
// first selection for a question moves the answered counter.
func (s *Session) SelectAnswer(index int, key string) (domain.SessionView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return domain.SessionView{}, domain.ErrSessionClosed
	}
	if s.state != domain.StateActive {
		return domain.SessionView{}, domain.ErrSessionNotActive
	}
	if index < 0 || index >= len(s.quiz.Questions) {
		return domain.SessionView{}, fmt.Errorf("%w: index %d", domain.ErrQuestionNotFound, index)
	}
	question := &s.quiz.Questions[index]
	if _, ok := question.Options.Get(key); !ok {
		return domain.SessionView{}, fmt.Errorf("%w: %q", domain.ErrOptionNotFound, key)
	}

	if question.UserAnswer == "" {
		s.answered++
	}
	question.UserAnswer = key

	return s.broadcastLocked(), nil
}

// Answered is the number of distinct questions that received a selection.
func (s *Session) Answered() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.answered
}

// Remaining returns the seconds left on the countdown.
func (s *Session) Remaining() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.remainingLocked()
}

func (s *Session) View() domain.SessionView {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

// Close stops the countdown and closes subscriber channels. Idempotent.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	countdown := s.countdown
	for ch := range s.subscribers {
		delete(s.subscribers, ch)
		close(ch)
	}
	s.mu.Unlock()

	// The tick callback takes s.mu, so wait for it only after unlocking.
	if countdown != nil {
		countdown.Stop()
	}
}

// watched reports whether any subscriber is attached.
func (s *Session) watched() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.subscribers) > 0
}

func (s *Session) isClosed() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.closed
}

func (s *Session) onTick(int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || s.state != domain.StateActive {
		return
	}
	s.broadcastLocked()
}

func (s *Session) subscribe() (<-chan domain.SessionView, func(), error) {
	ch := make(chan domain.SessionView, 8)

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, nil, domain.ErrSessionClosed
	}
	s.subscribers[ch] = struct{}{}
	ch <- s.snapshotLocked()
	s.mu.Unlock()

	cancel := func() {
		s.mu.Lock()
		if _, ok := s.subscribers[ch]; ok {
			delete(s.subscribers, ch)
			close(ch)
		}
		s.mu.Unlock()
	}
	return ch, cancel, nil
}

func (s *Session) broadcastLocked() domain.SessionView {
	view := s.snapshotLocked()
	for ch := range s.subscribers {
		select {
		case ch <- view:
		default:
			// Slow subscriber: replace its oldest pending view.
			select {
			case <-ch:
			default:
			}
			ch <- view
		}
	}
	return view
}

func (s *Session) remainingLocked() int {
	if s.countdown == nil {
		return s.quiz.DurationMinutes * 60
	}
	return s.countdown.Remaining()
}

func (s *Session) snapshotLocked() domain.SessionView {
	view := domain.SessionView{
		SessionID:   s.id,
		State:       s.state,
		QuizID:      s.quiz.ID,
		SubjectName: s.quiz.SubjectName,
		QuizName:    s.quiz.QuizName,
		Questions:   make([]domain.QuestionView, 0, len(s.quiz.Questions)),
		Answered:    s.answered,
		Total:       len(s.quiz.Questions),
	}
	for i, q := range s.quiz.Questions {
		qv := domain.QuestionView{
			Index:      i,
			Text:       q.Text,
			Options:    make([]domain.OptionView, 0, q.Options.Len()),
			UserAnswer: q.UserAnswer,
			Answered:   q.UserAnswer != "",
		}
		for _, opt := range q.Options {
			qv.Options = append(qv.Options, domain.OptionView{
				Key:      opt.Key,
				Text:     opt.Text,
				Selected: opt.Key == q.UserAnswer,
			})
		}
		if qv.Answered {
			correct := q.UserAnswer == q.CorrectAnswer
			qv.Correct = &correct
			if correct {
				view.Score++
			}
		}
		view.Questions = append(view.Questions, qv)
	}
	view.Progress = domain.FormatProgress(view.Answered, view.Total)
	view.RemainingSeconds = s.remainingLocked()
	view.Clock = domain.FormatClock(view.RemainingSeconds)
	return view
}
