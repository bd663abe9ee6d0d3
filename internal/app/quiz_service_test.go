package app_test

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"

	"quizdesk/internal/app"
	"quizdesk/internal/domain"
	"quizdesk/internal/infra/memory"
)

const rawQuiz = "What is 2+2?\na) 3\nb) 4\nAnswer: b\n\nCapital of France?\na) Paris\nb) Rome\nAnswer: a\n"

func TestSubmitQuizActivatesSession(t *testing.T) {
	ctx := context.Background()
	store := memory.NewQuizStore()
	events := &recordingEvents{}
	service := newTestService(store, app.WithEvents(events))

	session := service.OpenSession(ctx)
	view, err := service.SubmitQuiz(ctx, session.ID(), domain.Draft{
		SubjectName: "General",
		QuizName:    "Mixed bag",
		Duration:    "5",
		RawText:     rawQuiz,
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	defer service.Shutdown()

	if view.State != domain.StateActive || view.Total != 2 || view.Clock != "5:00" {
		t.Fatalf("unexpected view %+v", view)
	}
	if store.Len() != 1 {
		t.Fatalf("expected one stored quiz, got %d", store.Len())
	}

	stored, err := store.LoadQuiz(ctx, view.QuizID)
	if err != nil {
		t.Fatalf("load stored quiz: %v", err)
	}
	if stored.SubjectName != "General" || stored.DurationMinutes != 5 || len(stored.Questions) != 2 {
		t.Fatalf("unexpected stored quiz %+v", stored)
	}
	if !stored.CreatedAt.Equal(fixedNow) {
		t.Fatalf("expected createdAt %v, got %v", fixedNow, stored.CreatedAt)
	}
	if len(events.created) != 1 || events.created[0].ID != view.QuizID {
		t.Fatalf("expected quiz.created event, got %+v", events.created)
	}
}

func TestSubmitQuizPersistenceFailureStaysAuthoring(t *testing.T) {
	ctx := context.Background()
	logger, hook := test.NewNullLogger()
	service := app.NewQuizService(memory.NewSessionStore(), failingStore{}, memory.NewQuizRepository(memory.NewQuizStore(), time.Minute),
		app.WithLogger(logger))

	session := service.OpenSession(ctx)
	_, err := service.SubmitQuiz(ctx, session.ID(), domain.Draft{Duration: "10", RawText: rawQuiz})
	if !errors.Is(err, domain.ErrPersistQuiz) || !errors.Is(err, errStoreDown) {
		t.Fatalf("expected wrapped persistence error, got %v", err)
	}
	if session.State() != domain.StateAuthoring {
		t.Fatalf("expected session to stay authoring, got %s", session.State())
	}

	var logged bool
	for _, entry := range hook.AllEntries() {
		if entry.Level == logrus.ErrorLevel {
			logged = true
		}
	}
	if !logged {
		t.Fatalf("expected persistence failure to be logged")
	}
}

func TestSubmitQuizRejectsBadDuration(t *testing.T) {
	ctx := context.Background()
	store := memory.NewQuizStore()
	service := newTestService(store)
	session := service.OpenSession(ctx)

	for _, raw := range []string{"abc", "0", "-1", "9223372036854775807"} {
		_, err := service.SubmitQuiz(ctx, session.ID(), domain.Draft{Duration: raw, RawText: rawQuiz})
		if !errors.Is(err, domain.ErrInvalidDuration) {
			t.Fatalf("duration %q: expected ErrInvalidDuration, got %v", raw, err)
		}
	}
	if store.Len() != 0 {
		t.Fatalf("nothing should be stored for invalid drafts")
	}
	if session.State() != domain.StateAuthoring {
		t.Fatalf("expected session to stay authoring, got %s", session.State())
	}
}

func TestSubmitQuizDefaultDuration(t *testing.T) {
	ctx := context.Background()
	service := newTestService(memory.NewQuizStore(), app.WithDefaultDuration(30))
	defer service.Shutdown()

	session := service.OpenSession(ctx)
	view, err := service.SubmitQuiz(ctx, session.ID(), domain.Draft{RawText: rawQuiz})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if view.Clock != "30:00" {
		t.Fatalf("expected 30:00, got %s", view.Clock)
	}
}

func TestSubmitQuizTwiceRejected(t *testing.T) {
	ctx := context.Background()
	service := newTestService(memory.NewQuizStore())
	defer service.Shutdown()

	session := service.OpenSession(ctx)
	draft := domain.Draft{Duration: "1", RawText: rawQuiz}
	if _, err := service.SubmitQuiz(ctx, session.ID(), draft); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if _, err := service.SubmitQuiz(ctx, session.ID(), draft); !errors.Is(err, domain.ErrSessionAlreadyActive) {
		t.Fatalf("expected ErrSessionAlreadyActive, got %v", err)
	}
}

func TestSelectAnswerAndClose(t *testing.T) {
	ctx := context.Background()
	service := newTestService(memory.NewQuizStore())

	session := service.OpenSession(ctx)
	if _, err := service.SubmitQuiz(ctx, session.ID(), domain.Draft{Duration: "1", RawText: rawQuiz}); err != nil {
		t.Fatalf("submit: %v", err)
	}

	view, err := service.SelectAnswer(ctx, session.ID(), 1, "a")
	if err != nil {
		t.Fatalf("select: %v", err)
	}
	if view.Progress != "1/2 questions answered" || view.Score != 1 {
		t.Fatalf("unexpected view %+v", view)
	}

	if err := service.CloseSession(ctx, session.ID()); err != nil {
		t.Fatalf("close: %v", err)
	}
	if _, err := service.View(ctx, session.ID()); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound after close, got %v", err)
	}
	if err := service.CloseSession(ctx, session.ID()); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound on second close, got %v", err)
	}
}

func TestStartStoredQuiz(t *testing.T) {
	ctx := context.Background()
	store := memory.NewQuizStore()
	service := newTestService(store)
	defer service.Shutdown()

	first := service.OpenSession(ctx)
	created, err := service.SubmitQuiz(ctx, first.ID(), domain.Draft{Duration: "2", RawText: rawQuiz})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if _, err := service.SelectAnswer(ctx, first.ID(), 0, "b"); err != nil {
		t.Fatalf("select: %v", err)
	}

	retake, err := service.StartStoredQuiz(ctx, created.QuizID)
	if err != nil {
		t.Fatalf("start stored quiz: %v", err)
	}
	if retake.SessionID == first.ID() || retake.Answered != 0 || retake.Total != 2 || retake.Clock != "2:00" {
		t.Fatalf("unexpected retake view %+v", retake)
	}

	if _, err := service.StartStoredQuiz(ctx, "missing"); !errors.Is(err, domain.ErrQuizNotFound) {
		t.Fatalf("expected ErrQuizNotFound, got %v", err)
	}
}

func TestPreviewReportsDiscardedQuestions(t *testing.T) {
	service := newTestService(memory.NewQuizStore())
	report := service.Preview("Lost question?\na) x\n" + rawQuiz)
	if len(report.Questions) != 2 || len(report.Discarded) != 1 {
		t.Fatalf("unexpected report %+v", report)
	}
}

func TestSubscribeReceivesUpdates(t *testing.T) {
	ctx := context.Background()
	service := newTestService(memory.NewQuizStore())
	defer service.Shutdown()

	session := service.OpenSession(ctx)
	if _, err := service.SubmitQuiz(ctx, session.ID(), domain.Draft{Duration: "1", RawText: rawQuiz}); err != nil {
		t.Fatalf("submit: %v", err)
	}
	ch, cancel, err := service.Subscribe(ctx, session.ID())
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer cancel()

	<-ch // initial snapshot

	if _, err := service.SelectAnswer(ctx, session.ID(), 0, "b"); err != nil {
		t.Fatalf("select: %v", err)
	}
	for update := range ch {
		// timer ticks may arrive first
		if update.Answered == 1 {
			return
		}
	}
	t.Fatalf("subscription closed before answer update")
}

func TestShutdownClosesSessions(t *testing.T) {
	ctx := context.Background()
	sessions := memory.NewSessionStore()
	service := app.NewQuizService(sessions, memory.NewQuizStore(), memory.NewQuizRepository(memory.NewQuizStore(), time.Minute),
		app.WithLogger(quietLogger()))

	a := service.OpenSession(ctx)
	_ = service.OpenSession(ctx)
	if _, err := service.SubmitQuiz(ctx, a.ID(), domain.Draft{Duration: "1", RawText: rawQuiz}); err != nil {
		t.Fatalf("submit: %v", err)
	}

	service.Shutdown()
	if len(sessions.All()) != 0 {
		t.Fatalf("expected all sessions removed")
	}
	if _, err := a.SelectAnswer(0, "a"); !errors.Is(err, domain.ErrSessionClosed) {
		t.Fatalf("expected closed session, got %v", err)
	}
}

var fixedNow = time.Date(2024, 11, 22, 10, 0, 0, 0, time.UTC)

var errStoreDown = errors.New("document store unavailable")

func TestConcurrentSubmitSavesOnce(t *testing.T) {
	ctx := context.Background()
	store := memory.NewQuizStore()
	gated := &gatedStore{QuizStore: store, entered: make(chan struct{}, 1), release: make(chan struct{})}
	service := app.NewQuizService(memory.NewSessionStore(), gated, memory.NewQuizRepository(store, time.Minute),
		app.WithLogger(quietLogger()))
	defer service.Shutdown()

	session := service.OpenSession(ctx)
	first := make(chan error, 1)
	go func() {
		_, err := service.SubmitQuiz(ctx, session.ID(), domain.Draft{Duration: "1", RawText: rawQuiz})
		first <- err
	}()
	<-gated.entered

	if _, err := service.SubmitQuiz(ctx, session.ID(), domain.Draft{Duration: "1", RawText: rawQuiz}); !errors.Is(err, domain.ErrSessionAlreadyActive) {
		t.Fatalf("expected ErrSessionAlreadyActive while the first submit is saving, got %v", err)
	}
	close(gated.release)

	if err := <-first; err != nil {
		t.Fatalf("first submit: %v", err)
	}
	if store.Len() != 1 {
		t.Fatalf("expected exactly one stored quiz, got %d", store.Len())
	}
	if session.State() != domain.StateActive {
		t.Fatalf("expected active session, got %s", session.State())
	}
}

func TestSubmitQuizCanRetryAfterStoreFailure(t *testing.T) {
	ctx := context.Background()
	store := &flakyStore{QuizStore: memory.NewQuizStore(), failures: 1}
	service := app.NewQuizService(memory.NewSessionStore(), store, memory.NewQuizRepository(store, time.Minute),
		app.WithLogger(quietLogger()))
	defer service.Shutdown()

	session := service.OpenSession(ctx)
	draft := domain.Draft{Duration: "1", RawText: rawQuiz}
	if _, err := service.SubmitQuiz(ctx, session.ID(), draft); !errors.Is(err, domain.ErrPersistQuiz) {
		t.Fatalf("expected ErrPersistQuiz, got %v", err)
	}
	view, err := service.SubmitQuiz(ctx, session.ID(), draft)
	if err != nil {
		t.Fatalf("retry: %v", err)
	}
	if view.State != domain.StateActive {
		t.Fatalf("expected active after retry, got %s", view.State)
	}
}

func TestReapIdleClosesAbandonedSessions(t *testing.T) {
	ctx := context.Background()
	now := fixedNow
	clock := func() time.Time { return now }
	store := memory.NewQuizStore()
	sessions := memory.NewSessionStore(memory.WithIdleTTL(time.Minute), memory.WithStoreClock(clock))
	service := app.NewQuizService(sessions, store, memory.NewQuizRepository(store, time.Minute),
		app.WithLogger(quietLogger()))
	defer service.Shutdown()

	abandoned := service.OpenSession(ctx)
	now = now.Add(2 * time.Minute)
	kept := service.OpenSession(ctx)

	if n := service.ReapIdle(); n != 1 {
		t.Fatalf("expected one session reaped, got %d", n)
	}
	if _, err := service.View(ctx, abandoned.ID()); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Fatalf("expected reaped session to be gone, got %v", err)
	}
	if _, err := service.View(ctx, kept.ID()); err != nil {
		t.Fatalf("expected recent session kept: %v", err)
	}
}

func TestReapIdleKeepsWatchedSessions(t *testing.T) {
	ctx := context.Background()
	now := fixedNow
	clock := func() time.Time { return now }
	store := memory.NewQuizStore()
	sessions := memory.NewSessionStore(memory.WithIdleTTL(time.Minute), memory.WithStoreClock(clock))
	service := app.NewQuizService(sessions, store, memory.NewQuizRepository(store, time.Minute),
		app.WithLogger(quietLogger()))
	defer service.Shutdown()

	session := service.OpenSession(ctx)
	_, cancel, err := service.Subscribe(ctx, session.ID())
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer cancel()

	now = now.Add(50 * time.Second)
	if n := service.ReapIdle(); n != 0 {
		t.Fatalf("expected nothing reaped, got %d", n)
	}
	now = now.Add(50 * time.Second)
	if n := service.ReapIdle(); n != 0 {
		t.Fatalf("expected watched session kept, got %d reaped", n)
	}
	if _, err := service.View(ctx, session.ID()); err != nil {
		t.Fatalf("expected watched session alive: %v", err)
	}
}

type gatedStore struct {
	*memory.QuizStore
	entered chan struct{}
	release chan struct{}
}

func (g *gatedStore) SaveQuiz(ctx context.Context, quiz domain.Quiz) (string, error) {
	g.entered <- struct{}{}
	<-g.release
	return g.QuizStore.SaveQuiz(ctx, quiz)
}

type flakyStore struct {
	*memory.QuizStore
	mu       sync.Mutex
	failures int
}

func (f *flakyStore) SaveQuiz(ctx context.Context, quiz domain.Quiz) (string, error) {
	f.mu.Lock()
	if f.failures > 0 {
		f.failures--
		f.mu.Unlock()
		return "", errStoreDown
	}
	f.mu.Unlock()
	return f.QuizStore.SaveQuiz(ctx, quiz)
}

type failingStore struct{}

func (failingStore) SaveQuiz(context.Context, domain.Quiz) (string, error) {
	return "", errStoreDown
}

type recordingEvents struct {
	mu      sync.Mutex
	created []domain.Quiz
}

func (r *recordingEvents) QuizCreated(_ context.Context, quiz domain.Quiz) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.created = append(r.created, quiz)
	return nil
}

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func newTestService(store *memory.QuizStore, opts ...app.Option) *app.QuizService {
	opts = append([]app.Option{
		app.WithLogger(quietLogger()),
		app.WithServiceClock(func() time.Time { return fixedNow }),
	}, opts...)
	return app.NewQuizService(memory.NewSessionStore(), store, memory.NewQuizRepository(store, time.Minute), opts...)
}
