package memory

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/google/uuid"

	"quizdesk/internal/domain"
)

// QuizStore keeps quiz documents in process memory. Documents are stored
// serialized so callers never share slices with the store.
type QuizStore struct {
	mu   sync.RWMutex
	docs map[string][]byte
}

// NewQuizStore returns a store seeded with quizzes that already carry an ID.
func NewQuizStore(seed ...domain.Quiz) *QuizStore {
	s := &QuizStore{docs: make(map[string][]byte)}
	for _, quiz := range seed {
		if data, err := json.Marshal(quiz); err == nil {
			s.docs[quiz.ID] = data
		}
	}
	return s
}

func (s *QuizStore) SaveQuiz(_ context.Context, quiz domain.Quiz) (string, error) {
	quiz.ID = uuid.NewString()
	data, err := json.Marshal(quiz)
	if err != nil {
		return "", err
	}
	s.mu.Lock()
	s.docs[quiz.ID] = data
	s.mu.Unlock()
	return quiz.ID, nil
}

func (s *QuizStore) LoadQuiz(_ context.Context, quizID string) (domain.Quiz, error) {
	s.mu.RLock()
	data, ok := s.docs[quizID]
	s.mu.RUnlock()
	if !ok {
		return domain.Quiz{}, domain.ErrQuizNotFound
	}
	var quiz domain.Quiz
	if err := json.Unmarshal(data, &quiz); err != nil {
		return domain.Quiz{}, err
	}
	return quiz, nil
}

func (s *QuizStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.docs)
}
