package domain

import "time"

// Question is a single multiple-choice question parsed from a question block.
type Question struct {
	Text          string  `json:"questionText"`
	Options       Options `json:"options"`
	CorrectAnswer string  `json:"correctAnswer"`
	UserAnswer    string  `json:"userAnswer"`
}

// WellFormed reports whether the question has text, at least one option and
// a correct answer drawn from its option keys.
func (q Question) WellFormed() bool {
	if q.Text == "" || q.Options.Len() == 0 {
		return false
	}
	_, ok := q.Options.Get(q.CorrectAnswer)
	return ok
}

// Quiz is the document written to the quiz store.
type Quiz struct {
	ID              string     `json:"id,omitempty"`
	SubjectName     string     `json:"subjectName"`
	QuizName        string     `json:"quizName"`
	DurationMinutes int        `json:"durationMinutes"`
	Questions       []Question `json:"questions"`
	CreatedAt       time.Time  `json:"createdAt"`
}

// Clone returns a deep copy with user answers cleared.
func (q Quiz) Clone() Quiz {
	out := q
	out.Questions = make([]Question, len(q.Questions))
	for i, question := range q.Questions {
		question.Options = question.Options.Clone()
		question.UserAnswer = ""
		out.Questions[i] = question
	}
	return out
}

// Draft carries the authoring form fields.
type Draft struct {
	SubjectName string
	QuizName    string
	Duration    string
	RawText     string
}

// SessionState is the view a session is in.
type SessionState string

const (
	StateAuthoring SessionState = "authoring"
	StateActive    SessionState = "active"
)

// OptionView is one selectable option as rendered for a client.
type OptionView struct {
	Key      string `json:"key"`
	Text     string `json:"text"`
	Selected bool   `json:"selected"`
}

// QuestionView is a question without its answer key.
type QuestionView struct {
	Index      int          `json:"index"`
	Text       string       `json:"questionText"`
	Options    []OptionView `json:"options"`
	UserAnswer string       `json:"userAnswer,omitempty"`
	Answered   bool         `json:"answered"`
	Correct    *bool        `json:"correct,omitempty"`
}

// SessionView is a snapshot of a session pushed to clients.
type SessionView struct {
	SessionID        string         `json:"sessionId"`
	State            SessionState   `json:"state"`
	QuizID           string         `json:"quizId,omitempty"`
	SubjectName      string         `json:"subjectName,omitempty"`
	QuizName         string         `json:"quizName,omitempty"`
	Questions        []QuestionView `json:"questions"`
	Answered         int            `json:"answered"`
	Total            int            `json:"total"`
	Progress         string         `json:"progress"`
	Score            int            `json:"score"`
	RemainingSeconds int            `json:"remainingSeconds"`
	Clock            string         `json:"clock"`
}
