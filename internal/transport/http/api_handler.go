package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"

	"quizdesk/internal/app"
	"quizdesk/internal/domain"
)

// APIHandler serves the JSON endpoints for authoring and answering.
type APIHandler struct {
	service *app.QuizService
	log     logrus.FieldLogger
}

func NewAPIHandler(service *app.QuizService, log logrus.FieldLogger) *APIHandler {
	return &APIHandler{service: service, log: log}
}

type sessionCreated struct {
	ID    string              `json:"id"`
	State domain.SessionState `json:"state"`
}

type submitQuizRequest struct {
	SubjectName string          `json:"subjectName"`
	QuizName    string          `json:"quizName"`
	Duration    json.RawMessage `json:"duration"`
	RawText     string          `json:"rawText"`
}

type answerRequest struct {
	QuestionIndex int    `json:"questionIndex"`
	Key           string `json:"key"`
}

type parseRequest struct {
	RawText string `json:"rawText"`
}

// quizResponse is a stored quiz without its answer key.
type quizResponse struct {
	ID              string         `json:"id"`
	SubjectName     string         `json:"subjectName"`
	QuizName        string         `json:"quizName"`
	DurationMinutes int            `json:"durationMinutes"`
	Questions       []quizQuestion `json:"questions"`
	CreatedAt       time.Time      `json:"createdAt"`
}

type quizQuestion struct {
	Text    string         `json:"questionText"`
	Options domain.Options `json:"options"`
}

func newQuizResponse(quiz domain.Quiz) quizResponse {
	resp := quizResponse{
		ID:              quiz.ID,
		SubjectName:     quiz.SubjectName,
		QuizName:        quiz.QuizName,
		DurationMinutes: quiz.DurationMinutes,
		Questions:       make([]quizQuestion, 0, len(quiz.Questions)),
		CreatedAt:       quiz.CreatedAt,
	}
	for _, q := range quiz.Questions {
		resp.Questions = append(resp.Questions, quizQuestion{Text: q.Text, Options: q.Options})
	}
	return resp
}

type errorResponse struct {
	Error string `json:"error"`
}

func (h *APIHandler) OpenSession(w http.ResponseWriter, r *http.Request) {
	session := h.service.OpenSession(r.Context())
	writeJSON(w, http.StatusCreated, sessionCreated{ID: session.ID(), State: session.State()})
}

func (h *APIHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	view, err := h.service.View(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (h *APIHandler) CloseSession(w http.ResponseWriter, r *http.Request) {
	if err := h.service.CloseSession(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *APIHandler) SubmitQuiz(w http.ResponseWriter, r *http.Request) {
	var req submitQuizRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}
	duration, err := durationField(req.Duration)
	if err != nil {
		h.writeError(w, err)
		return
	}
	view, err := h.service.SubmitQuiz(r.Context(), chi.URLParam(r, "id"), domain.Draft{
		SubjectName: req.SubjectName,
		QuizName:    req.QuizName,
		Duration:    duration,
		RawText:     req.RawText,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, view)
}

func (h *APIHandler) SelectAnswer(w http.ResponseWriter, r *http.Request) {
	var req answerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}
	view, err := h.service.SelectAnswer(r.Context(), chi.URLParam(r, "id"), req.QuestionIndex, req.Key)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (h *APIHandler) Parse(w http.ResponseWriter, r *http.Request) {
	var req parseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}
	writeJSON(w, http.StatusOK, h.service.Preview(req.RawText))
}

func (h *APIHandler) GetQuiz(w http.ResponseWriter, r *http.Request) {
	quiz, err := h.service.GetQuiz(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newQuizResponse(quiz))
}

func (h *APIHandler) StartStoredQuiz(w http.ResponseWriter, r *http.Request) {
	view, err := h.service.StartStoredQuiz(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, view)
}

// durationField accepts the form duration as a JSON number or string.
func durationField(raw json.RawMessage) (string, error) {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" || trimmed == "null" {
		return "", nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, nil
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		return "", fmt.Errorf("%w: %s", domain.ErrInvalidDuration, trimmed)
	}
	if _, err := strconv.Atoi(n.String()); err != nil {
		return "", fmt.Errorf("%w: %s", domain.ErrInvalidDuration, n)
	}
	return n.String(), nil
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrSessionNotFound), errors.Is(err, domain.ErrQuizNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrInvalidDuration):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrSessionAlreadyActive), errors.Is(err, domain.ErrSessionNotActive),
		errors.Is(err, domain.ErrSessionClosed):
		return http.StatusConflict
	case errors.Is(err, domain.ErrQuestionNotFound), errors.Is(err, domain.ErrOptionNotFound):
		return http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrPersistQuiz):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (h *APIHandler) writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		h.log.WithError(err).Error("request failed")
		msg = "internal error"
	} else if errors.Is(err, domain.ErrPersistQuiz) {
		// store details are in the service log
		msg = domain.ErrPersistQuiz.Error()
	}
	writeJSON(w, status, errorResponse{Error: msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
