// Package rabbit publishes quiz lifecycle events to RabbitMQ.
package rabbit

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"quizdesk/internal/domain"
)

// QuizCreatedRoutingKey is the routing key of quiz creation events.
const QuizCreatedRoutingKey = "quiz.created"

// QuizCreatedEvent is the JSON body of a quiz.created message. It carries
// the quiz metadata without the answer key.
type QuizCreatedEvent struct {
	QuizID          string    `json:"quizId"`
	SubjectName     string    `json:"subjectName"`
	QuizName        string    `json:"quizName"`
	DurationMinutes int       `json:"durationMinutes"`
	QuestionCount   int       `json:"questionCount"`
	CreatedAt       time.Time `json:"createdAt"`
}

// Publisher declares a topic exchange and publishes events to it.
type Publisher struct {
	conn     *amqp.Connection
	exchange string

	mu      sync.Mutex
	channel *amqp.Channel
}

// Dial connects to url and declares exchange.
func Dial(url, exchange string) (*Publisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	err = ch.ExchangeDeclare(
		exchange,
		"topic",
		true,  // durable
		false, // auto-deleted
		false, // internal
		false, // no-wait
		nil,
	)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("declare exchange %s: %w", exchange, err)
	}
	return &Publisher{conn: conn, exchange: exchange, channel: ch}, nil
}

// QuizCreated publishes a quiz.created event.
func (p *Publisher) QuizCreated(ctx context.Context, quiz domain.Quiz) error {
	body, err := json.Marshal(NewQuizCreatedEvent(quiz))
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	return p.channel.PublishWithContext(ctx,
		p.exchange,
		QuizCreatedRoutingKey,
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			MessageId:    quiz.ID,
			Timestamp:    quiz.CreatedAt,
			Body:         body,
		})
}

func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.channel.Close(); err != nil {
		p.conn.Close()
		return err
	}
	return p.conn.Close()
}

func NewQuizCreatedEvent(quiz domain.Quiz) QuizCreatedEvent {
	return QuizCreatedEvent{
		QuizID:          quiz.ID,
		SubjectName:     quiz.SubjectName,
		QuizName:        quiz.QuizName,
		DurationMinutes: quiz.DurationMinutes,
		QuestionCount:   len(quiz.Questions),
		CreatedAt:       quiz.CreatedAt,
	}
}
