// Package parser turns pasted plain-text question blocks into questions.
//
// A question block is a question line, up to four option lines of the form
// "a) text" through "d) text", and a terminating "Answer: x" line:
//
//	What is 2+2?
//	a) 3
//	b) 4
//	Answer: b
//
// Blank lines are ignored. Parsing never fails: lines that do not fit the
// format are dropped and listed in the Report.
package parser

import (
	"regexp"
	"strings"

	"quizdesk/internal/domain"
)

const answerPrefix = "Answer:"

var (
	optionLine  = regexp.MustCompile(`^([a-d])\)\s*(.*)`)
	answerToken = regexp.MustCompile(`Answer:\s*([a-d])`)
)

// DropReason explains why a line did not contribute to a question.
type DropReason string

const (
	// DropOrphanOption is an option line with no open question.
	DropOrphanOption DropReason = "option without question"
	// DropOrphanAnswer is an answer line with no open question.
	DropOrphanAnswer DropReason = "answer without question"
	// DropBadAnswer is an answer line whose token is not a letter a-d.
	DropBadAnswer DropReason = "unrecognized answer"
)

// DroppedLine is an input line that was ignored.
type DroppedLine struct {
	Number int        `json:"line"`
	Text   string     `json:"text"`
	Reason DropReason `json:"reason"`
}

// Report is the full outcome of a parse.
type Report struct {
	Questions []domain.Question `json:"questions"`
	// Discarded holds questions that were never finalized by an answer line.
	Discarded    []domain.Question `json:"discarded,omitempty"`
	DroppedLines []DroppedLine     `json:"droppedLines,omitempty"`
}

type settings struct {
	keepUnanswered bool
}

// Option tunes parsing.
type Option func(*settings)

// WithKeepUnanswered emits questions that have no answer line with an empty
// correct answer instead of discarding them.
func WithKeepUnanswered() Option {
	return func(s *settings) { s.keepUnanswered = true }
}

// Parse returns the finalized questions in input order. A question that is
// still open when the next question line starts is discarded.
func Parse(text string) []domain.Question {
	return ParseReport(text).Questions
}

// ParseReport parses text and also reports what was discarded or dropped.
func ParseReport(text string, opts ...Option) Report {
	var cfg settings
	for _, opt := range opts {
		opt(&cfg)
	}

	report := Report{Questions: []domain.Question{}}
	var current *domain.Question

	abandon := func() {
		if current == nil {
			return
		}
		if cfg.keepUnanswered {
			report.Questions = append(report.Questions, *current)
		} else {
			report.Discarded = append(report.Discarded, *current)
		}
		current = nil
	}
	drop := func(n int, line string, reason DropReason) {
		report.DroppedLines = append(report.DroppedLines, DroppedLine{Number: n, Text: line, Reason: reason})
	}

	for i, line := range strings.Split(text, "\n") {
		n := i + 1
		line = strings.TrimSuffix(line, "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}

		switch {
		case strings.HasPrefix(line, answerPrefix):
			m := answerToken.FindStringSubmatch(line)
			switch {
			case current == nil:
				drop(n, line, DropOrphanAnswer)
			case m == nil:
				drop(n, line, DropBadAnswer)
			default:
				current.CorrectAnswer = m[1]
				report.Questions = append(report.Questions, *current)
				current = nil
			}
		case optionLine.MatchString(line):
			if current == nil {
				drop(n, line, DropOrphanOption)
				continue
			}
			m := optionLine.FindStringSubmatch(line)
			current.Options.Set(m[1], strings.TrimSpace(m[2]))
		default:
			abandon()
			current = &domain.Question{Text: questionText(line), Options: domain.Options{}}
		}
	}
	abandon()

	return report
}

// questionText keeps the line up to and including the first '?', appending
// one when the line has none.
func questionText(line string) string {
	if i := strings.IndexByte(line, '?'); i >= 0 {
		return line[:i+1]
	}
	return line + "?"
}
