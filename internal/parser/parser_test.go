package parser

import (
	"testing"

	"github.com/stretchr/testify/require"

	"quizdesk/internal/domain"
)

const blockAdd = "What is 2+2?\na) 3\nb) 4\nAnswer: b\n"
const blockCapital = "Capital of France? (geography)\na) Paris\nb) Rome\nc) Madrid\nd) Berlin\nAnswer: a\n"

func TestParseSingleBlock(t *testing.T) {
	got := Parse(blockAdd)
	require.Equal(t, []domain.Question{{
		Text:          "What is 2+2?",
		Options:       domain.Options{{Key: "a", Text: "3"}, {Key: "b", Text: "4"}},
		CorrectAnswer: "b",
	}}, got)
}

func TestParseKeepsBlockOrder(t *testing.T) {
	forward := Parse(blockAdd + "\n" + blockCapital)
	require.Len(t, forward, 2)
	require.Equal(t, "What is 2+2?", forward[0].Text)
	require.Equal(t, "Capital of France?", forward[1].Text)
	require.Equal(t, 4, forward[1].Options.Len())
	require.Equal(t, "a", forward[1].CorrectAnswer)

	swapped := Parse(blockCapital + blockAdd)
	require.Equal(t, forward[0], swapped[1])
	require.Equal(t, forward[1], swapped[0])
}

func TestParseQuestionTextWithoutQuestionMark(t *testing.T) {
	got := Parse("Name the largest planet\na) Jupiter\nAnswer: a")
	require.Len(t, got, 1)
	require.Equal(t, "Name the largest planet?", got[0].Text)
}

func TestParseDiscardsUnansweredQuestion(t *testing.T) {
	input := "First question?\na) x\nb) y\n" + blockAdd + "Trailing question?\na) z\n"

	report := ParseReport(input)
	require.Len(t, report.Questions, 1)
	require.Equal(t, "What is 2+2?", report.Questions[0].Text)
	require.Len(t, report.Discarded, 2)
	require.Equal(t, "First question?", report.Discarded[0].Text)
	require.Equal(t, "Trailing question?", report.Discarded[1].Text)

	require.Equal(t, report.Questions, Parse(input))
}

func TestParseKeepUnanswered(t *testing.T) {
	report := ParseReport("First question?\na) x\n"+blockAdd, WithKeepUnanswered())
	require.Len(t, report.Questions, 2)
	require.Equal(t, "First question?", report.Questions[0].Text)
	require.Empty(t, report.Questions[0].CorrectAnswer)
	require.Empty(t, report.Discarded)
}

func TestParseDropsOrphanLines(t *testing.T) {
	input := "a) orphan\nAnswer: a\n" + "Q1?\na) one\nAnswer: z\nAnswer: a\n"
	report := ParseReport(input)

	require.Len(t, report.Questions, 1)
	require.Equal(t, "a", report.Questions[0].CorrectAnswer)
	require.Equal(t, []DroppedLine{
		{Number: 1, Text: "a) orphan", Reason: DropOrphanOption},
		{Number: 2, Text: "Answer: a", Reason: DropOrphanAnswer},
		{Number: 5, Text: "Answer: z", Reason: DropBadAnswer},
	}, report.DroppedLines)
}

func TestParseMalformedOptionStartsQuestion(t *testing.T) {
	// "e)" is outside a-d so it is not an option line.
	report := ParseReport("Pick one?\na) yes\ne) no\nAnswer: a\n")
	require.Len(t, report.Questions, 1)
	require.Equal(t, "e) no?", report.Questions[0].Text)
	require.Len(t, report.Discarded, 1)
}

func TestParseOptionValueTrimmedAndDuplicatesReplace(t *testing.T) {
	got := Parse("Q?\r\na)   spaced out   \r\nb) two\r\na) replaced\r\nAnswer:b\r\n")
	require.Len(t, got, 1)
	require.Equal(t, domain.Options{{Key: "a", Text: "replaced"}, {Key: "b", Text: "two"}}, got[0].Options)
	require.Equal(t, "b", got[0].CorrectAnswer)
}

func TestParseEmptyInput(t *testing.T) {
	require.Empty(t, Parse(""))
	require.Empty(t, Parse("\n   \n\t\n"))
}

func TestParseIsRestartable(t *testing.T) {
	first := Parse(blockAdd)
	second := Parse(blockAdd)
	require.Equal(t, first, second)
}
