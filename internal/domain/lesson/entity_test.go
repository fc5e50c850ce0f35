package lesson

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func sampleQuiz() Quiz {
	return Quiz{
		ID:       1,
		LessonID: 10,
		Title:    "Recycling basics",
		Questions: []QuizQuestion{
			{ID: 1, QuizID: 1, Question: "Which bin for glass?", Options: []string{"Green", "Blue"}, CorrectOption: "Green"},
			{ID: 2, QuizID: 1, Question: "Which bin for paper?", Options: []string{"Green", "Blue"}, CorrectOption: "Blue"},
			{ID: 3, QuizID: 1, Question: "Compost food waste?", Options: []string{"Yes", "No"}, CorrectOption: "Yes"},
		},
	}
}

func TestQuizGradeAllCorrect(t *testing.T) {
	quiz := sampleQuiz()

	correct, total := quiz.Grade(map[int64]string{1: "Green", 2: "Blue", 3: "Yes"})
	assert.Equal(t, 3, correct)
	assert.Equal(t, 3, total)
}

func TestQuizGradePartial(t *testing.T) {
	quiz := sampleQuiz()

	correct, total := quiz.Grade(map[int64]string{1: "Green", 2: "Green"})
	assert.Equal(t, 1, correct)
	assert.Equal(t, 3, total)
}

func TestQuizGradeCaseInsensitive(t *testing.T) {
	quiz := sampleQuiz()

	correct, _ := quiz.Grade(map[int64]string{1: "green", 2: "BLUE", 3: "yes"})
	assert.Equal(t, 3, correct)
}

func TestQuizGradeNoAnswers(t *testing.T) {
	quiz := sampleQuiz()

	correct, total := quiz.Grade(nil)
	assert.Equal(t, 0, correct)
	assert.Equal(t, 3, total)
}

func TestQuizGradeUnknownQuestionIgnored(t *testing.T) {
	quiz := sampleQuiz()

	correct, _ := quiz.Grade(map[int64]string{99: "Green"})
	assert.Equal(t, 0, correct)
}
