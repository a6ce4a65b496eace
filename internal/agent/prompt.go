package agent

import (
	"fmt"
	"strings"

	"quiz-agent-service/internal/domain"
	"quiz-agent-service/internal/generation"
)

const classifierSystem = `You classify what a quiz player said into intents. One utterance may carry several intents.

Intent types:
- answer: the player answers the current question. Extract only the answer words, never the question text. Answers longer than 100 characters are almost certainly transcription noise; if the utterance only repeats the question, use skip.
- skip: the player passes (skip, pass, next, "I don't know").
- rating: the player rates the question 1-5. Negative remarks ("too easy", "boring", "don't like it") are 1, enthusiastic ones ("great question") are 5, explicit numbers are kept. Put any remark in feedback.
- preference_change: topics to avoid or prefer, optionally with a difficulty of "harder" or "easier".
- difficulty_change: only a difficulty request ("harder", "easier", or a level name).
- category_change: the player names categories to restrict to, comma separated, or "any".
- start: the player wants to begin.
- explanation_request: the player asks what something in the question means.
- quit: the player wants to stop.
- unclear: anything else; it is ignored.

Examples:
"London. No more geography" -> answer(London), preference_change(avoid geography)
"Paris, but this is too easy" -> answer(Paris), rating(1)
"42, make it harder" -> answer(42), difficulty_change(harder)

Write a short friendly confirmation_message for side intents and null for answers.
Set every extracted_data field that does not apply to null.`

func classifierPrompt(input, questionText string, phase domain.Phase) string {
	if questionText == "" {
		questionText = "none asked yet"
	}
	return fmt.Sprintf("Quiz phase: %s\nCurrent question: %s\nPlayer said: %s", phase, questionText, input)
}

const judgeSystem = `You grade quiz answers fairly. If the player clearly knows the answer, it is correct.

- correct: captures the key concept. Accept shorter forms that keep the essential element, common abbreviations, minor misspellings and more specific correct answers.
- partially_correct: the right idea but missing an important qualifier or with a small factual slip.
- partially_incorrect: related to the answer but mostly wrong.
- incorrect: wrong, unrelated or nonsense.`

func judgePrompt(q domain.Question, answer string) string {
	accepted := q.CorrectAnswer.Canonical()
	var alts []string
	if len(q.CorrectAnswer) > 1 {
		alts = append(alts, q.CorrectAnswer[1:]...)
	}
	alts = append(alts, q.AlternativeAnswers...)
	if len(alts) > 0 {
		accepted += " (also accepted: " + strings.Join(alts, ", ") + ")"
	}
	return fmt.Sprintf("Question: %s\nCorrect answer: %s\nPlayer's answer: %s", q.Text, accepted, answer)
}

const criticSystem = `You review questions written for a spoken trivia quiz. Score each from 0 to 10.

Consider: the answer is factually correct and unambiguous; the question reads naturally aloud; it is short enough to hear once; the difficulty label fits; it is interesting rather than rote.
Verdicts: excellent (9+), good (7-9), acceptable (5-7), poor (under 5).`

func criticPrompt(q domain.Question) string {
	return fmt.Sprintf("Question: %s\nAnswer: %s\nTopic: %s\nCategory: %s\nDifficulty: %s",
		q.Text, q.CorrectAnswer.Canonical(), q.Topic, q.Category, q.Difficulty)
}

const generatorSystem = `You write questions for a spoken trivia quiz.

Rules:
- Each question is a single sentence that sounds natural read aloud.
- Each answer is one to four words and indisputably correct.
- List common alternative spellings or forms of the answer.
- Do not repeat a question within the batch.
- Add a one-sentence explanation of the answer.`

func generatorPrompt(req generation.Request, n int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Write %d questions.\n", n)
	difficulty := req.Difficulty
	if difficulty == "" || difficulty == domain.DifficultyRandom {
		b.WriteString("Mix easy, medium and hard questions.\n")
	} else {
		fmt.Fprintf(&b, "Difficulty: %s\n", difficulty)
	}
	if len(req.Topics) > 0 {
		fmt.Fprintf(&b, "Topics: %s\n", strings.Join(req.Topics, ", "))
	}
	if len(req.Categories) > 0 {
		fmt.Fprintf(&b, "Categories: %s\n", strings.Join(req.Categories, ", "))
	}
	if len(req.ExcludedTopics) > 0 {
		fmt.Fprintf(&b, "Avoid topics: %s\n", strings.Join(req.ExcludedTopics, ", "))
	}
	return b.String()
}
