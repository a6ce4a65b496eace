package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

// QuestionPatch lists the question fields an administrator may edit.
// Nil fields are left untouched.
type QuestionPatch struct {
	Text               *string     `json:"question,omitempty"`
	CorrectAnswer      *Answers    `json:"correct_answer,omitempty"`
	AlternativeAnswers *[]string   `json:"alternative_answers,omitempty"`
	Topic              *string     `json:"topic,omitempty"`
	Category           *string     `json:"category,omitempty"`
	Difficulty         *Difficulty `json:"difficulty,omitempty"`
	ReviewStatus       *string     `json:"review_status,omitempty"`
	Explanation        *string     `json:"explanation,omitempty"`
}

// DecodeQuestionPatch reads a patch and rejects keys outside the allow-list.
func DecodeQuestionPatch(r io.Reader) (QuestionPatch, error) {
	var patch QuestionPatch
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&patch); err != nil {
		if strings.HasPrefix(err.Error(), "json: unknown field") {
			return QuestionPatch{}, fmt.Errorf("%w: %s", ErrUnknownPatchField, strings.TrimPrefix(err.Error(), "json: unknown field "))
		}
		return QuestionPatch{}, fmt.Errorf("%w: %v", ErrInvalidArgument, err)
	}
	if err := patch.Validate(); err != nil {
		return QuestionPatch{}, err
	}
	return patch, nil
}

// DecodeQuestionPatchBytes is DecodeQuestionPatch over a byte slice.
func DecodeQuestionPatchBytes(data []byte) (QuestionPatch, error) {
	return DecodeQuestionPatch(bytes.NewReader(data))
}

// Validate checks the values of set fields.
func (p QuestionPatch) Validate() error {
	if p.Difficulty != nil {
		switch *p.Difficulty {
		case DifficultyEasy, DifficultyMedium, DifficultyHard:
		default:
			return ErrInvalidDifficulty
		}
	}
	if p.ReviewStatus != nil {
		switch *p.ReviewStatus {
		case ReviewApproved, ReviewPendingReview, ReviewRejected:
		default:
			return fmt.Errorf("%w: review_status %q", ErrInvalidArgument, *p.ReviewStatus)
		}
	}
	if p.Text != nil && strings.TrimSpace(*p.Text) == "" {
		return fmt.Errorf("%w: question text is empty", ErrInvalidArgument)
	}
	if p.CorrectAnswer != nil && len(*p.CorrectAnswer) == 0 {
		return fmt.Errorf("%w: correct_answer is empty", ErrInvalidArgument)
	}
	return nil
}

// Empty reports whether the patch changes nothing.
func (p QuestionPatch) Empty() bool {
	return p == QuestionPatch{}
}

// Apply returns a copy of q with the patch applied. TextChanged reports whether the
// embedding input changed.
func (p QuestionPatch) Apply(q Question) (out Question, textChanged bool) {
	out = q
	if p.Text != nil {
		textChanged = *p.Text != q.Text
		out.Text = *p.Text
	}
	if p.CorrectAnswer != nil {
		out.CorrectAnswer = append(Answers(nil), (*p.CorrectAnswer)...)
	}
	if p.AlternativeAnswers != nil {
		out.AlternativeAnswers = append([]string(nil), (*p.AlternativeAnswers)...)
	}
	if p.Topic != nil {
		out.Topic = *p.Topic
	}
	if p.Category != nil {
		out.Category = *p.Category
	}
	if p.Difficulty != nil {
		out.Difficulty = *p.Difficulty
	}
	if p.ReviewStatus != nil {
		out.ReviewStatus = *p.ReviewStatus
	}
	if p.Explanation != nil {
		out.Explanation = *p.Explanation
	}
	if textChanged {
		out.Embedding = nil
	}
	return out, textChanged
}
