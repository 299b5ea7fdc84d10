package dto

import "github.com/google/uuid"

type SummaryResponse struct {
	SessionId uuid.UUID `json:"session_id"`
	Summary   string    `json:"summary"`
}

type AnswerDTO struct {
	Text      string `json:"text"`
	IsCorrect bool   `json:"is_correct"`
}

type QuestionDTO struct {
	QuestionText string      `json:"question_text"`
	Answers      []AnswerDTO `json:"answers"`
}

type CardDTO struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}
