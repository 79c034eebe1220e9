// Package generator talks to the upstream content generation service.
package generator

import (
	"context"
)

// Request describes one assessment to generate.
type Request struct {
	ResourceID    string   `json:"resourceId"`
	Title         string   `json:"title"`
	DocumentIDs   []string `json:"documentIds"`
	QuestionCount int      `json:"questionCount"`
}

// Question is a single generated multiple-choice question.
type Question struct {
	Prompt      string   `json:"prompt"`
	Choices     []string `json:"choices"`
	AnswerIndex int      `json:"answerIndex"`
	SourceDocID string   `json:"sourceDocumentId,omitempty"`
}

// Content is the generated body of an assessment.
type Content struct {
	Questions []Question `json:"questions"`
}

// ProgressFunc receives coarse progress: step of total sub-steps finished.
type ProgressFunc func(step, total int, message string)

// Generator produces assessment content. Implementations must honour ctx
// cancellation; generation may take many minutes.
type Generator interface {
	Generate(ctx context.Context, req Request, progress ProgressFunc) (*Content, error)
}
