package generator

import (
	"context"
	"fmt"
	"time"
)

// Simulated stands in for the upstream service in development. Each document
// takes StepDelay.
type Simulated struct {
	StepDelay time.Duration
}

// Generate produces placeholder questions, waiting StepDelay per document.
func (s *Simulated) Generate(ctx context.Context, req Request, progress ProgressFunc) (*Content, error) {
	total := len(req.DocumentIDs)
	perDoc := splitQuestions(req.QuestionCount, max(total, 1))
	content := &Content{}

	for i, docID := range req.DocumentIDs {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(s.StepDelay):
		}

		for q := 0; q < perDoc[i]; q++ {
			content.Questions = append(content.Questions, Question{
				Prompt:      fmt.Sprintf("%s: question %d from %s", req.Title, q+1, docID),
				Choices:     []string{"A", "B", "C", "D"},
				AnswerIndex: q % 4,
				SourceDocID: docID,
			})
		}

		if progress != nil {
			progress(i+1, total, fmt.Sprintf("Generated questions from document %d of %d", i+1, total))
		}
	}

	return content, nil
}
