package generator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"assessment-jobs/internal/errors"
)

const (
	// DefaultTimeout bounds a single upstream call, not the whole job.
	DefaultTimeout = 5 * time.Minute
	// MaxResponseSize is the maximum response body size (4MB).
	MaxResponseSize = 4 * 1024 * 1024
)

// HTTPClient generates content by calling the upstream service once per document.
type HTTPClient struct {
	BaseURL    string
	HTTPClient *http.Client
}

type documentRequest struct {
	ResourceID    string `json:"resourceId"`
	Title         string `json:"title"`
	DocumentID    string `json:"documentId"`
	QuestionCount int    `json:"questionCount"`
}

type documentResponse struct {
	Questions []Question `json:"questions"`
}

// NewHTTPClient creates an upstream client. timeout <= 0 uses DefaultTimeout.
func NewHTTPClient(baseURL string, timeout time.Duration) *HTTPClient {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &HTTPClient{
		BaseURL:    strings.TrimSuffix(baseURL, "/"),
		HTTPClient: &http.Client{Timeout: timeout},
	}
}

// Generate asks the upstream service for questions document by document and
// reports a step after each document.
func (c *HTTPClient) Generate(ctx context.Context, req Request, progress ProgressFunc) (*Content, error) {
	total := len(req.DocumentIDs)
	if total == 0 {
		return nil, errors.GenerationFailuref("no documents to generate from")
	}

	perDoc := splitQuestions(req.QuestionCount, total)
	content := &Content{}

	for i, docID := range req.DocumentIDs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		questions, err := c.generateForDocument(ctx, documentRequest{
			ResourceID:    req.ResourceID,
			Title:         req.Title,
			DocumentID:    docID,
			QuestionCount: perDoc[i],
		})
		if err != nil {
			return nil, err
		}
		for j := range questions {
			if questions[j].SourceDocID == "" {
				questions[j].SourceDocID = docID
			}
		}
		content.Questions = append(content.Questions, questions...)

		if progress != nil {
			progress(i+1, total, fmt.Sprintf("Generated questions from document %d of %d", i+1, total))
		}
	}

	return content, nil
}

func (c *HTTPClient) generateForDocument(ctx context.Context, body documentRequest) ([]Question, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, errors.Wrap(err, "failed to encode generation request")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/v1/generate", bytes.NewReader(payload))
	if err != nil {
		return nil, errors.Wrap(err, "failed to create request")
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTPClient.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, errors.Mark(errors.Wrapf(err, "generation request for document %s failed", body.DocumentID), errors.ErrGenerationFailure)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, MaxResponseSize))
	if err != nil {
		return nil, errors.Mark(errors.Wrap(err, "failed to read generation response"), errors.ErrGenerationFailure)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, errors.GenerationFailuref("upstream returned status %d for document %s: %s", resp.StatusCode, body.DocumentID, truncate(string(data), 200))
	}

	// Decode leniently; the upstream may add fields.
	var out documentResponse
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, errors.Mark(errors.Wrap(err, "failed to decode generation response"), errors.ErrGenerationFailure)
	}
	return out.Questions, nil
}

// splitQuestions spreads count across n documents, at least one each.
func splitQuestions(count, n int) []int {
	out := make([]int, n)
	if count < n {
		count = n
	}
	for i := range out {
		out[i] = count / n
		if i < count%n {
			out[i]++
		}
	}
	return out
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
