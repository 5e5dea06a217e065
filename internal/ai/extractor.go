// Package ai is the generative-AI fallback for messages the regex extractor
// cannot parse. Calls are rate limited because the free Gemini tier allows
// roughly one request per minute.
package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/quotedesk/quotedesk/internal/config"
	"github.com/quotedesk/quotedesk/internal/extract"
)

// ErrUpstreamUnavailable is returned when the model could not be reached
// within the attempt budget, usually because the quota is exhausted.
var ErrUpstreamUnavailable = errors.New("ai extractor unavailable")

const backoffStep = 20 * time.Second

const prompt = `Extract the quotation request from the message below into JSON with exactly these keys:
quote_number, customer_name, company_name, quantity, units, product_description, rate, hsn_code, email.
All values are strings. Use "" for anything the message does not state. Do not invent values.

Message:
`

// model is the narrow slice of the genai client the extractor needs;
// swapped out in tests.
type model interface {
	GenerateContent(ctx context.Context, parts ...genai.Part) (*genai.GenerateContentResponse, error)
}

type Extractor struct {
	client      *genai.Client
	model       model
	limiter     *Limiter
	maxAttempts int
	sleep       func(ctx context.Context, d time.Duration) error
}

func NewExtractor(ctx context.Context, cfg config.AIConfig) (*Extractor, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(cfg.APIKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}

	m := client.GenerativeModel(cfg.Model)
	m.ResponseMIMEType = "application/json"

	return &Extractor{
		client:      client,
		model:       m,
		limiter:     NewLimiter(time.Duration(cfg.CooldownSec) * time.Second),
		maxAttempts: cfg.MaxAttempts,
		sleep:       sleepContext,
	}, nil
}

func (e *Extractor) Close() error {
	if e.client == nil {
		return nil
	}
	return e.client.Close()
}

// Extract asks the model for a structured record. Quota errors are retried
// with a growing pause up to the attempt budget; the result goes through the
// same normalization and validation as regex extraction.
func (e *Extractor) Extract(ctx context.Context, text string) (*extract.QuoteRequest, error) {
	var lastErr error
	for attempt := 0; attempt < e.maxAttempts; attempt++ {
		if attempt > 0 {
			if err := e.sleep(ctx, backoffStep*time.Duration(attempt)); err != nil {
				return nil, err
			}
		}
		if err := e.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		resp, err := e.model.GenerateContent(ctx, genai.Text(prompt+text))
		e.limiter.Record()
		if err != nil {
			if !isQuotaError(err) {
				return nil, fmt.Errorf("ai extraction failed: %w", err)
			}
			lastErr = err
			continue
		}
		return decodeResponse(resp)
	}
	return nil, fmt.Errorf("%w: %v", ErrUpstreamUnavailable, lastErr)
}

func isQuotaError(err error) bool {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		return gerr.Code == 429
	}
	return false
}

func decodeResponse(resp *genai.GenerateContentResponse) (*extract.QuoteRequest, error) {
	var sb strings.Builder
	for _, cand := range resp.Candidates {
		if cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if t, ok := part.(genai.Text); ok {
				sb.WriteString(string(t))
			}
		}
	}
	raw := strings.TrimSpace(sb.String())
	if raw == "" {
		return nil, fmt.Errorf("ai extraction failed: %w", extract.ErrParseFailure)
	}

	var q extract.QuoteRequest
	if err := json.Unmarshal([]byte(raw), &q); err != nil {
		return nil, fmt.Errorf("ai response is not valid json: %w", err)
	}
	if err := q.Normalize(); err != nil {
		return nil, err
	}
	return &q, nil
}
