package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"concierge/internal/config"
	"concierge/internal/logging"
)

// Role selects which model and generation parameters a call uses.
type Role string

const (
	RoleExtraction     Role = "extraction"
	RoleClassification Role = "classification"
	RoleSynthesis      Role = "synthesis"
	RoleWorker         Role = "worker"
)

// ErrExhausted is returned when the retry budget is consumed without a
// usable reply. Callers must treat it as "no result", never as an
// empty-but-valid answer.
var ErrExhausted = errors.New("gateway: retry budget exhausted")

// ErrMalformedReply is returned when a successful reply fails
// structural parsing. Not retried: resubmitting the same prompt is
// unlikely to fix a formatting regression.
var ErrMalformedReply = errors.New("gateway: reply is not valid JSON")

const (
	maxAttempts  = 3
	attemptDelay = 2 * time.Second
)

// Gateway routes role-tagged prompts to the provider client with a
// bounded retry policy and structural-output validation.
type Gateway struct {
	client LLMClient
	cfg    config.LLMConfig
	// delay between attempts, overridable in tests
	delay time.Duration
}

// New creates a Gateway over the given provider client.
func New(client LLMClient, cfg config.LLMConfig) *Gateway {
	return &Gateway{
		client: client,
		cfg:    cfg,
		delay:  attemptDelay,
	}
}

// request builds the provider request for a role.
func (g *Gateway) request(prompt string, role Role) (Request, error) {
	req := Request{
		Prompt:    prompt,
		MaxTokens: g.cfg.MaxTokens,
	}
	switch role {
	case RoleExtraction:
		req.Model = g.cfg.Models.Extraction
		req.Temperature = g.cfg.Tuning.Extraction
	case RoleClassification:
		req.Model = g.cfg.Models.Classification
		req.Temperature = g.cfg.Tuning.Classification
	case RoleSynthesis:
		req.Model = g.cfg.Models.Synthesis
		req.Temperature = g.cfg.Tuning.Synthesis
	case RoleWorker:
		req.Model = g.cfg.Models.Worker
		req.Temperature = g.cfg.Tuning.Worker
	default:
		return Request{}, fmt.Errorf("gateway: unknown role %q", role)
	}
	return req, nil
}

// Call sends a prompt under a role and returns the parsed JSON payload.
// Transport and non-success-status failures are retried up to the
// budget with a fixed delay. A successful reply that is not valid JSON
// after fence stripping is a hard failure of the call.
func (g *Gateway) Call(ctx context.Context, prompt string, role Role) (json.RawMessage, error) {
	timer := logging.StartTimer(logging.CategoryGateway, fmt.Sprintf("Call(%s)", role))
	defer timer.Stop()

	req, err := g.request(prompt, role)
	if err != nil {
		return nil, err
	}

	logging.GatewayDebug("role=%s model=%s prompt_len=%d", role, req.Model, len(prompt))

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if attempt > 1 {
			select {
			case <-time.After(g.delay):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		raw, err := g.client.Complete(ctx, req)
		if err != nil {
			lastErr = err
			logging.Get(logging.CategoryGateway).Warn("role=%s attempt %d/%d failed: %v", role, attempt, maxAttempts, err)
			continue
		}

		payload := CleanJSONResponse(raw)
		if !json.Valid([]byte(payload)) {
			logging.Get(logging.CategoryGateway).Error("role=%s reply is not valid JSON (len=%d)", role, len(raw))
			return nil, fmt.Errorf("%w: %s", ErrMalformedReply, truncate(payload, 200))
		}

		logging.Gateway("role=%s succeeded on attempt %d (reply_len=%d)", role, attempt, len(payload))
		return json.RawMessage(payload), nil
	}

	return nil, fmt.Errorf("%w after %d attempts: %v", ErrExhausted, maxAttempts, lastErr)
}

// CallInto calls the gateway and unmarshals the payload into out.
func (g *Gateway) CallInto(ctx context.Context, prompt string, role Role, out interface{}) error {
	raw, err := g.Call(ctx, prompt, role)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedReply, err)
	}
	return nil
}

// CleanJSONResponse removes markdown code fences from a model reply.
func CleanJSONResponse(resp string) string {
	resp = strings.TrimSpace(resp)
	resp = strings.TrimPrefix(resp, "```json")
	resp = strings.TrimPrefix(resp, "```")
	resp = strings.TrimSuffix(resp, "```")
	return strings.TrimSpace(resp)
}

func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max]) + "..."
}
