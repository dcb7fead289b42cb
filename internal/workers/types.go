// Package workers implements the intent-routing pipeline: extraction of
// discrete actions from a transcript, concurrent classification against
// the capability registry, on-demand synthesis of new worker templates
// for unmatched intents, and per-action execution with an interactive
// correction loop. The Supervisor sequences the stages and owns the
// ID-keyed correlation between them.
package workers

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"concierge/internal/gateway"

	"github.com/google/uuid"
)

// Caller is the slice of the gateway the pipeline stages use. The
// concrete *gateway.Gateway satisfies it; tests inject stubs.
type Caller interface {
	Call(ctx context.Context, prompt string, role gateway.Role) (json.RawMessage, error)
	CallInto(ctx context.Context, prompt string, role gateway.Role, out interface{}) error
}

// Action is one discrete request extracted from source text. Created
// once by the extractor and immutable thereafter; its ID is the sole
// join key across classification and execution.
type Action struct {
	ID           string                 `json:"id"`
	ActionType   string                 `json:"action_type"`
	Descriptions map[string]interface{} `json:"descriptions"`
	RequestMaker string                 `json:"request_maker"`
	StartTime    string                 `json:"start_time"`
}

// DescriptionsJSON renders the descriptions map for prompt embedding.
func (a Action) DescriptionsJSON() string {
	data, err := json.Marshal(a.Descriptions)
	if err != nil {
		return "{}"
	}
	return string(data)
}

// Details returns the free-text details field, if present.
func (a Action) Details() string {
	if a.Descriptions == nil {
		return ""
	}
	if d, ok := a.Descriptions["details"].(string); ok {
		return d
	}
	return ""
}

// Classification is the result of matching an Action to a capability.
// Confidence semantics belong to the remote model; no local
// normalization is applied.
type Classification struct {
	WorkerType string  `json:"worker_type"`
	Confidence float64 `json:"confidence"`
	Reason     string  `json:"reason"`
}

// ClassifiedAction pairs an Action with its Classification. The pairing
// is positional (extraction order), never by response arrival order.
type ClassifiedAction struct {
	Action         Action         `json:"action"`
	Classification Classification `json:"classification"`
}

// ExecutionResult is the terminal artifact for one Action: the
// structured reply the operator accepted. Never revised afterwards.
type ExecutionResult struct {
	ActionID   string          `json:"id"`
	WorkerType string          `json:"worker_type"`
	Response   json.RawMessage `json:"response"`
	Rounds     int             `json:"rounds"`
	AcceptedAt time.Time       `json:"accepted_at"`
}

// OutputAnchor is the structural-output instruction that terminates
// every worker template. The correction loop splices revision blocks
// immediately before it.
const OutputAnchor = "Respond strictly in the following JSON format:"

// NewActionID generates a process-unique action ID: timestamp for
// humans, random suffix for collision resistance across concurrent
// runs, sequence index for ordering within a run.
func NewActionID(seq int) string {
	return fmt.Sprintf("act_%s_%s_%d",
		time.Now().UTC().Format("20060102T150405"),
		uuid.NewString()[:8],
		seq)
}

// NewRunID generates a unique pipeline-run identifier.
func NewRunID() string {
	return fmt.Sprintf("run_%s_%s",
		time.Now().UTC().Format("20060102T150405"),
		uuid.NewString()[:8])
}

// ExtractionError aborts the whole run: the pipeline must not proceed
// to classification with malformed extraction output.
type ExtractionError struct {
	Reason string
	Err    error
}

func (e *ExtractionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("extraction failed: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("extraction failed: %s", e.Reason)
}

func (e *ExtractionError) Unwrap() error { return e.Err }

// SynthesisError is fatal for one unknown Action only; the run
// continues with the remaining Actions.
type SynthesisError struct {
	ActionID string
	Err      error
}

func (e *SynthesisError) Error() string {
	return fmt.Sprintf("worker synthesis failed for action %s: %v", e.ActionID, e.Err)
}

func (e *SynthesisError) Unwrap() error { return e.Err }
