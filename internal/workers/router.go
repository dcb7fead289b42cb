package workers

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"concierge/internal/gateway"
	"concierge/internal/logging"
	"concierge/internal/prompt"
	"concierge/internal/worker"
)

// State is the per-Action execution state.
type State string

const (
	StatePending          State = "PENDING"
	StateTemplateResolved State = "TEMPLATE_RESOLVED"
	StateExecuting        State = "EXECUTING"
	StateAwaitingReview   State = "AWAITING_REVIEW"
	StateRevising         State = "REVISING"
	StateAccepted         State = "ACCEPTED"
)

// Decision is one operator review outcome: acceptance, or a revision
// with a correction note.
type Decision struct {
	Accept bool
	Note   string
}

// ReviewDecider supplies review decisions. The console implementation
// blocks on operator input; tests feed scripted decisions so the state
// machine runs headlessly.
type ReviewDecider interface {
	Review(action Action, response json.RawMessage, round int) (Decision, error)
}

// Router resolves each Action's worker template and drives execution
// through the correction loop until the operator accepts. Actions
// execute strictly in sequence because the loop blocks on interactive
// input.
type Router struct {
	caller  Caller
	kinds   *worker.Registry
	decider ReviewDecider
}

// NewRouter creates a router over the gateway, kind registry and review
// decider.
func NewRouter(caller Caller, kinds *worker.Registry, decider ReviewDecider) *Router {
	return &Router{caller: caller, kinds: kinds, decider: decider}
}

// Execute runs one Action to acceptance.
//
// State machine: PENDING -> TEMPLATE_RESOLVED -> EXECUTING ->
// AWAITING_REVIEW -> (ACCEPTED | REVISING -> EXECUTING). Template
// resolution failure and gateway exhaustion are per-Action fatal; the
// caller skips the Action and continues the run. The review loop has
// no iteration cap: it terminates only on operator acceptance.
func (r *Router) Execute(ctx context.Context, action Action, workerType string) (*ExecutionResult, error) {
	log := logging.Get(logging.CategoryRouting)

	state := StatePending
	log.Debug("action %s: %s", action.ID, state)

	_, tmpl, err := r.kinds.Resolve(workerType)
	if err != nil {
		return nil, err
	}
	state = StateTemplateResolved
	log.Debug("action %s: %s (worker %s)", action.ID, state, workerType)

	p := prompt.Render(tmpl, map[string]string{
		"descriptions": action.DescriptionsJSON(),
	})

	rounds := 0
	for {
		state = StateExecuting
		rounds++
		log.Debug("action %s: %s round %d", action.ID, state, rounds)

		response, err := r.caller.Call(ctx, p, gateway.RoleWorker)
		if err != nil {
			return nil, fmt.Errorf("worker execution for action %s: %w", action.ID, err)
		}

		state = StateAwaitingReview
		log.Debug("action %s: %s", action.ID, state)

		decision, err := r.decider.Review(action, response, rounds)
		if err != nil {
			return nil, fmt.Errorf("review for action %s: %w", action.ID, err)
		}

		if decision.Accept {
			state = StateAccepted
			logging.Routing("action %s: %s after %d round(s)", action.ID, state, rounds)
			return &ExecutionResult{
				ActionID:   action.ID,
				WorkerType: workerType,
				Response:   response,
				Rounds:     rounds,
				AcceptedAt: time.Now(),
			}, nil
		}

		state = StateRevising
		log.Debug("action %s: %s (note %q)", action.ID, state, decision.Note)
		p = SpliceCorrection(p, string(response), decision.Note)
	}
}

// SpliceCorrection inserts a correction block (prior response plus the
// operator's note) immediately before the structural-output anchor. If
// the anchor is absent the block is appended instead.
func SpliceCorrection(promptText, priorResponse, note string) string {
	block := fmt.Sprintf("Previous response:\n%s\nOperator correction:\n%s\n", priorResponse, note)

	if idx := strings.Index(promptText, OutputAnchor); idx >= 0 {
		return promptText[:idx] + block + promptText[idx:]
	}
	return promptText + "\n" + block
}
