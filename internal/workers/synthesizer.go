package workers

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"concierge/internal/capability"
	"concierge/internal/gateway"
	"concierge/internal/logging"
	"concierge/internal/prompt"
	"concierge/internal/worker"
)

// Synthesizer invents a new worker for an Action no existing capability
// matches. It persists the assembled template and registers the worker
// kind before routing proceeds, so the new type is indistinguishable
// from a built-in one by the time the router sees it.
type Synthesizer struct {
	caller Caller
	store  prompt.Store
	caps   capability.Registry
	kinds  *worker.Registry
}

// NewSynthesizer creates a synthesizer.
func NewSynthesizer(caller Caller, store prompt.Store, caps capability.Registry, kinds *worker.Registry) *Synthesizer {
	return &Synthesizer{caller: caller, store: store, caps: caps, kinds: kinds}
}

// synthesisReply is the structured output contract of the synthesis
// role: the model names the worker, defines its identity, enumerates
// its output fields and lists operational tips.
type synthesisReply struct {
	WorkerType string `json:"worker_type"`
	Prompt     []struct {
		Identity   string   `json:"identity"`
		JSONMethod []string `json:"json_method"`
	} `json:"prompt"`
	Tips []string `json:"tips"`
}

// problemDescription is what the meta-prompt tells the model about the
// unmatched Action.
type problemDescription struct {
	ID           string `json:"id"`
	StartTime    string `json:"start_time"`
	RequestMaker string `json:"request_maker"`
	Reason       string `json:"reason"`
	Details      string `json:"details"`
}

// Synthesize designs, persists and registers a worker for one unknown
// Action. Returns the new worker type name. A malformed synthesis reply
// is a SynthesisError, fatal for this Action only.
func (s *Synthesizer) Synthesize(ctx context.Context, ca ClassifiedAction) (string, error) {
	timer := logging.StartTimer(logging.CategorySynthesis, "Synthesize")
	defer timer.Stop()

	log := logging.Get(logging.CategorySynthesis)

	caps, err := s.caps.Load()
	if err != nil {
		return "", &SynthesisError{ActionID: ca.Action.ID, Err: err}
	}

	tmpl, err := s.store.Lookup(prompt.TemplateSynthesis)
	if err != nil {
		return "", &SynthesisError{ActionID: ca.Action.ID, Err: err}
	}

	problem := problemDescription{
		ID:           ca.Action.ID,
		StartTime:    ca.Action.StartTime,
		RequestMaker: ca.Action.RequestMaker,
		Reason:       ca.Classification.Reason,
		Details:      ca.Action.Details(),
	}
	problemJSON, err := json.Marshal(problem)
	if err != nil {
		return "", &SynthesisError{ActionID: ca.Action.ID, Err: err}
	}

	p := prompt.Render(tmpl, map[string]string{
		"full_description":    string(problemJSON),
		"worker_capabilities": capability.Describe(caps),
	})

	var reply synthesisReply
	if err := s.caller.CallInto(ctx, p, gateway.RoleSynthesis, &reply); err != nil {
		return "", &SynthesisError{ActionID: ca.Action.ID, Err: err}
	}
	if err := validateReply(reply); err != nil {
		return "", &SynthesisError{ActionID: ca.Action.ID, Err: err}
	}

	workerPrompt := AssembleWorkerPrompt(reply.Prompt[0].Identity, reply.Tips, reply.Prompt[0].JSONMethod)

	// Persist before registration so a registered kind always resolves.
	if err := s.store.SaveWorker(reply.WorkerType, workerPrompt); err != nil {
		return "", &SynthesisError{ActionID: ca.Action.ID, Err: err}
	}
	if _, err := s.kinds.Register(reply.WorkerType, reply.Prompt[0].Identity); err != nil {
		return "", &SynthesisError{ActionID: ca.Action.ID, Err: err}
	}

	log.Info("synthesized worker %s for action %s (%d output fields)",
		reply.WorkerType, ca.Action.ID, len(reply.Prompt[0].JSONMethod))
	return reply.WorkerType, nil
}

func validateReply(r synthesisReply) error {
	if r.WorkerType == "" || r.WorkerType == worker.Unknown {
		return fmt.Errorf("synthesis reply has no usable worker_type")
	}
	if len(r.Prompt) == 0 || r.Prompt[0].Identity == "" {
		return fmt.Errorf("synthesis reply has no identity")
	}
	if len(r.Prompt[0].JSONMethod) == 0 {
		return fmt.Errorf("synthesis reply enumerates no output fields")
	}
	return nil
}

// AssembleWorkerPrompt concatenates the worker template: identity line,
// the {descriptions} input placeholder, the tips, and the strict
// structural-output instruction whose field set comes from the model's
// own answer.
func AssembleWorkerPrompt(identity string, tips, fields []string) string {
	skeleton := make(map[string]string, len(fields))
	for _, f := range fields {
		skeleton[f] = ""
	}
	// Marshal cannot fail on map[string]string.
	fieldJSON, _ := json.Marshal(skeleton)

	var b strings.Builder
	fmt.Fprintf(&b, "Role: %s\n", identity)
	b.WriteString("Input data: {descriptions}\n")
	if len(tips) > 0 {
		b.WriteString("Guidelines:\n")
		b.WriteString(strings.Join(tips, ";\n"))
		b.WriteString("\n")
	}
	b.WriteString(OutputAnchor)
	b.WriteString("\n")
	b.Write(fieldJSON)
	return b.String()
}
