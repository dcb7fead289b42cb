package workers

import (
	"context"
	"strings"

	"concierge/internal/gateway"
	"concierge/internal/logging"
	"concierge/internal/prompt"
	"concierge/internal/transcript"
)

// Extractor turns a normalized transcript into an ordered sequence of
// uniquely identified Actions.
type Extractor struct {
	caller Caller
	store  prompt.Store
}

// NewExtractor creates an extractor over the gateway and template store.
func NewExtractor(caller Caller, store prompt.Store) *Extractor {
	return &Extractor{caller: caller, store: store}
}

// extractionReply is the structured output contract of the extraction
// role.
type extractionReply struct {
	Actions []struct {
		ActionType   string                 `json:"action_type"`
		Descriptions map[string]interface{} `json:"descriptions"`
	} `json:"actions"`
}

// Extract builds the extraction prompt, invokes the gateway, and
// assigns fresh IDs in emission order. An empty transcript yields an
// empty Action list without calling the model; a failed call or
// malformed reply yields an ExtractionError, which aborts the run.
func (e *Extractor) Extract(ctx context.Context, doc transcript.Normalized, historyActions string) ([]Action, error) {
	timer := logging.StartTimer(logging.CategoryExtraction, "Extract")
	defer timer.Stop()

	log := logging.Get(logging.CategoryExtraction)

	if strings.TrimSpace(doc.FullText) == "" {
		log.Info("empty transcript, no actions to extract")
		return nil, nil
	}

	tmpl, err := e.store.Lookup(prompt.TemplateExtraction)
	if err != nil {
		return nil, &ExtractionError{Reason: "extraction template unavailable", Err: err}
	}

	p := prompt.Render(tmpl, map[string]string{
		"full_text":       doc.FullText,
		"request_maker":   doc.RequestMaker,
		"participants":    strings.Join(doc.Participants, ", "),
		"history_actions": historyActions,
		"start_time":      doc.StartTime,
	})
	log.Debug("extraction prompt length %d", len(p))

	var reply extractionReply
	if err := e.caller.CallInto(ctx, p, gateway.RoleExtraction, &reply); err != nil {
		return nil, &ExtractionError{Reason: "gateway call failed", Err: err}
	}
	if reply.Actions == nil {
		return nil, &ExtractionError{Reason: "reply has no actions field"}
	}

	actions := make([]Action, 0, len(reply.Actions))
	for i, ra := range reply.Actions {
		descriptions := ra.Descriptions
		if descriptions == nil {
			descriptions = map[string]interface{}{}
		}
		actions = append(actions, Action{
			ID:           NewActionID(i),
			ActionType:   ra.ActionType,
			Descriptions: descriptions,
			RequestMaker: doc.RequestMaker,
			StartTime:    doc.StartTime,
		})
	}

	log.Info("extracted %d actions", len(actions))
	return actions, nil
}
