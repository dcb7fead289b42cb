package prompt

// Built-in template names.
const (
	TemplateExtraction     = "action_extraction"
	TemplateClassification = "classification_prompt"
	TemplateSynthesis      = "prompt_creator"
)

// Defaults returns the built-in template texts, keyed by name. The
// init command writes them to the template directory; tests preload
// them into a MemStore.
func Defaults() map[string]string {
	return map[string]string{
		TemplateExtraction: `You are an action extraction assistant. Read the conversation below
and extract every discrete actionable request as a separate action.
Ignore chatter that requests nothing.

Conversation:
{full_text}

Requested by: {request_maker}
Participants: {participants}
Conversation start time: {start_time}

Previously accepted actions (may be empty):
{history_actions}

Respond strictly in the following JSON format:
{"actions": [{"action_type": "", "descriptions": {"details": ""}}]}`,

		TemplateClassification: `You are an intent classifier. Match the action below against the
worker capabilities and choose the single best worker type. If no
capability fits, answer "unknown".

Worker capabilities:
{worker_capabilities}

Action:
{action}

Respond strictly in the following JSON format:
{"worker_type": "", "confidence": 0.0, "reason": ""}`,

		TemplateSynthesis: `You are a worker designer. The request below matched no existing
worker capability. Design a brand-new worker for it.

Problem:
{full_description}

Existing worker capabilities:
{worker_capabilities}

Name a new worker type (snake_case, ending in "_worker"), define its
identity in one sentence, enumerate the JSON output fields it must
produce, and list operational tips.

Respond strictly in the following JSON format:
{"worker_type": "", "prompt": [{"identity": "", "json_method": [""]}], "tips": [""]}`,
	}
}
