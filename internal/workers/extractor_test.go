package workers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"concierge/internal/gateway"
	"concierge/internal/prompt"
	"concierge/internal/transcript"
)

// stubCaller records every gateway call and answers through a reply
// function, so tests script model behavior per role.
type stubCaller struct {
	mu    sync.Mutex
	calls []stubCall
	reply func(prompt string, role gateway.Role) (json.RawMessage, error)
}

type stubCall struct {
	prompt string
	role   gateway.Role
}

func (s *stubCaller) Call(_ context.Context, prompt string, role gateway.Role) (json.RawMessage, error) {
	s.mu.Lock()
	s.calls = append(s.calls, stubCall{prompt: prompt, role: role})
	s.mu.Unlock()
	return s.reply(prompt, role)
}

func (s *stubCaller) CallInto(ctx context.Context, prompt string, role gateway.Role, out interface{}) error {
	raw, err := s.Call(ctx, prompt, role)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("%w: %v", gateway.ErrMalformedReply, err)
	}
	return nil
}

func (s *stubCaller) callCount(role gateway.Role) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, c := range s.calls {
		if c.role == role {
			n++
		}
	}
	return n
}

func roleReplies(m map[gateway.Role]string) func(string, gateway.Role) (json.RawMessage, error) {
	return func(_ string, role gateway.Role) (json.RawMessage, error) {
		reply, ok := m[role]
		if !ok {
			return nil, fmt.Errorf("unexpected role %s", role)
		}
		return json.RawMessage(reply), nil
	}
}

func testDoc() transcript.Normalized {
	return transcript.Normalized{
		FullText:     "Alice: remind me to water the plants at 6pm",
		RequestMaker: "Alice",
		Participants: []string{"Alice", "Bob"},
		StartTime:    "2026-08-31T10:00:00Z",
	}
}

func TestExtractAssignsIDsInOrder(t *testing.T) {
	caller := &stubCaller{reply: roleReplies(map[gateway.Role]string{
		gateway.RoleExtraction: `{"actions":[
			{"action_type":"create_reminder","descriptions":{"details":"water the plants at 6pm"}},
			{"action_type":"send_message","descriptions":{"details":"tell Bob the meeting moved"}},
			{"action_type":"create_reminder","descriptions":{}}
		]}`,
	})}
	e := NewExtractor(caller, prompt.NewMemStore(prompt.Defaults()))

	actions, err := e.Extract(context.Background(), testDoc(), "")
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if len(actions) != 3 {
		t.Fatalf("got %d actions, want 3", len(actions))
	}

	seen := make(map[string]bool)
	for i, a := range actions {
		if !strings.HasSuffix(a.ID, fmt.Sprintf("_%d", i)) {
			t.Errorf("action %d ID %q does not carry its emission index", i, a.ID)
		}
		if seen[a.ID] {
			t.Errorf("duplicate action ID %q", a.ID)
		}
		seen[a.ID] = true
		if a.RequestMaker != "Alice" {
			t.Errorf("action %d request maker = %q, want Alice", i, a.RequestMaker)
		}
		if a.StartTime != "2026-08-31T10:00:00Z" {
			t.Errorf("action %d start time = %q", i, a.StartTime)
		}
		if a.Descriptions == nil {
			t.Errorf("action %d has nil descriptions", i)
		}
	}
	if actions[1].ActionType != "send_message" {
		t.Errorf("order not preserved: action 1 = %q", actions[1].ActionType)
	}
}

func TestExtractIDsDistinctAcrossRuns(t *testing.T) {
	caller := &stubCaller{reply: roleReplies(map[gateway.Role]string{
		gateway.RoleExtraction: `{"actions":[{"action_type":"create_reminder","descriptions":{"details":"same request"}}]}`,
	})}
	e := NewExtractor(caller, prompt.NewMemStore(prompt.Defaults()))

	first, err := e.Extract(context.Background(), testDoc(), "")
	if err != nil {
		t.Fatalf("first Extract: %v", err)
	}
	second, err := e.Extract(context.Background(), testDoc(), "")
	if err != nil {
		t.Fatalf("second Extract: %v", err)
	}
	if first[0].ID == second[0].ID {
		t.Errorf("identical transcript produced colliding IDs: %s", first[0].ID)
	}
}

func TestExtractEmptyTranscriptSkipsModel(t *testing.T) {
	caller := &stubCaller{reply: func(string, gateway.Role) (json.RawMessage, error) {
		return nil, errors.New("must not be called")
	}}
	e := NewExtractor(caller, prompt.NewMemStore(prompt.Defaults()))

	doc := testDoc()
	doc.FullText = "   \n\t"
	actions, err := e.Extract(context.Background(), doc, "")
	if err != nil {
		t.Fatalf("Extract on empty transcript: %v", err)
	}
	if len(actions) != 0 {
		t.Fatalf("got %d actions, want 0", len(actions))
	}
	if got := caller.callCount(gateway.RoleExtraction); got != 0 {
		t.Fatalf("model called %d times for an empty transcript", got)
	}
}

func TestExtractMalformedReply(t *testing.T) {
	tests := []struct {
		name  string
		reply string
	}{
		{"not json", `the user wants a reminder`},
		{"missing actions field", `{"items":[]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			caller := &stubCaller{reply: roleReplies(map[gateway.Role]string{
				gateway.RoleExtraction: tt.reply,
			})}
			e := NewExtractor(caller, prompt.NewMemStore(prompt.Defaults()))

			_, err := e.Extract(context.Background(), testDoc(), "")
			var extractionErr *ExtractionError
			if !errors.As(err, &extractionErr) {
				t.Fatalf("got %v, want ExtractionError", err)
			}
		})
	}
}

func TestExtractFeedsHistoryIntoPrompt(t *testing.T) {
	caller := &stubCaller{reply: roleReplies(map[gateway.Role]string{
		gateway.RoleExtraction: `{"actions":[]}`,
	})}
	e := NewExtractor(caller, prompt.NewMemStore(prompt.Defaults()))

	historyText := "- create_reminder: water the plants (2026-08-30)"
	if _, err := e.Extract(context.Background(), testDoc(), historyText); err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if len(caller.calls) != 1 {
		t.Fatalf("got %d calls, want 1", len(caller.calls))
	}
	if !strings.Contains(caller.calls[0].prompt, historyText) {
		t.Errorf("extraction prompt does not carry the history block")
	}
	if !strings.Contains(caller.calls[0].prompt, "water the plants at 6pm") {
		t.Errorf("extraction prompt does not carry the transcript text")
	}
}
