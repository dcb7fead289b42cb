package workers

import (
	"context"
	"errors"
	"strings"
	"testing"

	"concierge/internal/gateway"
	"concierge/internal/prompt"
	"concierge/internal/worker"
)

func unknownAction() ClassifiedAction {
	return ClassifiedAction{
		Action: testAction(0, "convert 50 euros to yen"),
		Classification: Classification{
			WorkerType: worker.Unknown,
			Confidence: 0.1,
			Reason:     "no capability handles currency conversion",
		},
	}
}

func TestSynthesizeRegistersWorker(t *testing.T) {
	caller := &stubCaller{reply: roleReplies(map[gateway.Role]string{
		gateway.RoleSynthesis: `{
			"worker_type": "currency_converter_worker",
			"prompt": [{"identity": "You convert amounts between currencies.", "json_method": ["amount", "from", "to", "converted"]}],
			"tips": ["use current rates", "round to two decimals"]
		}`,
	})}
	store := prompt.NewMemStore(prompt.Defaults())
	kinds := worker.NewRegistry(store)
	s := NewSynthesizer(caller, store, testCaps(), kinds)

	workerType, err := s.Synthesize(context.Background(), unknownAction())
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if workerType != "currency_converter_worker" {
		t.Fatalf("worker type = %q", workerType)
	}
	if !kinds.IsKnown(workerType) {
		t.Fatalf("synthesized kind not registered")
	}

	tmpl, err := store.LookupWorker(workerType)
	if err != nil {
		t.Fatalf("LookupWorker: %v", err)
	}
	for _, want := range []string{
		"You convert amounts between currencies.",
		"{descriptions}",
		"use current rates;\nround to two decimals",
		OutputAnchor,
		`"converted"`,
	} {
		if !strings.Contains(tmpl, want) {
			t.Errorf("persisted template missing %q", want)
		}
	}

	// The kind must resolve end to end, not just be listed.
	if _, resolved, err := kinds.Resolve(workerType); err != nil || resolved != tmpl {
		t.Errorf("Resolve returned (%v, err %v)", resolved, err)
	}

	// And the template must render cleanly once the action payload is
	// substituted in.
	rendered := prompt.Render(tmpl, map[string]string{"descriptions": `{"details":"x"}`})
	if err := prompt.CheckRendered(rendered); err != nil {
		t.Errorf("rendered template still has placeholders: %v", err)
	}
}

func TestSynthesizeRejectsMalformedReplies(t *testing.T) {
	tests := []struct {
		name  string
		reply string
	}{
		{"not json", `a currency worker would help here`},
		{"empty worker type", `{"worker_type":"","prompt":[{"identity":"x","json_method":["a"]}],"tips":[]}`},
		{"unknown sentinel", `{"worker_type":"unknown","prompt":[{"identity":"x","json_method":["a"]}],"tips":[]}`},
		{"no identity", `{"worker_type":"w","prompt":[],"tips":[]}`},
		{"no output fields", `{"worker_type":"w","prompt":[{"identity":"x","json_method":[]}],"tips":[]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			caller := &stubCaller{reply: roleReplies(map[gateway.Role]string{
				gateway.RoleSynthesis: tt.reply,
			})}
			store := prompt.NewMemStore(prompt.Defaults())
			kinds := worker.NewRegistry(store)
			s := NewSynthesizer(caller, store, testCaps(), kinds)

			_, err := s.Synthesize(context.Background(), unknownAction())
			var synthErr *SynthesisError
			if !errors.As(err, &synthErr) {
				t.Fatalf("got %v, want SynthesisError", err)
			}
			if kinds.IsKnown("w") {
				t.Errorf("malformed reply still registered a kind")
			}
		})
	}
}

func TestSynthesizePromptCarriesProblemAndCapabilities(t *testing.T) {
	caller := &stubCaller{reply: roleReplies(map[gateway.Role]string{
		gateway.RoleSynthesis: `{"worker_type":"fx_worker","prompt":[{"identity":"i","json_method":["f"]}],"tips":[]}`,
	})}
	store := prompt.NewMemStore(prompt.Defaults())
	s := NewSynthesizer(caller, store, testCaps(), worker.NewRegistry(store))

	if _, err := s.Synthesize(context.Background(), unknownAction()); err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	p := caller.calls[0].prompt
	for _, want := range []string{
		"convert 50 euros to yen",
		"no capability handles currency conversion",
		"reminder: sets reminders",
	} {
		if !strings.Contains(p, want) {
			t.Errorf("synthesis prompt missing %q", want)
		}
	}
}

func TestAssembleWorkerPrompt(t *testing.T) {
	got := AssembleWorkerPrompt("You summarize articles.", []string{"be brief"}, []string{"summary"})

	anchorAt := strings.Index(got, OutputAnchor)
	if anchorAt < 0 {
		t.Fatalf("assembled prompt has no output anchor:\n%s", got)
	}
	if tipAt := strings.Index(got, "be brief"); tipAt < 0 || tipAt > anchorAt {
		t.Errorf("tips not placed before the anchor")
	}
	if !strings.Contains(got[anchorAt:], `"summary":""`) {
		t.Errorf("field skeleton missing from anchored output:\n%s", got[anchorAt:])
	}
	if !strings.Contains(got, "Input data: {descriptions}") {
		t.Errorf("input placeholder missing")
	}
}

func TestAssembleWorkerPromptNoTips(t *testing.T) {
	got := AssembleWorkerPrompt("identity", nil, []string{"a"})
	if strings.Contains(got, "Guidelines") {
		t.Errorf("empty tips still produced a guidelines section")
	}
}
