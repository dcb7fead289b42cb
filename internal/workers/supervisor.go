package workers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"concierge/internal/artifact"
	"concierge/internal/capability"
	"concierge/internal/history"
	"concierge/internal/logging"
	"concierge/internal/transcript"
	"concierge/internal/worker"
)

// RunResult correlates everything a pipeline run produced, keyed by
// Action ID where the stage is per-Action.
type RunResult struct {
	RunID      string                      `json:"run_id"`
	StartedAt  time.Time                   `json:"started_at"`
	Actions    []Action                    `json:"actions"`
	Classified []ClassifiedAction          `json:"classified"`
	Results    map[string]*ExecutionResult `json:"results"`
	Skipped    map[string]string           `json:"skipped"`
}

// SupervisorOptions carry the run-level wiring that is not part of the
// pipeline stages themselves.
type SupervisorOptions struct {
	// ArtifactsRoot, when set, enables per-run JSON dumps of each
	// stage's output under <ArtifactsRoot>/<run_id>/.
	ArtifactsRoot string

	// History, when set, feeds previously accepted actions into
	// extraction and records newly accepted ones.
	History      *history.Store
	HistoryLimit int

	// Out receives operator-facing progress and warnings. Defaults to
	// io.Discard.
	Out io.Writer
}

// Supervisor sequences a full run: extraction, classification,
// approval, synthesis for unknown intents, then routed execution
// of every surviving Action. Execution is strictly sequential since
// each Action's review loop blocks on the operator.
type Supervisor struct {
	extractor   *Extractor
	classifier  *Classifier
	synthesizer *Synthesizer
	router      *Router
	gate        ApprovalGate
	caps        capability.Registry
	kinds       *worker.Registry
	opts        SupervisorOptions
}

func NewSupervisor(extractor *Extractor, classifier *Classifier, synthesizer *Synthesizer, router *Router, gate ApprovalGate, caps capability.Registry, kinds *worker.Registry, opts SupervisorOptions) *Supervisor {
	if opts.Out == nil {
		opts.Out = io.Discard
	}
	if opts.HistoryLimit <= 0 {
		opts.HistoryLimit = 20
	}
	return &Supervisor{
		extractor:   extractor,
		classifier:  classifier,
		synthesizer: synthesizer,
		router:      router,
		gate:        gate,
		caps:        caps,
		kinds:       kinds,
		opts:        opts,
	}
}

// Run drives one document through the whole pipeline. A per-Action
// failure (missing template, failed synthesis, exhausted gateway)
// skips that Action with a warning and the run continues; only
// extraction failure or context cancellation aborts the run.
func (s *Supervisor) Run(ctx context.Context, doc transcript.Normalized) (*RunResult, error) {
	log := logging.Get(logging.CategorySupervisor)
	result := &RunResult{
		RunID:     NewRunID(),
		StartedAt: time.Now(),
		Results:   make(map[string]*ExecutionResult),
		Skipped:   make(map[string]string),
	}
	logging.Supervisor("run %s started", result.RunID)

	var artifacts *artifact.Store
	if s.opts.ArtifactsRoot != "" {
		var err error
		artifacts, err = artifact.NewStore(s.opts.ArtifactsRoot, result.RunID)
		if err != nil {
			return nil, fmt.Errorf("preparing artifact dir: %w", err)
		}
		s.save(artifacts, "extractor_input", doc)
		if doc.Source == "text_input" {
			// Typed input is kept verbatim, before normalization or
			// extraction touch it.
			if err := artifacts.SaveText("text_input", doc.FullText); err != nil {
				logging.Supervisor("artifact text_input not saved: %v", err)
			}
		}
	}

	historyActions := s.recentHistory(ctx)

	actions, err := s.extractor.Extract(ctx, doc, historyActions)
	if err != nil {
		return nil, err
	}
	if len(actions) == 0 {
		logging.Supervisor("run %s: no actions extracted", result.RunID)
		fmt.Fprintln(s.opts.Out, "No actionable requests found.")
		return result, nil
	}
	s.save(artifacts, "actions", actions)
	log.Info("run %s: %d action(s) extracted", result.RunID, len(actions))

	classifications := s.classifier.ClassifyAll(ctx, actions)
	classified := make([]ClassifiedAction, len(actions))
	for i, a := range actions {
		classified[i] = ClassifiedAction{Action: a, Classification: classifications[i]}
	}
	s.save(artifacts, "classifications", classified)

	// The operator decides per classified Action, seeing the proposed
	// worker type, confidence and reason alongside the details.
	approved, err := s.gate.Approve(classified)
	if err != nil {
		return nil, fmt.Errorf("approval gate: %w", err)
	}
	if len(approved) < len(classified) {
		log.Info("run %s: %d of %d action(s) approved", result.RunID, len(approved), len(classified))
	}
	result.Actions = make([]Action, len(approved))
	for i, ca := range approved {
		result.Actions[i] = ca.Action
	}
	if len(approved) == 0 {
		return result, nil
	}

	classified = s.resolveUnknown(ctx, approved, result)
	result.Classified = classified

	for _, ca := range classified {
		if _, skipped := result.Skipped[ca.Action.ID]; skipped {
			continue
		}
		if ctx.Err() != nil {
			return result, ctx.Err()
		}
		exec, err := s.router.Execute(ctx, ca.Action, ca.Classification.WorkerType)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return result, err
			}
			s.skip(result, ca.Action.ID, err.Error())
			continue
		}
		result.Results[ca.Action.ID] = exec
		s.recordHistory(ctx, result.RunID, ca, exec)
	}

	s.save(artifacts, "results", result)
	logging.Supervisor("run %s finished: %d executed, %d skipped", result.RunID, len(result.Results), len(result.Skipped))
	return result, nil
}

// resolveUnknown synthesizes a worker for each Action classified as
// unknown. After every successful synthesis the remaining unknown
// Actions are re-classified against the extended capability set, so a
// batch of same-intent Actions yields one new worker, not one each.
func (s *Supervisor) resolveUnknown(ctx context.Context, classified []ClassifiedAction, result *RunResult) []ClassifiedAction {
	log := logging.Get(logging.CategorySupervisor)

	caps, err := s.caps.Load()
	if err != nil {
		caps = map[string]string{}
	}
	extended := make(map[string]string, len(caps))
	for k, v := range caps {
		extended[k] = v
	}
	synthesized := 0

	for i := range classified {
		if classified[i].Classification.WorkerType != worker.Unknown {
			continue
		}
		if ctx.Err() != nil {
			return classified
		}

		// A worker synthesized earlier in this batch may already cover
		// this intent.
		if synthesized > 0 {
			rec := s.classifier.ClassifyWith(ctx, classified[i].Action, extended)
			if rec.WorkerType != worker.Unknown {
				log.Info("action %s reclassified as %s after synthesis", classified[i].Action.ID, rec.WorkerType)
				classified[i].Classification = rec
				continue
			}
		}

		workerType, err := s.synthesizer.Synthesize(ctx, classified[i])
		if err != nil {
			s.skip(result, classified[i].Action.ID, fmt.Sprintf("synthesis failed: %v", err))
			continue
		}
		classified[i].Classification = Classification{
			WorkerType: workerType,
			Confidence: 1.0,
			Reason:     "worker synthesized for this request",
		}
		if kind, _, err := s.kinds.Resolve(workerType); err == nil {
			extended[workerType] = kind.Description
		} else {
			extended[workerType] = "synthesized worker"
		}
		synthesized++
		fmt.Fprintf(s.opts.Out, "Synthesized new worker %q for %s.\n", workerType, classified[i].Action.ID)
	}
	return classified
}

func (s *Supervisor) skip(result *RunResult, actionID, reason string) {
	result.Skipped[actionID] = reason
	logging.Supervisor("action %s skipped: %s", actionID, reason)
	fmt.Fprintf(s.opts.Out, "Skipping %s: %s\n", actionID, reason)
}

func (s *Supervisor) recentHistory(ctx context.Context) string {
	if s.opts.History == nil {
		return ""
	}
	entries, err := s.opts.History.Recent(ctx, s.opts.HistoryLimit)
	if err != nil {
		logging.Supervisor("history lookup failed: %v", err)
		return ""
	}
	return history.FormatForPrompt(entries)
}

func (s *Supervisor) recordHistory(ctx context.Context, runID string, ca ClassifiedAction, exec *ExecutionResult) {
	if s.opts.History == nil {
		return
	}
	err := s.opts.History.Record(ctx, history.Entry{
		RunID:      runID,
		ActionID:   ca.Action.ID,
		ActionType: ca.Action.ActionType,
		WorkerType: exec.WorkerType,
		Details:    ca.Action.Details(),
		AcceptedAt: exec.AcceptedAt,
	})
	if err != nil {
		logging.Supervisor("history record failed for %s: %v", ca.Action.ID, err)
	}
}

func (s *Supervisor) save(artifacts *artifact.Store, name string, v interface{}) {
	if artifacts == nil {
		return
	}
	if err := artifacts.SaveJSON(name, v); err != nil {
		logging.Supervisor("artifact %s not saved: %v", name, err)
	}
}
