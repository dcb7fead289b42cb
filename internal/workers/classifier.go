package workers

import (
	"context"
	"fmt"

	"concierge/internal/capability"
	"concierge/internal/gateway"
	"concierge/internal/logging"
	"concierge/internal/prompt"
	"concierge/internal/worker"

	"golang.org/x/sync/errgroup"
)

// Classifier matches Actions to worker capabilities. Classification
// never fails past this boundary: every failure path degrades to the
// unknown sentinel with zero confidence so one bad classification
// cannot block the batch.
type Classifier struct {
	caller Caller
	store  prompt.Store
	caps   capability.Registry
}

// NewClassifier creates a classifier over the gateway, template store
// and capability registry.
func NewClassifier(caller Caller, store prompt.Store, caps capability.Registry) *Classifier {
	return &Classifier{caller: caller, store: store, caps: caps}
}

// Classify classifies one Action against the current capability
// registry.
func (c *Classifier) Classify(ctx context.Context, action Action) Classification {
	caps, err := c.caps.Load()
	if err != nil {
		return degraded(fmt.Sprintf("capability registry unavailable: %v", err))
	}
	return c.ClassifyWith(ctx, action, caps)
}

// ClassifyWith classifies against an explicit capability set. The
// supervisor uses this to re-check unresolved Actions after a new
// worker type has been synthesized mid-run.
func (c *Classifier) ClassifyWith(ctx context.Context, action Action, caps map[string]string) Classification {
	log := logging.Get(logging.CategoryClassification)

	tmpl, err := c.store.Lookup(prompt.TemplateClassification)
	if err != nil {
		return degraded(fmt.Sprintf("classification template unavailable: %v", err))
	}

	p := prompt.Render(tmpl, map[string]string{
		"worker_capabilities": capability.Describe(caps),
		"action":              action.DescriptionsJSON(),
	})

	var cls Classification
	if err := c.caller.CallInto(ctx, p, gateway.RoleClassification, &cls); err != nil {
		log.Warn("action %s degraded to unknown: %v", action.ID, err)
		return degraded(fmt.Sprintf("classification failed: %v", err))
	}
	if cls.WorkerType == "" {
		cls.WorkerType = worker.Unknown
	}

	log.Info("action %s -> %s (confidence %.2f)", action.ID, cls.WorkerType, cls.Confidence)
	return cls
}

// ClassifyAll fans out one classification call per Action and waits for
// all of them. Results are positionally aligned with the input: slot i
// always holds Action i's Classification regardless of completion
// order.
func (c *Classifier) ClassifyAll(ctx context.Context, actions []Action) []Classification {
	timer := logging.StartTimer(logging.CategoryClassification, "ClassifyAll")
	defer timer.Stop()

	if len(actions) == 0 {
		return nil
	}

	// Load the registry once for the batch.
	caps, err := c.caps.Load()
	if err != nil {
		results := make([]Classification, len(actions))
		reason := fmt.Sprintf("capability registry unavailable: %v", err)
		for i := range results {
			results[i] = degraded(reason)
		}
		return results
	}

	results := make([]Classification, len(actions))
	g, gctx := errgroup.WithContext(ctx)
	for i, action := range actions {
		i, action := i, action
		g.Go(func() error {
			results[i] = c.ClassifyWith(gctx, action, caps)
			return nil
		})
	}
	// Tasks never return errors; degradation happens per slot.
	_ = g.Wait()

	return results
}

func degraded(reason string) Classification {
	return Classification{
		WorkerType: worker.Unknown,
		Confidence: 0.0,
		Reason:     reason,
	}
}
