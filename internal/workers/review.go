package workers

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

// ApprovalGate decides which classified Actions proceed to synthesis
// and execution. It runs after classification so the decision is made
// against the proposed worker type, not the bare Action.
type ApprovalGate interface {
	Approve(actions []ClassifiedAction) ([]ClassifiedAction, error)
}

// AutoGate approves every Action unchanged. Used for non-interactive
// runs.
type AutoGate struct{}

func (AutoGate) Approve(actions []ClassifiedAction) ([]ClassifiedAction, error) {
	return actions, nil
}

// ConsoleGate presents each classified Action on the console, with the
// classifier's verdict, and keeps the ones the operator confirms.
type ConsoleGate struct {
	In  io.Reader
	Out io.Writer
}

func (g *ConsoleGate) Approve(actions []ClassifiedAction) ([]ClassifiedAction, error) {
	reader := bufio.NewReader(g.In)
	kept := make([]ClassifiedAction, 0, len(actions))

	for i, ca := range actions {
		a := ca.Action
		fmt.Fprintf(g.Out, "\n[%d/%d] %s (%s)\n%s\n", i+1, len(actions), a.ActionType, a.ID, a.Details())
		fmt.Fprintf(g.Out, "-> %s (confidence %.2f): %s\n",
			ca.Classification.WorkerType, ca.Classification.Confidence, ca.Classification.Reason)
		fmt.Fprint(g.Out, "Proceed with this action? [Y/n] ")

		line, err := reader.ReadString('\n')
		if err != nil && err != io.EOF {
			return nil, fmt.Errorf("reading approval: %w", err)
		}
		if accepts(line) {
			kept = append(kept, ca)
		} else {
			fmt.Fprintf(g.Out, "Dropped %s.\n", a.ID)
		}
		if err == io.EOF {
			// No more input; remaining actions keep the default.
			kept = append(kept, actions[i+1:]...)
			break
		}
	}
	return kept, nil
}

// ScriptedGate keeps the Actions whose indexes appear in Keep. Nil Keep
// approves everything.
type ScriptedGate struct {
	Keep []int
}

func (g *ScriptedGate) Approve(actions []ClassifiedAction) ([]ClassifiedAction, error) {
	if g.Keep == nil {
		return actions, nil
	}
	want := make(map[int]bool, len(g.Keep))
	for _, i := range g.Keep {
		want[i] = true
	}
	kept := make([]ClassifiedAction, 0, len(actions))
	for i, ca := range actions {
		if want[i] {
			kept = append(kept, ca)
		}
	}
	return kept, nil
}

// ConsoleDecider collects review decisions from an interactive
// terminal. An empty line or an affirmative accepts; anything else is
// taken verbatim as the correction note.
type ConsoleDecider struct {
	In  io.Reader
	Out io.Writer

	reader *bufio.Reader
}

func NewConsoleDecider(in io.Reader, out io.Writer) *ConsoleDecider {
	return &ConsoleDecider{In: in, Out: out, reader: bufio.NewReader(in)}
}

func (d *ConsoleDecider) Review(action Action, response json.RawMessage, round int) (Decision, error) {
	fmt.Fprintf(d.Out, "\n--- %s (round %d) ---\n%s\n", action.ActionType, round, formatResponse(response))
	fmt.Fprint(d.Out, "Accept? [Y or enter a correction] ")

	line, err := d.reader.ReadString('\n')
	if err != nil && err != io.EOF {
		return Decision{}, fmt.Errorf("reading review input: %w", err)
	}
	if accepts(line) {
		return Decision{Accept: true}, nil
	}
	return Decision{Note: strings.TrimSpace(line)}, nil
}

// ScriptedDecider replays a fixed decision sequence. Once the script is
// exhausted it accepts, so a short script cannot hang the loop.
type ScriptedDecider struct {
	Decisions []Decision
	next      int
}

func (d *ScriptedDecider) Review(Action, json.RawMessage, int) (Decision, error) {
	if d.next >= len(d.Decisions) {
		return Decision{Accept: true}, nil
	}
	dec := d.Decisions[d.next]
	d.next++
	return dec, nil
}

func accepts(line string) bool {
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "", "y", "yes":
		return true
	}
	return false
}

func formatResponse(raw json.RawMessage) string {
	var buf bytes.Buffer
	if err := json.Indent(&buf, raw, "", "  "); err != nil {
		return string(raw)
	}
	return buf.String()
}
