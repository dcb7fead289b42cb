package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"concierge/internal/capability"
	"concierge/internal/gateway"
	"concierge/internal/history"
	"concierge/internal/logging"
	"concierge/internal/prompt"
	"concierge/internal/transcript"
	"concierge/internal/worker"
	"concierge/internal/workers"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// runCmd processes a recorded transcript file
var runCmd = &cobra.Command{
	Use:   "run [transcript.json]",
	Short: "Process a transcript file through the pipeline",
	Long: `Loads a transcription result file, extracts every actionable request,
and routes each one to a worker. Without an argument the configured
transcript path is used.

Each extracted action is shown for approval, and each worker result is
shown for review: accept it, or type a correction and the worker runs
again with your note folded into its prompt.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := inWorkspace(cfg.Paths.Transcript)
		if len(args) == 1 {
			path = args[0]
		}
		doc, err := transcript.LoadFile(path)
		if err != nil {
			return err
		}
		return runPipeline(cmd.Context(), doc)
	},
}

// textCmd processes a request typed straight on the command line
var textCmd = &cobra.Command{
	Use:   "text [message...]",
	Short: "Process a plain-text request",
	Long: `Treats the arguments (or stdin, when no arguments are given) as a
single-speaker transcript and runs it through the same pipeline as a
recorded conversation.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		text := strings.Join(args, " ")
		if strings.TrimSpace(text) == "" {
			data, err := io.ReadAll(cmd.InOrStdin())
			if err != nil {
				return fmt.Errorf("reading stdin: %w", err)
			}
			text = string(data)
		}
		doc := transcript.FromText(text, time.Now().Format(time.RFC3339))
		return runPipeline(cmd.Context(), doc)
	},
}

// runPipeline wires the stages from config and drives one run.
func runPipeline(parent context.Context, doc transcript.Normalized) error {
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	client, err := gateway.NewClientFromConfig(ctx, cfg.LLM)
	if err != nil {
		return err
	}
	gw := gateway.New(client, cfg.LLM)

	store := prompt.NewDirStore(inWorkspace(cfg.Paths.Templates))
	caps := capability.NewFileRegistry(inWorkspace(cfg.Paths.Capabilities))
	kinds := worker.NewRegistry(store)
	if loaded, err := caps.Load(); err == nil {
		if err := kinds.SeedBuiltins(loaded); err != nil {
			return err
		}
	} else {
		logger.Warn("capability registry unavailable", zap.Error(err))
	}

	var gate workers.ApprovalGate = &workers.ConsoleGate{In: os.Stdin, Out: os.Stdout}
	var decider workers.ReviewDecider = workers.NewConsoleDecider(os.Stdin, os.Stdout)
	if assumeYes {
		gate = workers.AutoGate{}
		decider = &workers.ScriptedDecider{}
	}

	opts := workers.SupervisorOptions{
		ArtifactsRoot: inWorkspace(cfg.Paths.Artifacts),
		Out:           os.Stdout,
	}
	if cfg.History.Enabled {
		hist, err := history.Open(inWorkspace(cfg.History.DBPath))
		if err != nil {
			return fmt.Errorf("opening history store: %w", err)
		}
		defer hist.Close()
		opts.History = hist
		opts.HistoryLimit = cfg.History.Limit
	}

	sup := workers.NewSupervisor(
		workers.NewExtractor(gw, store),
		workers.NewClassifier(gw, store, caps),
		workers.NewSynthesizer(gw, store, caps, kinds),
		workers.NewRouter(gw, kinds, decider),
		gate,
		caps,
		kinds,
		opts,
	)

	result, err := sup.Run(ctx, doc)
	if err != nil {
		return err
	}

	fmt.Printf("\nRun %s: %d action(s), %d executed, %d skipped.\n",
		result.RunID, len(result.Actions), len(result.Results), len(result.Skipped))
	for id, reason := range result.Skipped {
		fmt.Printf("  skipped %s: %s\n", id, reason)
	}
	if opts.ArtifactsRoot != "" && len(result.Actions) > 0 {
		fmt.Printf("Artifacts: %s\n", filepath.Join(opts.ArtifactsRoot, result.RunID))
	}
	logging.Supervisor("command finished for run %s", result.RunID)
	return nil
}
