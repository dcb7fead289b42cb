package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"concierge/internal/config"
	"concierge/internal/prompt"
	"concierge/internal/workers"

	"github.com/spf13/cobra"
)

// starterCapabilities is the capability registry a fresh workspace
// starts with. Each entry needs a matching worker template.
const starterCapabilities = `# Worker capability registry.
# One entry per routable worker: name -> one-line description the
# classifier matches requests against.
reminder: sets a reminder with a text and a time
summary: summarizes a piece of text or a conversation
`

var starterWorkers = map[string]string{
	"reminder": `Role: You are a reminder assistant. Turn the request into a concrete reminder.
Input data: {descriptions}
Guidelines:
resolve relative times against the conversation start time;
keep the reminder text short and imperative
` + workers.OutputAnchor + `
{"reminder_text": "", "time": ""}`,

	"summary": `Role: You are a summarization assistant. Summarize the supplied content.
Input data: {descriptions}
Guidelines:
keep the summary under five sentences;
preserve names, dates and amounts exactly
` + workers.OutputAnchor + `
{"summary": ""}`,
}

// initCmd scaffolds a workspace
var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create the config, templates and capability registry",
	Long: `Writes a default config to <workspace>/.concierge/config.yaml, the
built-in prompt templates to the template directory, a starter
capability registry, and one worker template per starter capability.
Existing files are left untouched.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()

		configFile := config.DefaultConfigPath(cfg.Workspace)
		if err := writeIfAbsent(configFile, func() error { return cfg.Save(configFile) }, out); err != nil {
			return err
		}

		templatesDir := inWorkspace(cfg.Paths.Templates)
		if err := os.MkdirAll(filepath.Join(templatesDir, "workers"), 0o755); err != nil {
			return err
		}
		for name, text := range prompt.Defaults() {
			path := filepath.Join(templatesDir, name+".txt")
			if err := writeFileIfAbsent(path, text, out); err != nil {
				return err
			}
		}
		for name, text := range starterWorkers {
			path := filepath.Join(templatesDir, "workers", name+".txt")
			if err := writeFileIfAbsent(path, text, out); err != nil {
				return err
			}
		}

		capsFile := inWorkspace(cfg.Paths.Capabilities)
		if err := writeFileIfAbsent(capsFile, starterCapabilities, out); err != nil {
			return err
		}

		fmt.Fprintf(out, "Workspace ready. Set %s and run 'concierge text \"...\"'.\n", apiKeyEnvHint())
		return nil
	},
}

func apiKeyEnvHint() string {
	switch cfg.LLM.Provider {
	case "zai":
		return "ZAI_API_KEY"
	case "gemini":
		return "GEMINI_API_KEY"
	}
	return "OPENAI_API_KEY"
}

func writeIfAbsent(path string, write func() error, out io.Writer) error {
	if _, err := os.Stat(path); err == nil {
		fmt.Fprintf(out, "keep   %s\n", path)
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	if err := write(); err != nil {
		return err
	}
	fmt.Fprintf(out, "create %s\n", path)
	return nil
}

func writeFileIfAbsent(path, content string, out io.Writer) error {
	return writeIfAbsent(path, func() error {
		return os.WriteFile(path, []byte(content), 0o644)
	}, out)
}
