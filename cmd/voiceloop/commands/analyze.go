package commands

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/almosthuman-ai/voiceloop/cmd/voiceloop/internal/config"
	"github.com/almosthuman-ai/voiceloop/pkg/respond"
	"github.com/almosthuman-ai/voiceloop/pkg/session"
)

var sessionsAnalyzeCmd = &cobra.Command{
	Use:   "analyze <session-id>",
	Short: "Run the improvement loop over a session transcript",
	Long: `Feeds a session's transcript plus the current improvement rules to
the response pipeline and persists the updated rule set it returns.
Requires the pipeline respond backend.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		setupLogging()
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if cfg.Respond.Backend != config.BackendPipeline {
			return fmt.Errorf("analyze requires respond.backend %q, have %q",
				config.BackendPipeline, cfg.Respond.Backend)
		}

		rules := respond.NewRules(cfg.Respond.RulesFile)
		completer := respond.NewPipelineClient(cfg.Respond.PipelineURL, cfg.Respond.APIKey)
		analyzer := respond.NewAnalyzer(completer, rules)

		return withStore(cmd.Context(), func(ctx context.Context, store *session.Store) error {
			rec, err := store.Get(ctx, args[0])
			if err != nil {
				return err
			}
			if len(rec.Turns) == 0 {
				return fmt.Errorf("session %s has no turns to analyze", args[0])
			}

			verdict, err := analyzer.Analyze(ctx, transcriptText(rec.Turns))
			if err != nil {
				return err
			}

			fmt.Println(labelStyle.Render(fmt.Sprintf("Insights (%d)", len(verdict.Insights))))
			for _, insight := range verdict.Insights {
				fmt.Printf("  - %s\n", insight)
			}
			fmt.Println()
			fmt.Println(labelStyle.Render(fmt.Sprintf("Active rules (%d)", len(verdict.FinalActiveRules))))
			for _, rule := range verdict.FinalActiveRules {
				fmt.Printf("  - %s %s\n", rule.Rule,
					dimStyle.Render(fmt.Sprintf("(confidence %d)", rule.ConfidenceScore)))
			}
			return nil
		})
	},
}

// transcriptText renders turns as role-tagged lines for the analyzer.
func transcriptText(turns []session.Turn) string {
	var sb strings.Builder
	for _, t := range turns {
		sb.WriteString("User: ")
		sb.WriteString(t.UserText)
		sb.WriteString("\nAssistant: ")
		sb.WriteString(t.AgentText)
		sb.WriteString("\n")
	}
	return sb.String()
}

func init() {
	sessionsCmd.AddCommand(sessionsAnalyzeCmd)
}
