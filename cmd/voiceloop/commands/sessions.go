package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/almosthuman-ai/voiceloop/pkg/kv"
	"github.com/almosthuman-ai/voiceloop/pkg/session"
)

var (
	labelStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#00ff9f"))
	dimStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#6e7681"))
)

var sessionsJSON bool

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "Inspect stored sessions",
}

var sessionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored sessions",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withStore(cmd.Context(), func(ctx context.Context, store *session.Store) error {
			summaries, err := store.List(ctx)
			if err != nil {
				return err
			}
			if sessionsJSON {
				return printJSON(summaries)
			}
			if len(summaries) == 0 {
				fmt.Println(dimStyle.Render("no sessions"))
				return nil
			}
			fmt.Printf("%s  %-20s  %-20s  %s\n",
				labelStyle.Render(fmt.Sprintf("%-36s", "SESSION")),
				"CREATED", "UPDATED", "TURNS")
			for _, s := range summaries {
				fmt.Printf("%-36s  %-20s  %-20s  %d\n",
					s.ID,
					s.CreatedAt.Format("2006-01-02 15:04:05"),
					s.UpdatedAt.Format("2006-01-02 15:04:05"),
					s.TurnCount)
			}
			return nil
		})
	},
}

var sessionsShowCmd = &cobra.Command{
	Use:   "show <session-id>",
	Short: "Show one session's turns and events",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(cmd.Context(), func(ctx context.Context, store *session.Store) error {
			rec, err := store.Get(ctx, args[0])
			if err != nil {
				return err
			}
			events, err := store.Events(ctx, args[0])
			if err != nil {
				return err
			}
			if sessionsJSON {
				return printJSON(map[string]any{"session": rec, "events": events})
			}

			fmt.Println(labelStyle.Render("Session ") + rec.ID)
			fmt.Println(dimStyle.Render(fmt.Sprintf("created %s, updated %s",
				rec.CreatedAt.Format("2006-01-02 15:04:05"),
				rec.UpdatedAt.Format("2006-01-02 15:04:05"))))

			fmt.Println()
			fmt.Println(labelStyle.Render(fmt.Sprintf("Turns (%d)", len(rec.Turns))))
			for i, turn := range rec.Turns {
				fmt.Printf("%s %s\n", dimStyle.Render(fmt.Sprintf("%3d.", i+1)), turn.Timestamp.Format("15:04:05"))
				fmt.Printf("     user:  %s\n", turn.UserText)
				fmt.Printf("     agent: %s\n", turn.AgentText)
				fmt.Printf("     %s\n", dimStyle.Render(fmt.Sprintf(
					"intent=%s emotion=%s sentiment=%s audio=%s",
					turn.Signals.Intent.Label, turn.Signals.Emotion.Label,
					turn.Signals.Sentiment, turn.AudioProvider)))
			}

			fmt.Println()
			fmt.Println(labelStyle.Render(fmt.Sprintf("Events (%d)", len(events))))
			for _, evt := range events {
				payload := ""
				if len(evt.Payload) > 0 {
					data, err := json.Marshal(evt.Payload)
					if err == nil {
						payload = string(data)
					}
				}
				fmt.Printf("  %s %-16s %s\n",
					evt.Timestamp.Format("15:04:05"),
					evt.Type,
					dimStyle.Render(truncate(payload, 100)))
			}
			return nil
		})
	},
}

func withStore(ctx context.Context, fn func(context.Context, *session.Store) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	backend, err := kv.NewBadger(kv.BadgerOptions{Dir: cfg.DataDir})
	if err != nil {
		return fmt.Errorf("open session database: %w", err)
	}
	defer backend.Close()
	return fn(ctx, session.NewStore(backend))
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return strings.TrimSpace(s[:n]) + "..."
}

func init() {
	sessionsCmd.PersistentFlags().BoolVar(&sessionsJSON, "json", false, "output as JSON")
	sessionsCmd.AddCommand(sessionsListCmd)
	sessionsCmd.AddCommand(sessionsShowCmd)
}
