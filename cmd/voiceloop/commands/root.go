package commands

import (
	"github.com/spf13/cobra"
)

var (
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "voiceloop",
	Short: "Voice turn-processing pipeline",
	Long: `voiceloop runs audio turns through a full voice pipeline:
transcription, signal derivation, response generation, speech
synthesis, and durable session persistence.

Configuration lives in ~/.voiceloop/config.yaml. With no config file
the pipeline runs fully local: mock transcription, stub responses, and
a tone synthesizer, so every command works out of the box.

Examples:
  # serve the HTTP API
  voiceloop serve

  # run one audio file through the pipeline
  voiceloop process recording.webm --reply-out reply.wav

  # inspect stored sessions
  voiceloop sessions list
  voiceloop sessions show <session-id>
`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the CLI.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ~/.voiceloop/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(processCmd)
	rootCmd.AddCommand(sessionsCmd)
	rootCmd.AddCommand(configCmd)
}
