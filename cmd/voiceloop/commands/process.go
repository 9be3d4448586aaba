package commands

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"mime"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

var (
	processSessionID   string
	processContentType string
	processReplyOut    string
	processJSON        bool
)

var processCmd = &cobra.Command{
	Use:   "process <audio-file>",
	Short: "Run one audio file through the voice loop",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		setupLogging()
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		audio, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}
		contentType := processContentType
		if contentType == "" {
			contentType = mime.TypeByExtension(filepath.Ext(args[0]))
		}
		if contentType == "" {
			contentType = "application/octet-stream"
		}

		l, closeStore, err := buildLoop(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer closeStore()

		res, err := l.Process(cmd.Context(), audio, contentType, processSessionID)
		if err != nil {
			return err
		}

		if processReplyOut != "" {
			reply, err := base64.StdEncoding.DecodeString(res.TTSAudioB64)
			if err != nil {
				return err
			}
			if err := os.WriteFile(processReplyOut, reply, 0o644); err != nil {
				return err
			}
		}

		if processJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(res)
		}

		fmt.Printf("session:    %s\n", res.SessionID)
		fmt.Printf("transport:  %s\n", res.Transcript.Transport)
		fmt.Printf("user:       %s\n", res.Transcript.Text)
		fmt.Printf("intent:     %s (%.2f)\n", res.Signals.Intent.Label, res.Signals.Intent.Confidence)
		fmt.Printf("emotion:    %s (%.2f)\n", res.Signals.Emotion.Label, res.Signals.Emotion.Confidence)
		fmt.Printf("agent:      %s\n", res.Response.Text)
		fmt.Printf("audio:      %s via %s\n", res.TTSMIMEType, res.TTSProvider)
		if processReplyOut != "" {
			fmt.Printf("reply file: %s\n", processReplyOut)
		}
		return nil
	},
}

func init() {
	processCmd.Flags().StringVar(&processSessionID, "session", "", "existing session id (default: mint a new session)")
	processCmd.Flags().StringVar(&processContentType, "content-type", "", "audio content type (default: guessed from extension)")
	processCmd.Flags().StringVar(&processReplyOut, "reply-out", "", "write the synthesized reply audio to this file")
	processCmd.Flags().BoolVar(&processJSON, "json", false, "print the full turn result as JSON")
}
