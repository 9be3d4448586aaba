package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/almosthuman-ai/voiceloop/cmd/voiceloop/internal/config"
	"github.com/almosthuman-ai/voiceloop/pkg/archive"
	"github.com/almosthuman-ai/voiceloop/pkg/kv"
	"github.com/almosthuman-ai/voiceloop/pkg/loop"
	"github.com/almosthuman-ai/voiceloop/pkg/respond"
	"github.com/almosthuman-ai/voiceloop/pkg/session"
	"github.com/almosthuman-ai/voiceloop/pkg/stt"
	"github.com/almosthuman-ai/voiceloop/pkg/tts"
)

func loadConfig() (*config.Config, error) {
	return config.Load(cfgFile)
}

// buildLoop assembles the pipeline from configuration. The returned
// close function releases the session database.
func buildLoop(ctx context.Context, cfg *config.Config) (*loop.Loop, func() error, error) {
	backend, err := kv.NewBadger(kv.BadgerOptions{Dir: cfg.DataDir})
	if err != nil {
		return nil, nil, fmt.Errorf("open session database: %w", err)
	}

	transcriber := buildTranscriber(cfg)
	generator, err := buildGenerator(ctx, cfg)
	if err != nil {
		backend.Close()
		return nil, nil, err
	}
	synthesizer := buildSynthesizer(cfg)

	opts := []loop.Option{}
	blobs, err := buildArchive(cfg)
	if err != nil {
		backend.Close()
		return nil, nil, err
	}
	if blobs != nil {
		opts = append(opts, loop.WithArchive(blobs))
	}

	l := loop.New(session.NewStore(backend), transcriber, generator, synthesizer, opts...)
	return l, backend.Close, nil
}

func buildTranscriber(cfg *config.Config) stt.Transcriber {
	opts := []stt.Option{stt.WithPreferStreaming(cfg.STT.PreferStreaming)}
	if cfg.STT.Mock {
		opts = append(opts, stt.WithMock(""))
	}
	return stt.NewClient(cfg.STT.BaseURL, cfg.STT.APIKey, opts...)
}

func buildGenerator(ctx context.Context, cfg *config.Config) (respond.Generator, error) {
	rules := respond.NewRules(cfg.Respond.RulesFile)
	switch cfg.Respond.Backend {
	case config.BackendStub:
		return respond.Stub{}, nil
	case config.BackendPipeline:
		return respond.NewPipelineClient(cfg.Respond.PipelineURL, cfg.Respond.APIKey,
			respond.WithRules(rules)), nil
	case config.BackendGemini:
		opts := []respond.GeminiOption{respond.WithGeminiRules(rules)}
		if cfg.Respond.Model != "" {
			opts = append(opts, respond.WithGeminiModel(cfg.Respond.Model))
		}
		return respond.NewGeminiGenerator(ctx, cfg.Respond.APIKey, opts...)
	case config.BackendOpenAI:
		opts := []respond.OpenAIOption{respond.WithOpenAIRules(rules)}
		if cfg.Respond.Model != "" {
			opts = append(opts, respond.WithOpenAIModel(cfg.Respond.Model))
		}
		return respond.NewOpenAIGenerator(cfg.Respond.APIKey, cfg.Respond.BaseURL, opts...), nil
	default:
		return nil, fmt.Errorf("unknown respond backend %q", cfg.Respond.Backend)
	}
}

// buildSynthesizer always ends in the tone generator, so the pipeline
// can produce audio with no provider configured.
func buildSynthesizer(cfg *config.Config) tts.Synthesizer {
	if cfg.TTS.BaseURL == "" {
		return tts.Tone{}
	}
	opts := []tts.StreamOption{}
	if cfg.TTS.Voice != "" {
		opts = append(opts, tts.WithDefaultVoice(cfg.TTS.Voice))
	}
	return tts.WithFallback(tts.NewStreamClient(cfg.TTS.BaseURL, cfg.TTS.APIKey, opts...), tts.Tone{})
}

func buildArchive(cfg *config.Config) (archive.Store, error) {
	switch cfg.Archive.Backend {
	case "":
		return nil, nil
	case "local":
		return archive.NewLocal(cfg.ArchiveDir())
	case "s3":
		return archive.NewS3(newS3Client(), cfg.Archive.Bucket, cfg.Archive.Prefix), nil
	default:
		return nil, fmt.Errorf("unknown archive backend %q", cfg.Archive.Backend)
	}
}

// newS3Client builds an S3 client from the standard AWS environment
// variables.
func newS3Client() *s3.Client {
	region := os.Getenv("AWS_REGION")
	if region == "" {
		region = "us-east-1"
	}
	accessKey := os.Getenv("AWS_ACCESS_KEY_ID")
	secretKey := os.Getenv("AWS_SECRET_ACCESS_KEY")
	opts := s3.Options{
		Region: region,
		Credentials: aws.CredentialsProviderFunc(func(context.Context) (aws.Credentials, error) {
			return aws.Credentials{
				AccessKeyID:     accessKey,
				SecretAccessKey: secretKey,
				SessionToken:    os.Getenv("AWS_SESSION_TOKEN"),
			}, nil
		}),
	}
	if endpoint := os.Getenv("AWS_ENDPOINT_URL"); endpoint != "" {
		opts.BaseEndpoint = aws.String(endpoint)
		opts.UsePathStyle = true
	}
	return s3.New(opts)
}

func setupLogging() {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
}
