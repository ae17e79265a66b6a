// Package polly synthesizes SSML into audio through AWS Polly.
package polly

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awspolly "github.com/aws/aws-sdk-go-v2/service/polly"
	pollytypes "github.com/aws/aws-sdk-go-v2/service/polly/types"

	"stillpoint/internal/services"
)

const (
	defaultEngine       = "neural"
	defaultOutputFormat = "mp3"
	defaultCallTimeout  = 60 * time.Second
	synthesisAttempts   = 3
)

// Config captures the runtime settings for the Polly service.
type Config struct {
	Region         string
	Profile        string
	Engine         string
	OutputFormat   string
	TimeoutSeconds int
}

// API is the subset of the Polly SDK surface the client uses.
type API interface {
	SynthesizeSpeech(ctx context.Context, input *awspolly.SynthesizeSpeechInput, opts ...func(*awspolly.Options)) (*awspolly.SynthesizeSpeechOutput, error)
}

// Client synthesizes SSML markup into audio files.
type Client struct {
	api API
	cfg Config
}

// New builds a client backed by AWS credentials resolved from the standard
// chain (profile, env, instance role).
func New(ctx context.Context, cfg Config) (*Client, error) {
	loadOpts := []func(*awsconfig.LoadOptions) error{}
	if region := strings.TrimSpace(cfg.Region); region != "" {
		loadOpts = append(loadOpts, awsconfig.WithRegion(region))
	}
	if profile := strings.TrimSpace(cfg.Profile); profile != "" {
		loadOpts = append(loadOpts, awsconfig.WithSharedConfigProfile(profile))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "", "load aws config", "", err)
	}
	return NewWithAPI(awspolly.NewFromConfig(awsCfg), cfg), nil
}

// NewWithAPI builds a client over an explicit API implementation. Tests use
// this with a fake.
func NewWithAPI(api API, cfg Config) *Client {
	if strings.TrimSpace(cfg.Engine) == "" {
		cfg.Engine = defaultEngine
	}
	if strings.TrimSpace(cfg.OutputFormat) == "" {
		cfg.OutputFormat = defaultOutputFormat
	}
	return &Client{api: api, cfg: cfg}
}

// FileExtension returns the file extension matching the configured output
// format.
func (c *Client) FileExtension() string {
	switch strings.ToLower(c.cfg.OutputFormat) {
	case "ogg_vorbis":
		return ".ogg"
	case "pcm":
		return ".pcm"
	default:
		return ".mp3"
	}
}

// SynthesizeSSML renders the markup with the given voice into outPath.
// Transient service failures are retried a bounded number of times; on any
// terminal failure no partial output file is left behind.
func (c *Client) SynthesizeSSML(ctx context.Context, markup, voiceID, languageCode, outPath string) error {
	if strings.TrimSpace(markup) == "" {
		return services.Wrap(services.ErrValidation, "", "synthesize speech", "markup is required", nil)
	}
	if strings.TrimSpace(voiceID) == "" {
		return services.Wrap(services.ErrValidation, "", "synthesize speech", "voice id is required", nil)
	}

	timeout := defaultCallTimeout
	if c.cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(c.cfg.TimeoutSeconds) * time.Second
	}

	input := &awspolly.SynthesizeSpeechInput{
		Text:         aws.String(markup),
		TextType:     pollytypes.TextTypeSsml,
		VoiceId:      pollytypes.VoiceId(voiceID),
		OutputFormat: pollytypes.OutputFormat(strings.ToLower(c.cfg.OutputFormat)),
		Engine:       pollytypes.Engine(strings.ToLower(c.cfg.Engine)),
	}
	if lang := strings.TrimSpace(languageCode); lang != "" {
		input.LanguageCode = pollytypes.LanguageCode(lang)
	}

	err := retry.Do(
		func() error {
			callCtx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()
			output, err := c.api.SynthesizeSpeech(callCtx, input)
			if err != nil {
				return err
			}
			defer output.AudioStream.Close()
			return writeStream(output.AudioStream, outPath)
		},
		retry.Context(ctx),
		retry.Attempts(synthesisAttempts),
		retry.Delay(1*time.Second),
		retry.LastErrorOnly(true),
		retry.RetryIf(func(err error) bool {
			// Invalid SSML or an unknown voice will not heal on retry.
			var invalidSSML *pollytypes.InvalidSsmlException
			if errors.As(err, &invalidSSML) {
				return false
			}
			return ctx.Err() == nil
		}),
	)
	if err != nil {
		os.Remove(outPath)
		return services.Wrap(services.ErrExternalTool, "", "synthesize speech",
			fmt.Sprintf("voice %s", voiceID), err)
	}
	return nil
}

func writeStream(stream io.Reader, outPath string) error {
	out, err := os.Create(outPath)
	if err != nil {
		return fmt.Errorf("create audio file: %w", err)
	}
	if _, err := io.Copy(out, stream); err != nil {
		out.Close()
		os.Remove(outPath)
		return fmt.Errorf("write audio stream: %w", err)
	}
	if err := out.Close(); err != nil {
		os.Remove(outPath)
		return fmt.Errorf("flush audio file: %w", err)
	}
	return nil
}
