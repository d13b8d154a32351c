package speech

import (
	"context"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/polly"
	"github.com/aws/aws-sdk-go-v2/service/polly/types"
	"github.com/shubhsahu23/VoiceBot/internal/errorsx"
)

type pollyAPI interface {
	SynthesizeSpeech(ctx context.Context, params *polly.SynthesizeSpeechInput, optFns ...func(*polly.Options)) (*polly.SynthesizeSpeechOutput, error)
}

// Polly synthesizes MP3 audio with Amazon Polly.
type Polly struct {
	api pollyAPI
}

// NewPolly loads AWS credentials from the default chain for region.
func NewPolly(ctx context.Context, region string) (*Polly, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return &Polly{api: polly.NewFromConfig(cfg)}, nil
}

// Synthesize implements Synthesizer.
func (p *Polly) Synthesize(ctx context.Context, text, voiceID string, engine Engine) ([]byte, error) {
	out, err := p.api.SynthesizeSpeech(ctx, &polly.SynthesizeSpeechInput{
		Text:         aws.String(text),
		OutputFormat: types.OutputFormatMp3,
		VoiceId:      types.VoiceId(voiceID),
		Engine:       types.Engine(engine),
	})
	if err != nil {
		return nil, errorsx.Wrap(fmt.Errorf("polly %s/%s: %w", voiceID, engine, err), errorsx.ReasonSynthesis)
	}
	defer out.AudioStream.Close()

	audio, err := io.ReadAll(out.AudioStream)
	if err != nil {
		return nil, errorsx.Wrap(fmt.Errorf("read polly audio: %w", err), errorsx.ReasonSynthesis)
	}
	return audio, nil
}
