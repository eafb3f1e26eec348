package synthesizer

import (
	"context"
	"fmt"
	"io"

	openai "github.com/sashabaranov/go-openai"
	"github.com/sirupsen/logrus"
)

// OpenAIService speech synthesis via the OpenAI audio API
type OpenAIService struct {
	client *openai.Client
	model  openai.SpeechModel
	voice  openai.SpeechVoice
	logger *logrus.Logger
}

// NewOpenAIService creates an OpenAI-backed synthesis service
func NewOpenAIService(cfg Config) *OpenAIService {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	model := openai.SpeechModel(cfg.Model)
	if model == "" {
		model = openai.TTSModel1
	}
	voice := openai.SpeechVoice(cfg.Voice)
	if voice == "" {
		voice = openai.VoiceAlloy
	}
	return &OpenAIService{
		client: openai.NewClientWithConfig(clientCfg),
		model:  model,
		voice:  voice,
		logger: logrus.StandardLogger(),
	}
}

// Synthesize renders the text as speech. Emergency context switches to a
// steadier voice and a slightly slower rate.
func (s *OpenAIService) Synthesize(ctx context.Context, text string, opts Options) (*Result, error) {
	voice := s.voice
	speed := 1.0
	if opts.Context == ContextEmergency {
		voice = openai.VoiceOnyx
		speed = 0.9
	}

	resp, err := s.client.CreateSpeech(ctx, openai.CreateSpeechRequest{
		Model:          s.model,
		Input:          text,
		Voice:          voice,
		Speed:          speed,
		ResponseFormat: openai.SpeechResponseFormatMp3,
	})
	if err != nil {
		return nil, fmt.Errorf("speech synthesis failed: %w", err)
	}
	defer resp.Close()

	audio, err := io.ReadAll(resp)
	if err != nil {
		return nil, fmt.Errorf("reading synthesized audio failed: %w", err)
	}

	s.logger.WithFields(logrus.Fields{
		"voice": string(voice),
		"bytes": len(audio),
	}).Debug("synthesis completed")

	return &Result{Audio: audio, Format: "mp3", VoiceUsed: string(voice)}, nil
}
