package detection

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

// ErrTranscriptionUnavailable means no transcription capability is configured.
var ErrTranscriptionUnavailable = errors.New("detection: transcription unavailable")

// Transcriber turns a PCM window into text.
type Transcriber interface {
	Transcribe(ctx context.Context, pcm []int16, sampleRate int) (string, error)
}

// WhisperTranscriber uses the OpenAI transcription endpoint.
type WhisperTranscriber struct {
	client   *openai.Client
	model    string
	language string
}

func NewWhisperTranscriber(apiKey, model string) (*WhisperTranscriber, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, ErrTranscriptionUnavailable
	}
	if model == "" {
		model = openai.Whisper1
	}
	return &WhisperTranscriber{client: openai.NewClient(apiKey), model: model, language: "en"}, nil
}

func (w *WhisperTranscriber) Transcribe(ctx context.Context, pcm []int16, sampleRate int) (string, error) {
	if len(pcm) == 0 {
		return "", errors.New("detection: empty audio window")
	}
	audio, err := EncodeWAV(pcm, sampleRate)
	if err != nil {
		return "", err
	}
	resp, err := w.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    w.model,
		FilePath: "window.wav",
		Reader:   bytes.NewReader(audio),
		Language: w.language,
	})
	if err != nil {
		return "", fmt.Errorf("detection: transcribe: %w", err)
	}
	return strings.TrimSpace(resp.Text), nil
}
