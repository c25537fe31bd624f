package search

import (
	"context"
	"fmt"

	"github.com/giygas/medisearch/interfaces"
)

// VoiceInput is the spoken input source. It reads one utterance from a
// recognizer and searches it exactly like typed input.
type VoiceInput struct {
	recognizer interfaces.Recognizer
	engine     *Engine
}

// NewVoiceInput pairs a recognizer with the engine it feeds
func NewVoiceInput(recognizer interfaces.Recognizer, engine *Engine) *VoiceInput {
	return &VoiceInput{recognizer: recognizer, engine: engine}
}

// Listen recognizes one utterance and searches it
func (v *VoiceInput) Listen(ctx context.Context) (ResultSet, bool, error) {
	utterance, err := v.recognizer.Recognize(ctx)
	if err != nil {
		return ResultSet{}, false, fmt.Errorf("speech recognition failed: %w", err)
	}

	rs, applied := v.engine.Search(ctx, utterance)
	return rs, applied, nil
}

// Transcript is a Recognizer for an utterance that was already recognized
// by the client.
type Transcript string

// Recognize returns the transcript
func (t Transcript) Recognize(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return string(t), nil
}
