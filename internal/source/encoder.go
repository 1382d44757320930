package source

import (
	"github.com/pkg/errors"
	"github.com/pkoukk/tiktoken-go"
)

// Encoder turns text into the token ids an id-carrying descriptor holds.
type Encoder interface {
	Encode(text string) ([]int32, error)
}

// TikTokenEncoder adapts the pkoukk/tiktoken-go BPE tokenizers.
//
// Supported encodings:
//   - cl100k_base: GPT-4, GPT-3.5-turbo, text-embedding-ada-002
//   - p50k_base: GPT-3, Codex
//   - r50k_base: older GPT-3 models
type TikTokenEncoder struct {
	enc  *tiktoken.Tiktoken
	name string
}

// NewTikTokenEncoder loads a tiktoken encoding by name, such as
// "cl100k_base" (GPT-4) or "p50k_base" (GPT-3).
func NewTikTokenEncoder(encodingName string) (*TikTokenEncoder, error) {
	enc, err := tiktoken.GetEncoding(encodingName)
	if err != nil {
		return nil, errors.Wrapf(err, "load tiktoken encoding %q", encodingName)
	}
	return &TikTokenEncoder{enc: enc, name: encodingName}, nil
}

// NewTikTokenEncoderForModel loads the encoding a model was trained with,
// such as "gpt-4" or "text-embedding-ada-002".
func NewTikTokenEncoderForModel(modelName string) (*TikTokenEncoder, error) {
	enc, err := tiktoken.EncodingForModel(modelName)
	if err != nil {
		return nil, errors.Wrapf(err, "load tiktoken encoding for model %q", modelName)
	}
	return &TikTokenEncoder{enc: enc, name: modelName}, nil
}

// Name returns the encoding or model name the encoder was loaded with.
func (t *TikTokenEncoder) Name() string { return t.name }

// Encode converts text to token ids.
func (t *TikTokenEncoder) Encode(text string) ([]int32, error) {
	tokens := t.enc.Encode(text, nil, nil)
	out := make([]int32, len(tokens))
	for i, tok := range tokens {
		out[i] = int32(tok) //nolint:gosec // G115: vocab sizes stay far below 2^31.
	}
	return out, nil
}

// Decode converts token ids back to text.
func (t *TikTokenEncoder) Decode(ids []int32) (string, error) {
	tokens := make([]int, len(ids))
	for i, id := range ids {
		tokens[i] = int(id)
	}
	return t.enc.Decode(tokens), nil
}
