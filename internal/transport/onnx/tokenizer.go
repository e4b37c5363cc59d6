package onnx

import (
	"fmt"

	"github.com/sugarme/tokenizer"
	"github.com/sugarme/tokenizer/pretrained"
)

// HFTokenizer wraps a HuggingFace tokenizer.json.
type HFTokenizer struct {
	tk *tokenizer.Tokenizer
}

// LoadTokenizer reads tokenizer.json and enables truncation at maxLen.
func LoadTokenizer(path string, maxLen int) (*HFTokenizer, error) {
	tk, err := pretrained.FromFile(path)
	if err != nil {
		return nil, err
	}
	tk.WithTruncation(&tokenizer.TruncationParams{
		MaxLength: maxLen,
		Strategy:  tokenizer.LongestFirst,
	})
	return &HFTokenizer{tk: tk}, nil
}

// Encode implements Tokenizer. Special tokens ([CLS], [SEP]) are added.
func (h *HFTokenizer) Encode(text string) (Encoding, error) {
	enc, err := h.tk.EncodeSingle(text, true)
	if err != nil {
		return Encoding{}, fmt.Errorf("encode: %w", err)
	}
	return Encoding{
		InputIDs:      toInt64(enc.Ids),
		AttentionMask: toInt64(enc.AttentionMask),
		TypeIDs:       toInt64(enc.TypeIds),
	}, nil
}

func toInt64(in []int) []int64 {
	out := make([]int64, len(in))
	for i, v := range in {
		out[i] = int64(v)
	}
	return out
}
