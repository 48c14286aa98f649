// Package usage holds the canonical token-accounting record and the
// normalization rules every provider's usage shape is mapped onto.
package usage

import (
	"log/slog"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// Usage is the canonical token-accounting record. TotalTokens is always
// recomputed as PromptTokens + CompletionTokens by Normalize; the
// provider-reported total is never trusted. Provider-specific extras that
// have no typed field (timing splits, cache-creation counts) are retained in
// Ext.
type Usage struct {
	PromptTokens            int64                         `json:"prompt_tokens"`
	CompletionTokens        int64                         `json:"completion_tokens"`
	TotalTokens             int64                         `json:"total_tokens"`
	PromptTokensDetails     PromptTokensDetails           `json:"prompt_tokens_details,omitempty"`
	CompletionTokensDetails CompletionTokensDetails       `json:"completion_tokens_details,omitempty"`
	Ext                     *orderedmap.OrderedMap[string, any] `json:"ext,omitempty"`
}

// PromptTokensDetails splits the prompt-side token count.
type PromptTokensDetails struct {
	AudioTokens  int64 `json:"audio_tokens,omitempty"`
	CachedTokens int64 `json:"cached_tokens,omitempty"`
}

// CompletionTokensDetails splits the completion-side token count.
type CompletionTokensDetails struct {
	AcceptedPredictionTokens int64 `json:"accepted_prediction_tokens,omitempty"`
	AudioTokens              int64 `json:"audio_tokens,omitempty"`
	ReasoningTokens          int64 `json:"reasoning_tokens,omitempty"`
	RejectedPredictionTokens int64 `json:"rejected_prediction_tokens,omitempty"`
}

// AddUsage accumulates other into u, field by field, and recomputes the
// total.
func (u *Usage) AddUsage(other *Usage) {
	if other == nil {
		return
	}
	u.PromptTokens += other.PromptTokens
	u.CompletionTokens += other.CompletionTokens
	u.PromptTokensDetails.AddUsage(&other.PromptTokensDetails)
	u.CompletionTokensDetails.AddUsage(&other.CompletionTokensDetails)
	if other.Ext != nil {
		if u.Ext == nil {
			u.Ext = orderedmap.New[string, any]()
		}
		for pair := other.Ext.Oldest(); pair != nil; pair = pair.Next() {
			u.Ext.Set(pair.Key, pair.Value)
		}
	}
	u.TotalTokens = u.PromptTokens + u.CompletionTokens
}

// AddUsage accumulates other into d.
func (d *PromptTokensDetails) AddUsage(other *PromptTokensDetails) {
	if other == nil {
		return
	}
	d.AudioTokens += other.AudioTokens
	d.CachedTokens += other.CachedTokens
}

// AddUsage accumulates other into d.
func (d *CompletionTokensDetails) AddUsage(other *CompletionTokensDetails) {
	if other == nil {
		return
	}
	d.AcceptedPredictionTokens += other.AcceptedPredictionTokens
	d.AudioTokens += other.AudioTokens
	d.ReasoningTokens += other.ReasoningTokens
	d.RejectedPredictionTokens += other.RejectedPredictionTokens
}

// Normalize recomputes TotalTokens from the prompt and completion counts.
// A provider-reported total that disagrees is a discrepancy worth knowing
// about but not an error; it is logged with the provider name and both
// values.
func (u *Usage) Normalize(provider string) {
	want := u.PromptTokens + u.CompletionTokens
	if u.TotalTokens != 0 && u.TotalTokens != want {
		slog.Warn("provider-reported total_tokens disagrees with prompt+completion",
			slog.String("provider", provider),
			slog.Int64("reported", u.TotalTokens),
			slog.Int64("computed", want),
		)
	}
	u.TotalTokens = want
}

// SetExt records a provider-specific extra, allocating the extension map on
// first use.
func (u *Usage) SetExt(key string, value any) {
	if u.Ext == nil {
		u.Ext = orderedmap.New[string, any]()
	}
	u.Ext.Set(key, value)
}
