// Package pipeline implements the staged research state machine: planner,
// searcher, extractor, analyzer and reporter, sequenced by the Graph with a
// quality-gated loop-back.
package pipeline

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/research-orchestrator/pkg/anthropic"
)

// GenOptions tunes a single generative completion.
type GenOptions struct {
	Temperature float64
	MaxTokens   int64
}

// Generative produces free-form text from a prompt. The analyzer and
// reporter treat any error or unparsable output as a signal to use their
// deterministic fallbacks, never as a stage failure.
type Generative interface {
	Complete(ctx context.Context, system, prompt string, opts GenOptions) (string, error)
}

// anthropicGenerative backs Generative with the Anthropic Messages API.
type anthropicGenerative struct {
	client anthropic.Client
	model  string
}

// NewAnthropicGenerative wraps an Anthropic client as a Generative provider.
func NewAnthropicGenerative(client anthropic.Client, model string) Generative {
	return &anthropicGenerative{client: client, model: model}
}

func (g *anthropicGenerative) Complete(ctx context.Context, system, prompt string, opts GenOptions) (string, error) {
	maxTokens := opts.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 4096
	}

	req := anthropic.MessageRequest{
		Model:     g.model,
		MaxTokens: maxTokens,
		System:    system,
		Messages: []anthropic.Message{
			{Role: "user", Content: prompt},
		},
	}
	if opts.Temperature > 0 {
		req.Temperature = &opts.Temperature
	}

	resp, err := g.client.CreateMessage(ctx, req)
	if err != nil {
		return "", eris.Wrap(err, "pipeline: generative complete")
	}
	resp.Usage.LogCost(g.model, "generative")

	text := resp.Text()
	if text == "" {
		return "", eris.New("pipeline: generative returned empty response")
	}
	return text, nil
}
