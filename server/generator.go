package server

import (
	"context"
	"strings"
	"time"
)

// Generator produces tokens for a prompt. Generate calls emit once per token,
// in order, and stops at the first emit error.
type Generator interface {
	Generate(ctx context.Context, prompt string, maxLength int, emit func(token string) error) error
}

// EchoGenerator replays the words of the prompt as tokens. Every token after
// the first carries its leading space so the concatenation reads naturally.
type EchoGenerator struct {
	Delay time.Duration
}

var _ Generator = (*EchoGenerator)(nil)

func (g *EchoGenerator) Generate(ctx context.Context, prompt string, maxLength int, emit func(string) error) error {
	for i, word := range strings.Fields(prompt) {
		if i >= maxLength {
			break
		}

		if g.Delay > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(g.Delay):
			}
		} else if err := ctx.Err(); err != nil {
			return err
		}

		token := word
		if i > 0 {
			token = " " + word
		}
		if err := emit(token); err != nil {
			return err
		}
	}
	return nil
}

// generateAll collects every token of a generation.
func generateAll(ctx context.Context, g Generator, prompt string, maxLength int) (string, error) {
	var b strings.Builder
	err := g.Generate(ctx, prompt, maxLength, func(token string) error {
		b.WriteString(token)
		return nil
	})
	return b.String(), err
}
