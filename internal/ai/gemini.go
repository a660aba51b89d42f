// Package ai asks a Gemini model for budget audits and SPJ checklists.
package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// Generator returns the raw text a model produced for a prompt.
type Generator interface {
	Generate(ctx context.Context, model, prompt string) (string, error)
}

var ErrEmptyResponse = errors.New("no response from Gemini API")

// Gemini is a Generator backed by the Gemini API. The client is created on
// first use.
type Gemini struct {
	apiKey string

	mu     sync.Mutex
	client *genai.Client
}

func NewGemini(apiKey string) *Gemini {
	return &Gemini{apiKey: apiKey}
}

func (g *Gemini) ensureClient(ctx context.Context) (*genai.Client, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.client != nil {
		return g.client, nil
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(g.apiKey))
	if err != nil {
		return nil, fmt.Errorf("create Gemini client: %w", err)
	}
	g.client = client
	return client, nil
}

// Generate implements Generator
func (g *Gemini) Generate(ctx context.Context, model, prompt string) (string, error) {
	client, err := g.ensureClient(ctx)
	if err != nil {
		return "", err
	}

	resp, err := client.GenerativeModel(model).GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", fmt.Errorf("gemini %s: %w", model, err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", ErrEmptyResponse
	}

	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			b.WriteString(string(text))
		}
	}
	if b.Len() == 0 {
		return "", ErrEmptyResponse
	}
	return b.String(), nil
}

func (g *Gemini) Close() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.client == nil {
		return nil
	}
	err := g.client.Close()
	g.client = nil
	return err
}
