package inference

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"google.golang.org/adk/agent"
	"google.golang.org/adk/agent/llmagent"
	"google.golang.org/adk/model/gemini"
	"google.golang.org/adk/runner"
	"google.golang.org/adk/session"
	"google.golang.org/genai"
)

const (
	BackendADK   = "adk"
	BackendGenAI = "genai"

	DefaultModel = "gemini-2.5-flash"
	agentName    = "skill analyzer"
	agentUser    = "skillmatch-worker"
)

// Completer sends one prompt to a model configured with the skill
// instruction and returns its text answer.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// NewCompleter builds the completer for backend.
func NewCompleter(ctx context.Context, backend, apiKey, model string) (Completer, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, errors.New("gemini api key is required")
	}
	if model = strings.TrimSpace(model); model == "" {
		model = DefaultModel
	}
	switch backend {
	case BackendADK, "":
		return NewAgentCompleter(ctx, apiKey, model)
	case BackendGenAI:
		return NewGenAICompleter(ctx, apiKey, model)
	default:
		return nil, fmt.Errorf("unknown inference backend %q", backend)
	}
}

// AgentCompleter runs every prompt in a fresh in-memory agent session.
type AgentCompleter struct {
	runner   *runner.Runner
	sessions session.Service
	appName  string
}

func NewAgentCompleter(ctx context.Context, apiKey, model string) (*AgentCompleter, error) {
	llm, err := gemini.NewModel(ctx, model, &genai.ClientConfig{
		APIKey: apiKey,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create model: %w", err)
	}

	analyzer, err := llmagent.New(llmagent.Config{
		Name:        agentName,
		Model:       llm,
		Description: "Derive technical skills from repository signals",
		Instruction: systemInstruction(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create agent: %w", err)
	}

	sessions := session.InMemoryService()
	r, err := runner.New(runner.Config{
		AppName:        analyzer.Name(),
		Agent:          analyzer,
		SessionService: sessions,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create runner: %w", err)
	}
	return &AgentCompleter{runner: r, sessions: sessions, appName: analyzer.Name()}, nil
}

func (a *AgentCompleter) Complete(ctx context.Context, prompt string) (string, error) {
	created, err := a.sessions.Create(ctx, &session.CreateRequest{
		AppName:   a.appName,
		UserID:    agentUser,
		SessionID: uuid.NewString(),
	})
	if err != nil {
		return "", fmt.Errorf("failed to create session: %w", err)
	}
	sess := created.Session
	defer a.sessions.Delete(context.WithoutCancel(ctx), &session.DeleteRequest{
		AppName:   sess.AppName(),
		UserID:    sess.UserID(),
		SessionID: sess.ID(),
	})

	stream := a.runner.Run(ctx, sess.UserID(), sess.ID(), &genai.Content{
		Role: "user",
		Parts: []*genai.Part{
			{Text: prompt},
		},
	}, agent.RunConfig{})

	var output string
	for event, err := range stream {
		if err != nil {
			return "", err
		}
		if event != nil && event.IsFinalResponse() && event.Content != nil && len(event.Content.Parts) > 0 {
			output = event.Content.Parts[0].Text
		}
	}
	if output == "" {
		return "", errors.New("empty agent response")
	}
	return output, nil
}

// GenAICompleter calls GenerateContent directly in JSON mode.
type GenAICompleter struct {
	client *genai.Client
	model  string
}

func NewGenAICompleter(ctx context.Context, apiKey, model string) (*GenAICompleter, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	return &GenAICompleter{client: client, model: model}, nil
}

func (g *GenAICompleter) Complete(ctx context.Context, prompt string) (string, error) {
	cfg := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(systemInstruction(), genai.RoleUser),
		ResponseMIMEType:  "application/json",
	}
	resp, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(prompt), cfg)
	if err != nil {
		return "", fmt.Errorf("generate content: %w", err)
	}

	var builder strings.Builder
	for _, candidate := range resp.Candidates {
		if candidate == nil || candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			if part == nil || strings.TrimSpace(part.Text) == "" {
				continue
			}
			if builder.Len() > 0 {
				builder.WriteString("\n")
			}
			builder.WriteString(strings.TrimSpace(part.Text))
		}
	}
	output := strings.TrimSpace(builder.String())
	if output == "" {
		return "", errors.New("gemini api returned empty response")
	}
	return output, nil
}
