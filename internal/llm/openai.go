package llm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

// classifierSystemPrompt instructs the routing model. The model was tuned to
// answer with a single function call in its call:name{...} wire format.
const classifierSystemPrompt = "You are a model that can do function calling with the following functions"

// summaryPromptTemplate matches the rolling-summary contract: a few factual
// sentences that preserve continuity, folding the previous summary in.
const summaryPromptTemplate = `Summarize this conversation concisely, preserving key facts, decisions, and context needed for continuity.

Previous summary: %s

New conversation to incorporate:
%s

Provide a brief, factual summary (3-4 sentences max):`

// thinkingInstruction is appended to the system prompt for reasoning-heavy
// passthrough turns.
const thinkingInstruction = "\n\nThink through the problem step by step before answering."

// Client talks to an OpenAI-compatible endpoint and implements Generator,
// Classifier, Summarizer, and Completer.
type Client struct {
	api     *openai.Client
	cfg     Config
	timeout time.Duration
}

// NewClient builds a client for the configured endpoint.
func NewClient(cfg Config) *Client {
	apiCfg := openai.DefaultConfig(cfg.APIKey)
	apiCfg.BaseURL = cfg.Endpoint

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 2 * time.Minute
	}

	return &Client{
		api:     openai.NewClientWithConfig(apiCfg),
		cfg:     cfg,
		timeout: timeout,
	}
}

// Generate streams a chat completion, calling onToken per chunk.
func (c *Client) Generate(ctx context.Context, system string, history []Message, mode GenerationMode, onToken func(string)) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if mode == ModeThinking {
		system += thinkingInstruction
	}

	messages := make([]openai.ChatCompletionMessage, 0, len(history)+1)
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleSystem,
		Content: system,
	})
	for _, m := range history {
		messages = append(messages, openai.ChatCompletionMessage{Role: m.Role, Content: m.Content})
	}

	stream, err := c.api.CreateChatCompletionStream(ctx, openai.ChatCompletionRequest{
		Model:    c.cfg.ChatModel,
		Messages: messages,
		Stream:   true,
	})
	if err != nil {
		return "", fmt.Errorf("open completion stream: %w", err)
	}
	defer stream.Close()

	var full strings.Builder
	for {
		chunk, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return full.String(), fmt.Errorf("receive stream chunk: %w", err)
		}
		if len(chunk.Choices) == 0 {
			continue
		}
		token := chunk.Choices[0].Delta.Content
		if token == "" {
			continue
		}
		full.WriteString(token)
		if onToken != nil {
			onToken(token)
		}
	}

	return full.String(), nil
}

// Classify asks the routing model for a function call and returns its raw
// response text unparsed.
func (c *Client) Classify(ctx context.Context, text string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.cfg.ClassifierModel,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: classifierSystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: text},
		},
		MaxTokens:   100,
		Temperature: 0,
	})
	if err != nil {
		return "", fmt.Errorf("classify request: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("classify request: empty response")
	}
	return resp.Choices[0].Message.Content, nil
}

// Summarize folds older turns into the rolling summary.
func (c *Client) Summarize(ctx context.Context, previous string, turns []Message) (string, error) {
	if len(turns) == 0 {
		return previous, nil
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var transcript strings.Builder
	for _, m := range turns {
		role := "User"
		if m.Role == openai.ChatMessageRoleAssistant {
			role = "Assistant"
		}
		fmt.Fprintf(&transcript, "%s: %s\n", role, m.Content)
	}

	prev := previous
	if prev == "" {
		prev = "None"
	}

	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.cfg.SummaryModel,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: fmt.Sprintf(summaryPromptTemplate, prev, transcript.String())},
		},
	})
	if err != nil {
		return "", fmt.Errorf("summarize request: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("summarize request: empty response")
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

// Complete runs a one-shot prompt against the summary model.
func (c *Client) Complete(ctx context.Context, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.cfg.SummaryModel,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		Temperature: 0.3,
	})
	if err != nil {
		return "", fmt.Errorf("completion request: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("completion request: empty response")
	}
	return resp.Choices[0].Message.Content, nil
}
