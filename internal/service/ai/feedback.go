package ai

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"
)

// FeedbackInput describes one scored attempt.
type FeedbackInput struct {
	ExpectedWords string
	Transcript    string
	Score         float64
	Missing       []string
}

// FeedbackWriter turns a scored attempt into a short spoken-style comment
// from the therapist.
type FeedbackWriter struct {
	chain compose.Runnable[map[string]any, *schema.Message]
}

// NewFeedbackWriter compiles the prompt chain around chatModel.
func NewFeedbackWriter(ctx context.Context, chatModel model.ChatModel) (*FeedbackWriter, error) {
	if chatModel == nil {
		return nil, fmt.Errorf("chat model is required")
	}

	promptTemplate := prompt.FromMessages(
		schema.FString,
		schema.SystemMessage("{system}"),
		schema.UserMessage("{query}"),
	)

	chain := compose.NewChain[map[string]any, *schema.Message]()
	chain.AppendChatTemplate(promptTemplate)
	chain.AppendChatModel(chatModel)

	runnable, err := chain.Compile(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to compile feedback chain: %w", err)
	}
	return &FeedbackWriter{chain: runnable}, nil
}

// Write generates the feedback text.
func (w *FeedbackWriter) Write(ctx context.Context, in FeedbackInput) (string, error) {
	response, err := w.chain.Invoke(ctx, map[string]any{
		"system": systemPrompt,
		"query":  buildQuery(in),
	})
	if err != nil {
		return "", fmt.Errorf("failed to run feedback chain: %w", err)
	}

	text := strings.TrimSpace(response.Content)
	if text == "" {
		return "", fmt.Errorf("model returned empty feedback")
	}
	log.Printf("[ai] generated feedback score=%.0f length=%d", in.Score, len(text))
	return text, nil
}
