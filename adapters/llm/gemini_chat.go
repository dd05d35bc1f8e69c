package llm

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/satriahrh/medicinal/domain/entities"
	"github.com/satriahrh/medicinal/domain/repositories"
)

// StreamReply streams the assistant's answer to message given the prior
// turns. Streams are not retried: a failure ends the channel with an Err delta.
func (g *Gemini) StreamReply(ctx context.Context, history []entities.ChatMessage, message string, useThinking bool) (<-chan repositories.ChatDelta, error) {
	if strings.TrimSpace(message) == "" {
		return nil, fmt.Errorf("message cannot be empty")
	}

	contents := convertHistoryToGeminiFormat(history)
	contents = append(contents, genai.NewContentFromText(message, genai.RoleUser))

	config := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(chatSystemInstruction, genai.RoleUser),
	}
	if useThinking {
		config.ThinkingConfig = &genai.ThinkingConfig{
			IncludeThoughts: true,
			ThinkingBudget:  genai.Ptr(g.thinkingBudget),
		}
	}

	g.logger.Info("Streaming chat reply",
		zap.String("model", g.chatModel),
		zap.Int("history_length", len(history)),
		zap.Bool("thinking", useThinking))

	deltas := make(chan repositories.ChatDelta, 16)
	go func() {
		defer close(deltas)

		ctx, cancel := context.WithTimeout(ctx, g.timeout)
		defer cancel()

		send := func(d repositories.ChatDelta) bool {
			select {
			case deltas <- d:
				return true
			case <-ctx.Done():
				return false
			}
		}

		chunks := 0
		for response, err := range g.client.Models.GenerateContentStream(ctx, g.chatModel, contents, config) {
			if err != nil {
				g.logger.Error("Chat stream failed", zap.Int("chunks", chunks), zap.Error(err))
				send(repositories.ChatDelta{Err: fmt.Errorf("chat stream failed: %w", err)})
				return
			}
			for _, d := range deltasFromResponse(response) {
				if !send(d) {
					return
				}
			}
			chunks++
		}
		g.logger.Debug("Chat stream finished", zap.Int("chunks", chunks))
	}()

	return deltas, nil
}

func deltasFromResponse(response *genai.GenerateContentResponse) []repositories.ChatDelta {
	if response == nil || len(response.Candidates) == 0 || response.Candidates[0].Content == nil {
		return nil
	}
	var out []repositories.ChatDelta
	for _, part := range response.Candidates[0].Content.Parts {
		if part == nil || part.Text == "" {
			continue
		}
		out = append(out, repositories.ChatDelta{Text: part.Text, Thought: part.Thought})
	}
	return out
}

// convertHistoryToGeminiFormat converts conversation turns to Gemini contents
func convertHistoryToGeminiFormat(messages []entities.ChatMessage) []*genai.Content {
	var contents []*genai.Content

	for _, msg := range messages {
		if strings.TrimSpace(msg.Text) == "" {
			continue
		}

		var role genai.Role
		switch msg.Role {
		case entities.MessageRoleAssistant:
			role = genai.RoleModel
		default:
			role = genai.RoleUser
		}

		contents = append(contents, genai.NewContentFromText(msg.Text, role))
	}

	return contents
}
