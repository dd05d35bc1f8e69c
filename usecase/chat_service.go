package usecase

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/satriahrh/medicinal/domain"
	"github.com/satriahrh/medicinal/domain/entities"
	"github.com/satriahrh/medicinal/domain/repositories"
)

// ChatService handles conversation logic
type ChatService struct {
	chat   repositories.DoctorChat
	logger *zap.Logger
}

// NewChatService creates a new chat service
func NewChatService(chat repositories.DoctorChat, logger *zap.Logger) *ChatService {
	return &ChatService{chat: chat, logger: logger}
}

// Reply appends the user turn and an in-flight assistant turn to conv, then
// consumes one reply stream into the assistant turn. onDelta, when set, is
// called with every visible text delta as it arrives.
//
// On failure the in-flight assistant turn is removed again and the error
// wraps domain.ErrCapabilityCallFailed. The user turn stays.
func (s *ChatService) Reply(ctx context.Context, conv *entities.Conversation, message string, useThinking bool, onDelta func(string)) (entities.ChatMessage, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return entities.ChatMessage{}, fmt.Errorf("%w: message is empty", domain.ErrInvalidInput)
	}

	history := make([]entities.ChatMessage, len(conv.Messages))
	copy(history, conv.Messages)

	conv.Append(entities.NewChatMessage(entities.MessageRoleUser, message))
	assistant := entities.NewChatMessage(entities.MessageRoleAssistant, "")
	assistant.IsThinking = useThinking
	conv.Append(assistant)

	fail := func(err error) (entities.ChatMessage, error) {
		conv.Remove(assistant.ID)
		s.logger.Error("Chat reply failed", zap.String("messageID", assistant.ID), zap.Error(err))
		return entities.ChatMessage{}, fmt.Errorf("%w: %w", domain.ErrCapabilityCallFailed, err)
	}

	deltas, err := s.chat.StreamReply(ctx, history, message, useThinking)
	if err != nil {
		return fail(err)
	}

	thoughts := 0
	for d := range deltas {
		if d.Err != nil {
			return fail(d.Err)
		}
		if d.Thought {
			thoughts++
			continue
		}
		conv.AppendText(assistant.ID, d.Text)
		if onDelta != nil {
			onDelta(d.Text)
		}
	}
	if err := ctx.Err(); err != nil {
		return fail(err)
	}

	// A reply made only of thoughts still ends the thinking phase.
	conv.AppendText(assistant.ID, "")
	reply, _ := conv.Get(assistant.ID)

	s.logger.Info("Chat reply completed",
		zap.String("messageID", reply.ID),
		zap.Int("length", len(reply.Text)),
		zap.Int("thoughts", thoughts))
	return reply, nil
}
