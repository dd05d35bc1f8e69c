package entities

import "testing"

func TestChatMessage_Validate(t *testing.T) {
	tests := []struct {
		name    string
		role    MessageRole
		wantErr bool
	}{
		{"user", MessageRoleUser, false},
		{"assistant", MessageRoleAssistant, false},
		{"system", MessageRole("system"), true},
		{"empty", MessageRole(""), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := NewChatMessage(tt.role, "text").Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestConversation(t *testing.T) {
	history := []ChatMessage{NewChatMessage(MessageRoleUser, "hi")}
	conv := NewConversation(history)
	history[0].Text = "changed"
	if conv.Messages[0].Text != "hi" {
		t.Error("Conversation should copy its seed history")
	}

	reply := NewChatMessage(MessageRoleAssistant, "")
	reply.IsThinking = true
	conv.Append(reply)

	if !conv.AppendText(reply.ID, "Hello") || !conv.AppendText(reply.ID, " there") {
		t.Fatal("AppendText did not find the message")
	}
	got, ok := conv.Get(reply.ID)
	if !ok || got.Text != "Hello there" {
		t.Errorf("Unexpected message %+v", got)
	}
	if got.IsThinking {
		t.Error("AppendText should clear the thinking flag")
	}
	if conv.Messages[0].Text != "hi" {
		t.Error("Other messages must not change")
	}

	if conv.AppendText("missing", "x") {
		t.Error("AppendText should report a missing id")
	}

	conv.Remove(reply.ID)
	if _, ok := conv.Get(reply.ID); ok || len(conv.Messages) != 1 {
		t.Errorf("Remove failed, %d messages left", len(conv.Messages))
	}
}
