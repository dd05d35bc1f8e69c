package live

import (
	"encoding/base64"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"github.com/satriahrh/medicinal/domain"
	"github.com/satriahrh/medicinal/domain/entities"
	"github.com/satriahrh/medicinal/domain/repositories"
)

func newConnectConfig(config repositories.LiveConfig) *genai.LiveConnectConfig {
	connect := &genai.LiveConnectConfig{
		ResponseModalities: []genai.Modality{genai.ModalityAudio},
	}
	if config.Voice != "" {
		connect.SpeechConfig = &genai.SpeechConfig{
			VoiceConfig: &genai.VoiceConfig{
				PrebuiltVoiceConfig: &genai.PrebuiltVoiceConfig{VoiceName: config.Voice},
			},
		}
	}
	if config.SystemInstruction != "" {
		connect.SystemInstruction = &genai.Content{
			Parts: []*genai.Part{{Text: config.SystemInstruction}},
		}
	}
	return connect
}

// newAudioInput wraps one capture frame in the realtime audio field.
func newAudioInput(payload entities.EncodedAudioPayload) (genai.LiveRealtimeInput, error) {
	raw, err := base64.StdEncoding.DecodeString(payload.Data)
	if err != nil {
		return genai.LiveRealtimeInput{}, fmt.Errorf("%w: %v", domain.ErrDecode, err)
	}
	return genai.LiveRealtimeInput{
		Audio: &genai.Blob{MIMEType: payload.MIMEType, Data: raw},
	}, nil
}

// toLiveMessage keeps the audio parts of a server message and drops text or
// tool parts.
func toLiveMessage(msg *genai.LiveServerMessage) *repositories.LiveMessage {
	out := &repositories.LiveMessage{
		SetupComplete: msg.SetupComplete != nil,
		GoAway:        msg.GoAway != nil,
	}
	if sc := msg.ServerContent; sc != nil {
		out.TurnComplete = sc.TurnComplete
		out.Interrupted = sc.Interrupted
		if sc.ModelTurn != nil {
			for _, p := range sc.ModelTurn.Parts {
				if p == nil || p.InlineData == nil || !strings.HasPrefix(p.InlineData.MIMEType, "audio/") {
					continue
				}
				out.Audio = append(out.Audio, entities.EncodedAudioPayload{
					MIMEType: p.InlineData.MIMEType,
					Data:     base64.StdEncoding.EncodeToString(p.InlineData.Data),
				})
			}
		}
	}
	return out
}
