package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/satriahrh/medicinal/domain/entities"
)

// AnalyzeImage asks the vision model to read a medicine package.
func (g *Gemini) AnalyzeImage(ctx context.Context, image []byte, mimeType string) (*entities.MedicineDetails, error) {
	if len(image) == 0 {
		return nil, fmt.Errorf("image cannot be empty")
	}
	if mimeType == "" {
		mimeType = "image/jpeg"
	}

	contents := []*genai.Content{
		genai.NewContentFromParts([]*genai.Part{
			genai.NewPartFromBytes(image, mimeType),
			genai.NewPartFromText(pharmacistPrompt),
		}, genai.RoleUser),
	}
	config := &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		ResponseSchema:   medicineSchema,
	}

	g.logger.Info("Analyzing medicine image",
		zap.String("model", g.visionModel),
		zap.String("mimeType", mimeType),
		zap.Int("size", len(image)))

	response, err := g.generate(ctx, g.visionModel, contents, config)
	if err != nil {
		return nil, fmt.Errorf("failed to analyze image: %w", err)
	}

	details, err := parseMedicineDetails(response.Text())
	if err != nil {
		g.logger.Warn("Vision output rejected", zap.Error(err))
		return nil, err
	}
	return details, nil
}

// parseMedicineDetails decodes and validates the model's JSON output.
func parseMedicineDetails(text string) (*entities.MedicineDetails, error) {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, fmt.Errorf("empty model output")
	}

	var details entities.MedicineDetails
	if err := json.Unmarshal([]byte(text), &details); err != nil {
		return nil, fmt.Errorf("failed to parse medicine details: %w", err)
	}
	if err := details.Validate(); err != nil {
		return nil, fmt.Errorf("invalid medicine details: %w", err)
	}
	return &details, nil
}
