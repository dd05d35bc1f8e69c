package llm

import (
	"fmt"

	"google.golang.org/genai"

	"github.com/satriahrh/medicinal/domain/entities"
)

const pharmacistPrompt = `Analyze this medicine image carefully. Act as a professional pharmacist.
Extract the following details:
- Brand Name
- Generic Name / Composition
- Purpose (What is it used for?)
- General Dosage Instructions (if visible or standard knowledge)
- Key Side Effects (Common)
- Warnings & Precautions
- Manufacturer (if visible)
- Expiry Date (if visible)

If text is blurry, infer from distinct packaging features if possible, but mark confidence lower.
Return the result as JSON.`

const chatSystemInstruction = "You are Medicinal AI, a professional, safe, and helpful AI Doctor assistant. " +
	"You do not provide diagnosis, but you explain medicines, interactions, and general health advice clearly. " +
	"Always include a disclaimer for serious symptoms."

// LiveSystemInstruction is the persona of the voice assistant.
const LiveSystemInstruction = "You are Medicinal AI's Voice Assistant. Speak clearly, professionally, and concisely about medicine."

const (
	noSearchResultText   = "No information found."
	noFacilityResultText = "Could not find locations."
)

func facilitiesPrompt(category entities.FacilityCategory) string {
	return fmt.Sprintf("Find the best 5 %ss near me. Rank them by rating and distance. Provide a summary list.", category)
}

// medicineSchema mirrors entities.MedicineDetails.
var medicineSchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"name":         {Type: genai.TypeString},
		"genericName":  {Type: genai.TypeString},
		"purpose":      {Type: genai.TypeString},
		"dosage":       {Type: genai.TypeString},
		"sideEffects":  {Type: genai.TypeArray, Items: &genai.Schema{Type: genai.TypeString}},
		"warnings":     {Type: genai.TypeArray, Items: &genai.Schema{Type: genai.TypeString}},
		"manufacturer": {Type: genai.TypeString},
		"expiryDate":   {Type: genai.TypeString},
		"confidenceScore": {
			Type:        genai.TypeNumber,
			Description: "Confidence score between 0 and 1",
		},
	},
	Required: []string{"name", "purpose", "sideEffects", "warnings"},
}
