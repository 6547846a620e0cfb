package gateway

import (
	"encoding/json"
	"fmt"
)

const analysisSystemInstruction = "You are an advanced medical AI assistant. Your goal is to demystify medical data. " +
	"You are NOT a doctor. You must be accurate, conservative in your assessment, and always prioritize " +
	"patient safety by recommending professional consultation. Use simple language."

const documentAnalysisPrompt = "Analyze this medical document. It could be a lab report, doctor's note, or clinical summary. " +
	"Extract key biomarkers, identify abnormalities, and explain them in simple layman's terms. " +
	"Cross-reference values to provide a synthesized insight."

const symptomPhotoAnalysisPrompt = "Analyze this image of a physical symptom. Describe the visual characteristics, " +
	"suggest potential causes (informational only), and recommend whether immediate medical attention " +
	"might be needed. Be empathetic but objective."

const chatSystemTemplate = "You are a helpful medical assistant. %s Keep answers concise and helpful. " +
	"Always remind the user to see a doctor for diagnosis."

const generalChatContext = "User is asking general medical health questions."

const speechPreamble = "Here is your Clear Health summary. "

func analysisPrompt(mode AnalysisMode) string {
	if mode == ModeSymptomPhotoAnalysis {
		return symptomPhotoAnalysisPrompt
	}
	return documentAnalysisPrompt
}

func chatSystemInstruction(analysisContext *AnalysisResult) string {
	if analysisContext == nil {
		return fmt.Sprintf(chatSystemTemplate, generalChatContext)
	}
	encoded, err := json.Marshal(analysisContext)
	if err != nil {
		// Marshal of a plain struct cannot realistically fail; keep the
		// general guidance rather than abort the turn.
		return fmt.Sprintf(chatSystemTemplate, generalChatContext)
	}
	contextText := fmt.Sprintf("Current Analysis Context: %s. User is asking follow-up questions about this analysis.", encoded)
	return fmt.Sprintf(chatSystemTemplate, contextText)
}

func specialistPrompt(medicalContext string) string {
	return fmt.Sprintf("Based on this medical context: %q, identify the most appropriate type of medical specialist "+
		"(e.g., Cardiologist, Dermatologist, General Practitioner) and find 3 top-rated ones near the user's location. "+
		"Return a list with their names and ratings.", medicalContext)
}
