package compliance

import (
	"fmt"
	"strings"
)

// DisclaimerLevel represents the verbosity of the disclaimer.
type DisclaimerLevel string

const (
	// DisclaimerShort is the shortest disclaimer.
	DisclaimerShort DisclaimerLevel = "short"
	// DisclaimerFull is the product-level disclaimer.
	DisclaimerFull DisclaimerLevel = "full"
)

// Disclaimer templates
const (
	disclaimerShortText = "Informational only. Not medical advice."

	disclaimerFullText = "ClearHealth AI is an informational tool and does not provide medical diagnosis. " +
		"Always consult a qualified healthcare professional."
)

// Text returns the disclaimer for the given level.
func Text(level DisclaimerLevel) string {
	if level == DisclaimerFull {
		return disclaimerFullText
	}
	return disclaimerShortText
}

// Append adds the disclaimer to a message unless it already carries one.
func Append(message string, level DisclaimerLevel) string {
	disclaimer := Text(level)
	if strings.Contains(message, disclaimer) {
		return message
	}
	return fmt.Sprintf("%s\n\n%s", strings.TrimSpace(message), disclaimer)
}
