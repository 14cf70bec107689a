package generation

import (
	"encoding/json"
	"fmt"
	"strings"
)

func marshalPayload(payload any) (string, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

const fullRefineTemplate = `You are a medical scribe assistant.
ORIGINAL DATA SOURCE (JSON): %s

CURRENT MEDICAL NOTE DRAFT:
"""
%s
"""

USER REFINEMENT INSTRUCTION:
"%s"

CRITICAL RULES:
1. PRIORITY: Adhere to user instructions while maintaining the facts in the ORIGINAL DATA SOURCE.
2. CONSISTENCY: Maintain all formatting rules (Vitals order, "denied" list, etc.) from the system instructions.
3. OUTPUT: Provide ONLY the full updated medical note. No conversational filler.
`

const segmentRefineTemplate = `You are a medical scribe assistant.
ORIGINAL DATA SOURCE (JSON): %s

CURRENT FULL NOTE:
"""
%s
"""

The user wants to rewrite the following SPECIFIC SEGMENT:
"--- %s ---"

USER INSTRUCTION FOR THIS SEGMENT:
"%s"

CRITICAL RULES:
1. PRIORITY: User instructions are the highest priority. If the user asks to change the format or tone for this segment, follow it exactly.
2. MEDICAL STANDARDS: Unless the user explicitly asks to break medical conventions, maintain the standards defined in the original system instructions (e.g., Vitals order, forbidden abbreviations, academic tone).
3. SCOPE: ONLY rewrite the selected segment. Do not change parts of the note outside of this segment.
4. OUTPUT: Provide ONLY the new rewritten text for that segment. Do not include any explanations or conversational filler.
`

// FullRefinePrompt builds the whole-document rewrite prompt.
func FullRefinePrompt(payloadJSON, currentNote, instruction string) string {
	return fmt.Sprintf(fullRefineTemplate, payloadJSON, currentNote, strings.TrimSpace(instruction))
}

// SegmentRefinePrompt builds the prompt that asks for a replacement of one
// segment only.
func SegmentRefinePrompt(payloadJSON, fullNote, segment, instruction string) string {
	return fmt.Sprintf(segmentRefineTemplate, payloadJSON, fullNote, segment, strings.TrimSpace(instruction))
}
