package note

import "strings"

type AssistantState string

const (
	AssistantIdle       AssistantState = "idle"
	AssistantProcessing AssistantState = "processing"
)

// RequestSource records where a full-note instruction came from.
type RequestSource string

const (
	SourcePreset RequestSource = "preset"
	SourceDraft  RequestSource = "draft"
)

// Preset is a fixed full-note instruction.
type Preset struct {
	ID          string `json:"id"`
	Label       string `json:"label"`
	Instruction string `json:"instruction"`
}

// Presets are offered in this order.
var Presets = []Preset{
	{
		ID:          "concise",
		Label:       "Make it concise",
		Instruction: "Make the note more concise and pithy without losing clinical facts.",
	},
	{
		ID:          "missing-details",
		Label:       "Detail check",
		Instruction: "Analyze the original JSON data and checking if any clinical details are missing in the current draft. Flag them or add them if the data allows.",
	},
	{
		ID:          "grammar",
		Label:       "Grammar check",
		Instruction: "Carefully check for grammar, prepositions, and article usage. Ensure formal academic medical tone.",
	},
}

// PresetByID looks up a preset.
func PresetByID(id string) (Preset, bool) {
	for _, p := range Presets {
		if p.ID == id {
			return p, true
		}
	}
	return Preset{}, false
}

// AssistantController guards whole-note refinements and owns the free-text
// instruction field. Like SelectionController it relies on the session for
// locking.
type AssistantController struct {
	state   AssistantState
	draft   string
	pending RequestSource
}

func NewAssistantController() *AssistantController {
	return &AssistantController{state: AssistantIdle}
}

func (c *AssistantController) State() AssistantState { return c.state }

func (c *AssistantController) Draft() string { return c.draft }

// SetDraft updates the free-text field. Typing is allowed while a request is
// processing.
func (c *AssistantController) SetDraft(s string) {
	c.draft = s
}

// Begin moves to Processing. A draft request without an explicit instruction
// uses the free-text field.
func (c *AssistantController) Begin(source RequestSource, instruction string) (string, error) {
	if c.state == AssistantProcessing {
		return "", ErrBusy
	}
	if source == SourceDraft && instruction == "" {
		instruction = c.draft
	}
	if strings.TrimSpace(instruction) == "" {
		return "", ErrEmptyInstruction
	}
	c.state = AssistantProcessing
	c.pending = source
	return instruction, nil
}

// Complete returns to Idle, clearing the free-text field when it was the
// origin of the request.
func (c *AssistantController) Complete() {
	if c.state != AssistantProcessing {
		return
	}
	if c.pending == SourceDraft {
		c.draft = ""
	}
	c.state = AssistantIdle
	c.pending = ""
}

// Fail returns to Idle and leaves the free-text field as it was.
func (c *AssistantController) Fail() {
	c.state = AssistantIdle
	c.pending = ""
}
