package models

// CommentStyle is the comment syntax requested from the model.
type CommentStyle string

const (
	StyleSingleLine CommentStyle = "single-line"
	StyleMultiLine  CommentStyle = "multi-line"
	StyleDocstring  CommentStyle = "docstring"
)

// CommentStyles lists every recognized style in display order.
var CommentStyles = []CommentStyle{StyleSingleLine, StyleMultiLine, StyleDocstring}

// Creativity selects the sampling temperature of a generation.
type Creativity string

const (
	CreativityLow  Creativity = "low"
	CreativityHigh Creativity = "high"
)

// Temperature returns the sampling temperature for the creativity level.
// Unknown and empty levels fall back to low.
func (c Creativity) Temperature() float32 {
	if c == CreativityHigh {
		return 0.95
	}
	return 0.30
}

// PromptConfig holds the optional knobs applied when building a prompt.
type PromptConfig struct {
	Style      CommentStyle `json:"style,omitempty"`
	Language   string       `json:"language,omitempty"`
	Template   string       `json:"template,omitempty"`
	Preset     string       `json:"preset,omitempty"`
	Creativity Creativity   `json:"creativity,omitempty"`
}

// GenerateCommentRequest is the payload accepted by the comments endpoint.
type GenerateCommentRequest struct {
	Snippet   string `json:"snippet"`
	SessionID string `json:"session_id,omitempty"` // receives websocket progress events
	RequestID string `json:"-"`
	PromptConfig
}

// CommentResult is what a successful generation hands back to the caller.
type CommentResult struct {
	ID               string `json:"id"`
	Comment          string `json:"comment"`
	Model            string `json:"model"`
	FinishReason     string `json:"finish_reason,omitempty"`
	PromptTokens     int32  `json:"prompt_tokens,omitempty"`
	CandidatesTokens int32  `json:"candidates_tokens,omitempty"`
}

// StyleInfo describes the options the UI and API advertise.
type StyleInfo struct {
	Styles       []CommentStyle `json:"styles"`
	Creativities []Creativity   `json:"creativities"`
	Presets      []PresetInfo   `json:"presets"`
}

type PresetInfo struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}
