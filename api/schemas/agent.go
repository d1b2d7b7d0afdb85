// api/schemas/agent.go
package schemas

import "context"

// ModelTier selects between the cheap, fast perception model and the more
// capable action-selection model.
type ModelTier string

const (
	TierFast     ModelTier = "fast"
	TierPowerful ModelTier = "powerful"
)

// MediaDetail hints the vision resolution for image parts. Lower detail is
// cheaper; grounding needs full detail, verification does not.
type MediaDetail string

const (
	MediaDetailLow    MediaDetail = "low"
	MediaDetailMedium MediaDetail = "medium"
	MediaDetailHigh   MediaDetail = "high"
)

// Part is one element of a generation request: either text or a JPEG image.
// Image takes precedence when non-nil.
type Part struct {
	Text  string
	Image []byte
}

// TextPart builds a text part.
func TextPart(s string) Part { return Part{Text: s} }

// ImagePart builds an image part from JPEG bytes.
func ImagePart(b []byte) Part { return Part{Image: b} }

// GenerationOptions tunes a single model call.
type GenerationOptions struct {
	Temperature     float32
	MaxOutputTokens int32
	ForceJSONFormat bool
	MediaDetail     MediaDetail
	// CachedContent is an opaque context-cache handle for the system prompt.
	// When set, SystemPrompt is ignored by clients that support caching.
	CachedContent string
}

// GenerationRequest is a single multimodal model call.
type GenerationRequest struct {
	Tier ModelTier
	// Model overrides the tier's configured model when non-empty (used for
	// the resolved fine-tuned action model).
	Model        string
	SystemPrompt string
	Parts        []Part
	Options      GenerationOptions
}

// LLMClient is the narrow contract the agent loop has with a
// vision-language model endpoint.
type LLMClient interface {
	Generate(ctx context.Context, req GenerationRequest) (string, error)
}

// Confidence grades a grounding result. Low-confidence coordinates must not
// be trusted.
type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

// ElementLocation is the structured result of element grounding. All
// coordinates are in the normalized 0-1000 space; Box2D is
// [y_min, x_min, y_max, x_max].
type ElementLocation struct {
	CenterX    int        `json:"center_x"`
	CenterY    int        `json:"center_y"`
	Box2D      []int      `json:"box_2d"`
	Label      string     `json:"label"`
	Confidence Confidence `json:"confidence"`
}
