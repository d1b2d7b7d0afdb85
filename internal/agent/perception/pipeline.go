// internal/agent/perception/pipeline.go

// Package perception is the screenshot-only VLM pipeline: scene captioning,
// element grounding, and before/after state verification. It never touches
// the DOM; pixels are the only input.
package perception

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/varga-labs/sherpa-cli/api/schemas"
	"github.com/varga-labs/sherpa-cli/internal/llmutil"
)

const (
	sceneTimeout  = 20 * time.Second
	groundTimeout = 20 * time.Second
	verifyTimeout = 30 * time.Second

	// groundPad widens the medium-confidence crop so the element survives
	// a slightly wrong first box.
	groundPad = 0.20
)

var verdictRe = regexp.MustCompile(`(?i)VERDICT:\s*(success|failed)`)

// Pipeline runs the perception tiers against the configured model client.
type Pipeline struct {
	llm    schemas.LLMClient
	logger *zap.Logger
}

func NewPipeline(llm schemas.LLMClient, logger *zap.Logger) *Pipeline {
	return &Pipeline{llm: llm, logger: logger.Named("perception")}
}

// PerceiveScene produces a dense caption of the screenshot for the action
// model's context. Any failure returns "" so a caption miss never blocks
// the step.
func (p *Pipeline) PerceiveScene(ctx context.Context, screenshot []byte) string {
	if len(screenshot) == 0 {
		return ""
	}
	ctx, cancel := context.WithTimeout(ctx, sceneTimeout)
	defer cancel()

	prompt := "Provide a dense caption of this GUI screenshot. Include:\n" +
		"(a) overall layout and structure,\n" +
		"(b) main regions (header, sidebar, content area, footer),\n" +
		"(c) key interactive elements and their spatial relationships,\n" +
		"(d) any embedded images, icons, or badges and their apparent roles.\n" +
		"Be comprehensive but do not hallucinate elements that are not clearly visible."

	text, err := p.llm.Generate(ctx, schemas.GenerationRequest{
		Tier: schemas.TierFast,
		Parts: []schemas.Part{
			schemas.TextPart(prompt),
			schemas.ImagePart(Compress(screenshot, DefaultMaxDim)),
		},
		Options: schemas.GenerationOptions{
			Temperature:     0.2,
			MaxOutputTokens: 384,
			MediaDetail:     schemas.MediaDetailMedium,
		},
	})
	if err != nil {
		p.logger.Warn("Scene captioning failed", zap.Error(err))
		return ""
	}
	return strings.TrimSpace(text)
}

// GroundElement locates a described UI element, returning its center and
// box in normalized 0-1000 space. Returns nil on any failure; the caller
// falls back to the model's own coordinates.
func (p *Pipeline) GroundElement(ctx context.Context, screenshot []byte, description string) *schemas.ElementLocation {
	if len(screenshot) == 0 || description == "" {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, groundTimeout)
	defer cancel()

	prompt := fmt.Sprintf(
		"Locate the following UI element in the screenshot:\n'%s'\n\n"+
			"Return a JSON object with fields center_x, center_y, box_2d, label, confidence.\n"+
			"All coordinates are normalized 0-1000 where (0,0) is the top-left corner "+
			"and (1000,1000) is the bottom-right corner.\n"+
			"Set confidence to:\n"+
			"  'high'   - element is clearly visible and unambiguous\n"+
			"  'medium' - element is likely correct but partially obscured or ambiguous\n"+
			"  'low'    - element may not be visible; coordinates are estimated\n"+
			"box_2d format: [y_min, x_min, y_max, x_max] - all values 0-1000.",
		description)

	text, err := p.llm.Generate(ctx, schemas.GenerationRequest{
		Tier: schemas.TierFast,
		Parts: []schemas.Part{
			schemas.TextPart(prompt),
			schemas.ImagePart(screenshot),
		},
		Options: schemas.GenerationOptions{
			Temperature:     0.1,
			MaxOutputTokens: 128,
			ForceJSONFormat: true,
			MediaDetail:     schemas.MediaDetailHigh,
		},
	})
	if err != nil {
		p.logger.Warn("Element grounding failed",
			zap.String("description", llmutil.Truncate(description, 60)), zap.Error(err))
		return nil
	}

	loc, err := llmutil.ParseJSONResponse[schemas.ElementLocation](text)
	if err != nil {
		p.logger.Warn("Unparseable grounding response", zap.Error(err))
		return nil
	}
	loc.CenterX = clampNorm(loc.CenterX)
	loc.CenterY = clampNorm(loc.CenterY)
	if loc.Confidence == "" {
		loc.Confidence = schemas.ConfidenceLow
	}
	return loc
}

// ZoomAndReground crops to the first grounding's box plus padding and
// re-grounds inside the crop at full detail, mapping the result back to
// full-image coordinates. Call only on medium confidence: high does not
// need it and low means the box itself is suspect. Returns nil on failure
// so the caller keeps the previous location.
func (p *Pipeline) ZoomAndReground(ctx context.Context, screenshot []byte, box []int, description string) *schemas.ElementLocation {
	cropBytes, region, err := cropPadded(screenshot, box, groundPad)
	if err != nil {
		p.logger.Warn("Zoom crop failed", zap.Error(err))
		return nil
	}

	sub := p.GroundElement(ctx, cropBytes, description)
	if sub == nil {
		return nil
	}

	cx, cy := region.mapToFull(sub.CenterX, sub.CenterY)
	return &schemas.ElementLocation{
		CenterX:    cx,
		CenterY:    cy,
		Box2D:      region.mapBoxToFull(sub.Box2D),
		Label:      sub.Label,
		Confidence: sub.Confidence,
	}
}

// VerifyTransition compares before/after screenshots against the expected
// outcome. It returns a one-line description and the verdict. Verification
// fails open: an unreachable or unparseable verdict counts as success so a
// flaky check never dooms a step that actually worked.
func (p *Pipeline) VerifyTransition(ctx context.Context, before, after []byte, actionStr, expectedOutcome string) (string, bool) {
	ctx, cancel := context.WithTimeout(ctx, verifyTimeout)
	defer cancel()

	// Both frames get downscaled; do the resizes concurrently.
	var beforeSmall, afterSmall []byte
	var g errgroup.Group
	g.Go(func() error { beforeSmall = Compress(before, VerifyMaxDim); return nil })
	g.Go(func() error { afterSmall = Compress(after, VerifyMaxDim); return nil })
	_ = g.Wait()

	text, err := p.llm.Generate(ctx, schemas.GenerationRequest{
		Tier: schemas.TierFast,
		Parts: []schemas.Part{
			schemas.TextPart(stateTransitionPrompt(actionStr, expectedOutcome)),
			schemas.TextPart("BEFORE screenshot:"),
			schemas.ImagePart(beforeSmall),
			schemas.TextPart("AFTER screenshot:"),
			schemas.ImagePart(afterSmall),
		},
		Options: schemas.GenerationOptions{
			Temperature:     0.0,
			MaxOutputTokens: 128,
			MediaDetail:     schemas.MediaDetailLow,
		},
	})
	if err != nil {
		p.logger.Warn("State verification unavailable", zap.Error(err))
		return "Verification unavailable", true
	}

	description := strings.TrimSpace(text)
	if description == "" {
		description = "No change detected"
	}
	return description, ParseVerdict(description)
}

// ParseVerdict extracts the final VERDICT line. Missing or malformed
// verdicts count as success.
func ParseVerdict(text string) bool {
	m := verdictRe.FindStringSubmatch(text)
	if m == nil {
		return true
	}
	return strings.EqualFold(m[1], "success")
}

func stateTransitionPrompt(actionStr, expectedOutcome string) string {
	var b strings.Builder
	b.WriteString("Compare the BEFORE and AFTER screenshots of a UI to determine if the last action succeeded.\n\n")
	if actionStr != "" {
		fmt.Fprintf(&b, "Action taken: %s\n", actionStr)
	}
	if expectedOutcome != "" {
		fmt.Fprintf(&b, "Expected outcome: %s\n", expectedOutcome)
	}
	b.WriteString("\nRespond in this exact format - no other text after the VERDICT line:\n\n" +
		"DESCRIPTION: <one sentence describing what changed or did not change>\n" +
		"VERDICT: success\n\n" +
		"OR:\n\n" +
		"DESCRIPTION: <one sentence describing what changed or did not change>\n" +
		"VERDICT: failed\n\n" +
		"Rules:\n" +
		"- VERDICT: success - the UI changed meaningfully in the expected direction\n" +
		"- VERDICT: failed - the screenshots are identical or the change is unrelated to the intended action\n" +
		"- You MUST output the VERDICT line. It MUST be the last line of your response.\n" +
		"- Do NOT add any text after the VERDICT line.")
	return b.String()
}
