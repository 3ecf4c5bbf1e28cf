// Package verify confirms or rejects satellite detections by showing the
// before/after image chips to a vision model and asking for a verdict.
package verify

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/bkd-mataram/padscan/internal/detect"
	"github.com/bkd-mataram/padscan/pkg/anthropic"
)

const (
	// DefaultModel is the vision model used for chip-pair verification.
	DefaultModel = "claude-sonnet-4-5"

	// DefaultMaxTokens bounds the verdict reply; a verdict is one small
	// JSON object.
	DefaultMaxTokens = 1024

	// verifiedThreshold mirrors the change detector's accept point: a
	// verdict counts as confirmed only above this confidence.
	verifiedThreshold = 0.5
)

const systemPrompt = `You are a remote-sensing analyst reviewing change detections for a municipal tax office in Mataram, Indonesia. You are shown one or two satellite image chips of the same site. Decide whether the claimed change or feature is genuinely present. Respond with a single JSON object: {"verified": bool, "confidence": number between 0 and 1, "label": short description of what you see}. No other text.`

// Verifier validates detections against their image chips.
type Verifier struct {
	client    anthropic.Client
	model     string
	maxTokens int64
	log       *zap.Logger
}

// New builds a Verifier backed by the given Anthropic client. Zero values fall
// back to DefaultModel and DefaultMaxTokens.
func New(client anthropic.Client, model string, maxTokens int64) *Verifier {
	if model == "" {
		model = DefaultModel
	}
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}
	return &Verifier{client: client, model: model, maxTokens: maxTokens, log: zap.L().Named("verify")}
}

// verdict is the JSON shape the model is instructed to return.
type verdict struct {
	Verified   bool    `json:"verified"`
	Confidence float64 `json:"confidence"`
	Label      string  `json:"label"`
}

// Verify sends the chip pair for one detection and returns the model's
// validation. chipAfter may be nil for single-image checks. On any backend or
// parse failure the validation is nil and the error wrapped: the detection
// stays unverified rather than being marked as a confident rejection.
func (v *Verifier) Verify(ctx context.Context, d detect.Detection, chipBefore, chipAfter []byte) (*detect.Validation, error) {
	if len(chipBefore) == 0 {
		return nil, eris.New("verify: no image chip for detection")
	}

	meta := d.Meta()
	blocks := []anthropic.Block{
		anthropic.ImageBlock("image/png", base64.StdEncoding.EncodeToString(chipBefore)),
	}
	prompt := "Is there a real detectable feature at this site matching the claim below?"
	if len(chipAfter) > 0 {
		blocks = append(blocks, anthropic.ImageBlock("image/png", base64.StdEncoding.EncodeToString(chipAfter)))
		prompt = "The first chip is the earlier date, the second the later. Did the claimed change actually occur?"
	}
	blocks = append(blocks, anthropic.Block{Text: prompt + "\n\nClaim: " + describe(d) + "\nDetection ID: " + meta.ID})

	resp, err := v.client.CreateMessage(ctx, anthropic.MessageRequest{
		Model:     v.model,
		MaxTokens: v.maxTokens,
		System:    systemPrompt,
		Messages:  []anthropic.Message{{Role: "user", Blocks: blocks}},
	})
	if err != nil {
		return nil, eris.Wrapf(err, "verify: detection %s", meta.ID)
	}
	resp.Usage.Log(v.model, "verify")

	var out verdict
	if err := json.Unmarshal([]byte(extractJSON(resp.Text)), &out); err != nil {
		return nil, eris.Wrapf(err, "verify: unparseable verdict for %s", meta.ID)
	}
	if out.Confidence < 0 {
		out.Confidence = 0
	}
	if out.Confidence > 1 {
		out.Confidence = 1
	}

	val := &detect.Validation{
		Verified:   out.Verified && out.Confidence > verifiedThreshold,
		Confidence: out.Confidence,
		Label:      out.Label,
		Model:      v.model,
	}
	v.log.Info("verdict",
		zap.String("id", meta.ID),
		zap.Bool("verified", val.Verified),
		zap.Float64("confidence", val.Confidence),
	)
	return val, nil
}

// VerifyAll runs Verify over a slice of detections, attaching validations in
// place. Failures are logged and skipped so one bad chip does not abort the
// batch; the count of successful verdicts is returned.
func (v *Verifier) VerifyAll(ctx context.Context, ds []detect.Detection, chips ChipSource) (int, error) {
	var done int
	for _, d := range ds {
		if err := ctx.Err(); err != nil {
			return done, eris.Wrap(err, "verify: batch interrupted")
		}
		before, after, err := chips.Chips(ctx, d)
		if err != nil {
			v.log.Warn("chip fetch failed", zap.String("id", d.Meta().ID), zap.Error(err))
			continue
		}
		val, err := v.Verify(ctx, d, before, after)
		if err != nil {
			v.log.Warn("verification failed", zap.String("id", d.Meta().ID), zap.Error(err))
			continue
		}
		d.Meta().Validation = val
		done++
	}
	return done, nil
}

// ChipSource supplies the before/after image chips for a detection. The after
// chip may be nil when only a single date is relevant.
type ChipSource interface {
	Chips(ctx context.Context, d detect.Detection) (before, after []byte, err error)
}

func describe(d detect.Detection) string {
	switch t := d.(type) {
	case *detect.Parking:
		return "a " + t.Type + " parking area of roughly " + formatArea(t.Meta().AreaM2)
	case *detect.LandChange:
		return "land cover changed from " + t.FromClass + " to " + t.ToClass + " over " + formatArea(t.Meta().AreaM2)
	case *detect.BuildingChange:
		return "a building expansion of " + formatArea(t.AreaAfterM2-t.AreaBeforeM2)
	default:
		return "a detected feature of " + formatArea(d.Meta().AreaM2)
	}
}

func formatArea(m2 float64) string {
	return fmt.Sprintf("%.0f m2", m2)
}

// extractJSON pulls the first {...} object out of a model reply, tolerating
// markdown fences or stray prose around it.
func extractJSON(s string) string {
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end < start {
		return s
	}
	return s[start : end+1]
}
