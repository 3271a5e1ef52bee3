package costtracker

// ModelPrice is a model's per-1k-token pricing, plus an optional flat
// per-image surcharge for vision calls.
type ModelPrice struct {
	InputPer1K  float64
	OutputPer1K float64
	PerImage    float64 // 0 means the model has no vision surcharge
}

// defaultModel is used when an unrecognized model is estimated; its pricing
// is the fallback, and the caller is warned.
const defaultModel = "claude-haiku-3-5-20241022"

// pricingTable mirrors the original's MODEL_PRICING dict, re-pointed at the
// two ModelClient backends this system actually wires (Claude, Gemini)
// instead of the original's OpenAI family.
var pricingTable = map[string]ModelPrice{
	"claude-opus-4-20250514": {
		InputPer1K:  0.015,
		OutputPer1K: 0.075,
		PerImage:    0.024,
	},
	"claude-sonnet-4-20250514": {
		InputPer1K:  0.003,
		OutputPer1K: 0.015,
		PerImage:    0.0048,
	},
	"claude-haiku-3-5-20241022": {
		InputPer1K:  0.0008,
		OutputPer1K: 0.004,
		PerImage:    0.0012,
	},
	"gemini-3-flash-preview": {
		InputPer1K:  0.00015,
		OutputPer1K: 0.0006,
		PerImage:    0.0006,
	},
	"gemini-2.0-flash": {
		InputPer1K:  0.0001,
		OutputPer1K: 0.0004,
		PerImage:    0.0004,
	},
}

// priceFor returns the pricing for model, falling back to defaultModel (and
// reporting the fallback) when the model is unrecognized.
func priceFor(model string) (ModelPrice, bool) {
	p, ok := pricingTable[model]
	if ok {
		return p, true
	}
	return pricingTable[defaultModel], false
}
