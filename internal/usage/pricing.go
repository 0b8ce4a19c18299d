package usage

import "errors"

// ErrNoPricing is returned when a served model has no price entry. The
// chat itself is not rolled back; accounting is best effort.
var ErrNoPricing = errors.New("no pricing for model")

// defaultPricing maps model identifiers to price per million streamed
// tokens in dollars. Read-only after initialization, safe for
// unsynchronized concurrent reads.
var defaultPricing = map[string]float64{
	"gpt-4o":                     10.0,
	"gpt-4o-mini":                0.6,
	"gpt-4-turbo":                30.0,
	"gpt-3.5-turbo":              1.5,
	"claude-3-5-sonnet-20240620": 15.0,
	"claude-3-opus-20240229":     75.0,
	"claude-3-haiku-20240307":    1.25,

	// Local models are free.
	"llama3.1:8b":  0.0,
	"llama3.1:70b": 0.0,
	"mistral:7b":   0.0,
}

// Cost computes the dollar cost of tokensUsed streamed tokens of model
// against a price table.
func Cost(pricing map[string]float64, model string, tokensUsed int) (float64, error) {
	perMillion, ok := pricing[model]
	if !ok {
		return 0, ErrNoPricing
	}
	return float64(tokensUsed) / 1_000_000 * perMillion, nil
}
