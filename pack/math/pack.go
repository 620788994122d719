// Package math provides arithmetic and text statistics tools.
package math

import (
	"context"
	"errors"
	stdmath "math"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/felixgeelhaar/toolhost/domain/pack"
	"github.com/felixgeelhaar/toolhost/domain/tool"
)

// Name is the pack name.
const Name = "math"

// New creates the math pack.
func New(pack.Env) (*pack.Pack, error) {
	return pack.NewBuilder(Name).
		WithDescription("Arithmetic and text statistics").
		WithVersion("1.0.0").
		AddTools(
			addNumbersTool(),
			compoundInterestTool(),
			analyzeTextTool(),
		).
		Build(), nil
}

func addNumbersTool() tool.Descriptor {
	return tool.NewBuilder("add_numbers").
		WithDescription("Add two numbers").
		Required("a", tool.TypeNumber, "First addend").
		Required("b", tool.TypeNumber, "Second addend").
		ReadOnly().
		Idempotent().
		WithHandler(func(_ context.Context, args tool.Arguments) (any, error) {
			return args.Float("a") + args.Float("b"), nil
		}).
		MustBuild()
}

// InterestResult is the output of calculate_compound_interest.
type InterestResult struct {
	FinalAmount float64 `json:"final_amount"`
	Interest    float64 `json:"interest"`
	Principal   float64 `json:"principal"`
	Rate        float64 `json:"rate"`
	Years       float64 `json:"years"`
	Frequency   int64   `json:"frequency"`
}

// CompoundInterest returns principal*(1+rate/frequency)^(frequency*years).
// rate is an annual rate expressed as a decimal.
func CompoundInterest(principal, rate, years float64, frequency int64) (InterestResult, error) {
	switch {
	case principal < 0:
		return InterestResult{}, errors.New("principal must be non-negative")
	case years < 0:
		return InterestResult{}, errors.New("time must be non-negative")
	case frequency <= 0:
		return InterestResult{}, errors.New("frequency must be positive")
	case rate <= -1:
		return InterestResult{}, errors.New("rate must be greater than -1")
	}

	n := float64(frequency)
	final := principal * stdmath.Pow(1+rate/n, n*years)
	return InterestResult{
		FinalAmount: round(final, 2),
		Interest:    round(final-principal, 2),
		Principal:   principal,
		Rate:        rate,
		Years:       years,
		Frequency:   frequency,
	}, nil
}

func compoundInterestTool() tool.Descriptor {
	return tool.NewBuilder("calculate_compound_interest").
		WithDescription("Calculate the final value of an investment with compound interest").
		Required("principal", tool.TypeNumber, "Initial amount").
		Required("rate", tool.TypeNumber, "Annual interest rate as a decimal (0.05 for 5%)").
		Required("time", tool.TypeNumber, "Investment period in years").
		Optional("frequency", tool.TypeInteger, int64(1), "Compounding periods per year").
		ReadOnly().
		Idempotent().
		WithHandler(func(_ context.Context, args tool.Arguments) (any, error) {
			return CompoundInterest(args.Float("principal"), args.Float("rate"), args.Float("time"), args.Int("frequency"))
		}).
		MustBuild()
}

// TextStats is the output of analyze_text.
type TextStats struct {
	WordCount         int     `json:"word_count"`
	CharacterCount    int     `json:"character_count"`
	AverageWordLength float64 `json:"average_word_length"`
	MostFrequentWord  string  `json:"most_frequent_word"`
	MostFrequentCount int     `json:"most_frequent_count"`
}

// AnalyzeText computes word statistics. Words are runs of letters, digits
// and apostrophes compared case-insensitively; on a tie the most frequent
// word is the one that reached the count first.
func AnalyzeText(text string) TextStats {
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '\''
	})

	stats := TextStats{
		WordCount:      len(words),
		CharacterCount: utf8.RuneCountInString(text),
	}
	if len(words) == 0 {
		return stats
	}

	counts := make(map[string]int, len(words))
	letters := 0
	for _, w := range words {
		letters += utf8.RuneCountInString(w)
		counts[w]++
		if counts[w] > stats.MostFrequentCount {
			stats.MostFrequentWord = w
			stats.MostFrequentCount = counts[w]
		}
	}
	stats.AverageWordLength = round(float64(letters)/float64(len(words)), 2)
	return stats
}

func analyzeTextTool() tool.Descriptor {
	return tool.NewBuilder("analyze_text").
		WithDescription("Count words and characters, average word length and the most frequent word").
		Required("text", tool.TypeString, "Text to analyze").
		ReadOnly().
		Idempotent().
		WithHandler(func(_ context.Context, args tool.Arguments) (any, error) {
			return AnalyzeText(args.String("text")), nil
		}).
		MustBuild()
}

func round(v float64, places int) float64 {
	p := stdmath.Pow(10, float64(places))
	return stdmath.Round(v*p) / p
}

var _ pack.Factory = New
