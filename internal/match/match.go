package match

import (
	"strconv"
	"strings"
	"unicode"

	"github.com/google/uuid"
)

// Status represents the outcome of matching a free-text line against the
// ingredient catalog.
type Status int

const (
	Matched Status = iota
	Ambiguous
	Unmatched
)

func (s Status) String() string {
	switch s {
	case Matched:
		return "Matched"
	case Ambiguous:
		return "Ambiguous"
	case Unmatched:
		return "Unmatched"
	default:
		return "Unknown"
	}
}

// Ingredient is the catalog entry the matcher scores against.
type Ingredient struct {
	ID       uuid.UUID
	Name     string
	Keywords string // CSV like "arroz,branco,agulhinha"
	Unit     string
}

// Result contains the result of a matching operation, including the quantity
// extracted from the line ("5kg arroz" yields 5, "kg").
type Result struct {
	Status     Status
	Ingredient *Ingredient  // when Matched
	Candidates []Ingredient // when Ambiguous
	Qty        float64
	Unit       string
}

// Matcher performs keyword-based ingredient matching for free-text restock
// lines typed by staff.
type Matcher struct {
	ingredients []Ingredient
	keywordMap  [][]string // pre-tokenized keywords per ingredient
}

const (
	variantWeight = 5
	regularWeight = 1
)

// Variant words disambiguate ingredients that share a base name ("queijo
// branco" vs "queijo prato"). A line carrying one only matches catalog
// entries that also carry it.
var variantKeywords = map[string]bool{
	"branco":   true,
	"integral": true,
	"vermelho": true,
	"verde":    true,
	"preto":    true,
	"grande":   true,
	"pequeno":  true,
	"medio":    true,
	"fresco":   true,
	"ralado":   true,
}

// New creates a new Matcher with pre-tokenized keywords. Entries without an
// explicit keyword list fall back to their name tokens.
func New(ingredients []Ingredient) *Matcher {
	m := &Matcher{
		ingredients: ingredients,
		keywordMap:  make([][]string, len(ingredients)),
	}

	for i, ing := range ingredients {
		source := ing.Keywords
		if source == "" {
			source = strings.Join(tokenize(normalize(ing.Name)), ",")
		}
		parts := strings.Split(source, ",")
		keywords := make([]string, 0, len(parts))
		for _, part := range parts {
			normalized := normalize(part)
			if normalized != "" {
				keywords = append(keywords, normalized)
			}
		}
		m.keywordMap[i] = keywords
	}

	return m
}

// Match scores the line's tokens against every catalog entry.
func (m *Matcher) Match(text string) Result {
	normalized := normalize(text)
	tokens := tokenize(normalized)

	qty, unit, descTokens := extractQuantity(tokens)

	inputTokens := make(map[string]bool)
	for _, tok := range descTokens {
		inputTokens[tok] = true
	}

	inputVariants := make(map[string]bool)
	for tok := range inputTokens {
		if variantKeywords[tok] {
			inputVariants[tok] = true
		}
	}

	type scoredIngredient struct {
		ingredient Ingredient
		score      int
	}

	var scored []scoredIngredient

	for i, ing := range m.ingredients {
		keywords := m.keywordMap[i]

		// Hard filter: if the line carries variant words, the candidate
		// must have all of them.
		if len(inputVariants) > 0 {
			hasAllVariants := true
			for variant := range inputVariants {
				found := false
				for _, kw := range keywords {
					if kw == variant {
						found = true
						break
					}
				}
				if !found {
					hasAllVariants = false
					break
				}
			}
			if !hasAllVariants {
				continue
			}
		}

		score := 0
		for _, kw := range keywords {
			if inputTokens[kw] {
				if variantKeywords[kw] {
					score += variantWeight
				} else {
					score += regularWeight
				}
			}
		}

		if score > 0 {
			scored = append(scored, scoredIngredient{ingredient: ing, score: score})
		}
	}

	if len(scored) == 0 {
		return Result{Status: Unmatched, Qty: qty, Unit: unit}
	}

	maxScore := 0
	for _, s := range scored {
		if s.score > maxScore {
			maxScore = s.score
		}
	}

	var topScorers []Ingredient
	for _, s := range scored {
		if s.score == maxScore {
			topScorers = append(topScorers, s.ingredient)
		}
	}

	if len(topScorers) == 1 {
		return Result{
			Status:     Matched,
			Ingredient: &topScorers[0],
			Qty:        qty,
			Unit:       unit,
		}
	}

	return Result{
		Status:     Ambiguous,
		Candidates: topScorers,
		Qty:        qty,
		Unit:       unit,
	}
}

// normalize converts a string to lowercase and replaces non-alphanumeric
// chars with spaces.
func normalize(s string) string {
	var sb strings.Builder
	sb.Grow(len(s))

	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			sb.WriteRune(unicode.ToLower(r))
		} else {
			sb.WriteRune(' ')
		}
	}

	return strings.Join(strings.Fields(sb.String()), " ")
}

func tokenize(s string) []string {
	return strings.Fields(s)
}

// extractQuantity finds quantity tokens like "5kg", "2l", "3un" and separates
// them from the description.
func extractQuantity(tokens []string) (qty float64, unit string, rest []string) {
	qty = 1
	unit = ""
	rest = make([]string, 0, len(tokens))

	for _, tok := range tokens {
		parsedQty, parsedUnit, ok := parseQtyUnit(tok)
		if ok {
			qty = parsedQty
			unit = parsedUnit
		} else {
			rest = append(rest, tok)
		}
	}

	return qty, unit, rest
}

// parseQtyUnit parses a token like "5kg" into (5, "kg", true).
func parseQtyUnit(tok string) (float64, string, bool) {
	if tok == "" {
		return 0, "", false
	}

	digitEnd := 0
	for i, r := range tok {
		if unicode.IsDigit(r) || r == '.' {
			digitEnd = i + 1
		} else {
			break
		}
	}

	if digitEnd == 0 {
		return 0, "", false
	}

	numPart := tok[:digitEnd]
	unitPart := tok[digitEnd:]

	qty, err := strconv.ParseFloat(numPart, 64)
	if err != nil {
		return 0, "", false
	}

	if unitPart == "" {
		return 0, "", false
	}

	for _, r := range unitPart {
		if !unicode.IsLetter(r) {
			return 0, "", false
		}
	}

	return qty, unitPart, true
}
