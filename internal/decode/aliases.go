package decode

import (
	"strings"

	"golang.org/x/text/cases"

	"github.com/ppiankov/claimalign/internal/model"
)

// categoryAliases maps normalised key or verdict spellings to a category.
// Services vary wildly in how they name the buckets.
var categoryAliases = map[string]model.Category{
	"verified":         model.CategoryVerified,
	"verified_claims":  model.CategoryVerified,
	"true":             model.CategoryVerified,
	"true_claims":      model.CategoryVerified,
	"accurate":         model.CategoryVerified,
	"accurate_claims":  model.CategoryVerified,
	"correct":          model.CategoryVerified,
	"facts":            model.CategoryVerified,
	"factual":          model.CategoryVerified,
	"factual_claims":   model.CategoryVerified,
	"supported":        model.CategoryVerified,
	"supported_claims": model.CategoryVerified,

	"opinion":              model.CategoryOpinion,
	"opinions":             model.CategoryOpinion,
	"opinion_claims":       model.CategoryOpinion,
	"opinion_based":        model.CategoryOpinion,
	"opinion_based_claims": model.CategoryOpinion,
	"opinionated_claims":   model.CategoryOpinion,
	"subjective":           model.CategoryOpinion,
	"subjective_claims":    model.CategoryOpinion,

	"uncertain":           model.CategoryUncertain,
	"uncertain_claims":    model.CategoryUncertain,
	"unverified":          model.CategoryUncertain,
	"unverified_claims":   model.CategoryUncertain,
	"unverifiable":        model.CategoryUncertain,
	"unverifiable_claims": model.CategoryUncertain,
	"disputed":            model.CategoryUncertain,
	"disputed_claims":     model.CategoryUncertain,
	"mixed":               model.CategoryUncertain,

	"false":             model.CategoryFalse,
	"false_claims":      model.CategoryFalse,
	"misleading":        model.CategoryFalse,
	"misleading_claims": model.CategoryFalse,
	"inaccurate":        model.CategoryFalse,
	"inaccurate_claims": model.CategoryFalse,
	"incorrect":         model.CategoryFalse,
	"incorrect_claims":  model.CategoryFalse,
	"debunked":          model.CategoryFalse,
	"debunked_claims":   model.CategoryFalse,
}

// NormalizeKey case-folds a key and unifies word separators to '_'
func NormalizeKey(key string) string {
	folded := cases.Fold().String(strings.TrimSpace(key))
	return strings.Map(func(r rune) rune {
		if r == ' ' || r == '-' {
			return '_'
		}
		return r
	}, folded)
}

// CanonicalCategory folds a key or verdict spelling into one of the four
// categories
func CanonicalCategory(name string) (model.Category, bool) {
	c, ok := categoryAliases[NormalizeKey(name)]
	return c, ok
}
