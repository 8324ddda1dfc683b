package fraud

import (
	"strings"

	"github.com/shopspring/decimal"
)

type Classification string

const (
	ClassificationRegular      Classification = "REGULAR"
	ClassificationHighRisk     Classification = "HIGH_RISK"
	ClassificationPreferential Classification = "PREFERENTIAL"
	ClassificationNoInfo       Classification = "NO_INFO"
)

// ClassificationFrom maps the classifier's free-text label onto a known tier.
// Labels the classifier invents land on NO_INFO, the strictest tier.
func ClassificationFrom(label string) Classification {
	switch strings.ToUpper(strings.TrimSpace(label)) {
	case string(ClassificationRegular):
		return ClassificationRegular
	case string(ClassificationHighRisk):
		return ClassificationHighRisk
	case string(ClassificationPreferential):
		return ClassificationPreferential
	default:
		return ClassificationNoInfo
	}
}

const defaultCategory = "*"

// thresholds holds the maximum insured amount approved per classification and
// category. Categories not listed for a tier use that tier's "*" row.
var thresholds = map[Classification]map[string]decimal.Decimal{
	ClassificationRegular: {
		"LIFE":          decimal.NewFromInt(500000),
		"RESIDENTIAL":   decimal.NewFromInt(500000),
		"AUTO":          decimal.NewFromInt(350000),
		defaultCategory: decimal.NewFromInt(255000),
	},
	ClassificationHighRisk: {
		"LIFE":          decimal.NewFromInt(125000),
		"RESIDENTIAL":   decimal.NewFromInt(150000),
		"AUTO":          decimal.NewFromInt(250000),
		defaultCategory: decimal.NewFromInt(125000),
	},
	ClassificationPreferential: {
		"LIFE":          decimal.NewFromInt(800000),
		"RESIDENTIAL":   decimal.NewFromInt(450000),
		"AUTO":          decimal.NewFromInt(450000),
		defaultCategory: decimal.NewFromInt(375000),
	},
	ClassificationNoInfo: {
		"LIFE":          decimal.NewFromInt(200000),
		"RESIDENTIAL":   decimal.NewFromInt(200000),
		"AUTO":          decimal.NewFromInt(75000),
		defaultCategory: decimal.NewFromInt(55000),
	},
}

// IsApproved decides whether the insured amount clears the threshold for the
// given classification and category. Pure function, exact decimal comparison:
// the threshold itself is approved, one cent above it is denied.
func IsApproved(cls Classification, category string, insuredAmount decimal.Decimal) bool {
	row, ok := thresholds[cls]
	if !ok {
		row = thresholds[ClassificationNoInfo]
	}
	limit, ok := row[strings.ToUpper(strings.TrimSpace(category))]
	if !ok {
		limit = row[defaultCategory]
	}
	return insuredAmount.LessThanOrEqual(limit)
}
