// Package costing computes tier-migration savings from live pricing.
package costing

import "github.com/yaserfarook1/SentinalLens/internal/models"

// daysPerMonth is the fixed month length used by the savings formulas.
const daysPerMonth = 30

// Calculate returns the savings estimate for moving one table from its
// current tier to the target tier:
//
//	monthly = (gbPerDay*currentPrice - gbPerDay*targetPrice) * 30
//	annual  = monthly * 12
//
// The result is clamped at zero rather than ever reporting a negative
// saving, and the prices used are recorded verbatim in the estimate so the
// figures stay auditable after prices move.
func Calculate(table string, currentTier, targetTier models.Tier, gbPerDay, currentPrice, targetPrice float64) models.SavingsEstimate {
	if gbPerDay < 0 {
		gbPerDay = 0
	}

	monthly := (gbPerDay*currentPrice - gbPerDay*targetPrice) * daysPerMonth
	if monthly < 0 {
		monthly = 0
	}

	return models.SavingsEstimate{
		TableName:         table,
		CurrentTier:       currentTier,
		TargetTier:        targetTier,
		MonthlySavings:    monthly,
		AnnualSavings:     monthly * 12,
		CurrentPricePerGB: currentPrice,
		TargetPricePerGB:  targetPrice,
	}
}

// MonthlyCost returns the plain monthly cost of a table at a given price.
func MonthlyCost(gbPerDay, pricePerGB float64) float64 {
	if gbPerDay < 0 {
		gbPerDay = 0
	}
	return gbPerDay * pricePerGB * daysPerMonth
}
