// Package engine converts metered solar generation into monetary bill
// credits. Every function is pure: identical inputs produce identical
// outputs, which keeps historical credits reproducible for audit.
package engine

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// FormulaVersion identifies the credit formula. Any change to the formula
// body requires bumping this string; entries stamped with an older version
// stay reproducible against the code that produced them.
const FormulaVersion = "1.0.0"

// creditScale is the number of decimal places in a credit amount.
const creditScale = 2

// Params carries the inputs of a single credit calculation.
type Params struct {
	UserKw         decimal.Decimal
	TotalProjectKw decimal.Decimal
	GenerationKwh  decimal.Decimal
	Rate           decimal.Decimal
	Month          int
	Year           int
}

// CalculationDetails exposes the intermediate values of a calculation so
// callers can persist them alongside the resulting ledger entry.
type CalculationDetails struct {
	UserShare      decimal.Decimal
	UserGeneration decimal.Decimal
}

// CalculationResult is the payload used to construct an earned ledger entry.
type CalculationResult struct {
	CreditAmount   decimal.Decimal
	FormulaVersion string
	Details        CalculationDetails
	Month          int
	Year           int
}

// CalculateCredits maps a user's capacity share of a project's metered
// generation to a monetary credit. Rounding happens once, on the final
// amount, half up to two decimal places.
func CalculateCredits(params Params) (CalculationResult, error) {
	if err := validateParams(params); err != nil {
		return CalculationResult{}, err
	}
	if params.UserKw.GreaterThan(params.TotalProjectKw) {
		return CalculationResult{}, fmt.Errorf(
			"%w: user %s kW against project %s kW",
			ErrCapacityExceeded, params.UserKw, params.TotalProjectKw,
		)
	}
	userShare := params.UserKw.Div(params.TotalProjectKw)
	userGeneration := params.GenerationKwh.Mul(userShare)
	creditAmount := userGeneration.Mul(params.Rate).Round(creditScale)
	return CalculationResult{
		CreditAmount:   creditAmount,
		FormulaVersion: FormulaVersion,
		Details: CalculationDetails{
			UserShare:      userShare,
			UserGeneration: userGeneration,
		},
		Month: params.Month,
		Year:  params.Year,
	}, nil
}

func validateParams(params Params) error {
	if !params.UserKw.IsPositive() {
		return fmt.Errorf("%w: user kw must be greater than zero", ErrInvalidParameters)
	}
	if !params.TotalProjectKw.IsPositive() {
		return fmt.Errorf("%w: total project kw must be greater than zero", ErrInvalidParameters)
	}
	if params.GenerationKwh.IsNegative() {
		return fmt.Errorf("%w: generation kwh must not be negative", ErrInvalidParameters)
	}
	if !params.Rate.IsPositive() {
		return fmt.Errorf("%w: rate must be greater than zero", ErrInvalidParameters)
	}
	if params.Month < 1 || params.Month > 12 {
		return fmt.Errorf("%w: month must be between 1 and 12", ErrInvalidParameters)
	}
	if params.Year < 1 {
		return fmt.Errorf("%w: year must be greater than zero", ErrInvalidParameters)
	}
	return nil
}

// Range bounds an expected generation figure. The bounds are derived by the
// caller from project capacity and expected yield; the engine holds no
// project-specific policy.
type Range struct {
	Min decimal.Decimal
	Max decimal.Decimal
}

// Validation reports whether a generation figure falls inside its expected
// range, with a human-readable reason when it does not.
type Validation struct {
	Valid  bool
	Reason string
}

// ValidateGeneration checks a metered kWh figure against an expected range.
func ValidateGeneration(kwh decimal.Decimal, expected Range) (Validation, error) {
	if expected.Min.GreaterThan(expected.Max) {
		return Validation{}, fmt.Errorf("%w: min %s exceeds max %s", ErrInvalidRange, expected.Min, expected.Max)
	}
	if kwh.LessThan(expected.Min) {
		return Validation{
			Reason: fmt.Sprintf("generation %s kWh is below expected minimum %s kWh", kwh, expected.Min),
		}, nil
	}
	if kwh.GreaterThan(expected.Max) {
		return Validation{
			Reason: fmt.Sprintf("generation %s kWh is above expected maximum %s kWh", kwh, expected.Max),
		}, nil
	}
	return Validation{Valid: true}, nil
}

// BatchUser identifies one allocation inside a batch calculation.
type BatchUser struct {
	UserID string
	UserKw decimal.Decimal
}

// BatchParams carries the inputs shared by every user in a batch run.
type BatchParams struct {
	TotalProjectKw decimal.Decimal
	GenerationKwh  decimal.Decimal
	Rate           decimal.Decimal
	Month          int
	Year           int
}

// UserResult tags one batch outcome with the user it belongs to. Exactly one
// of Result and Err is meaningful.
type UserResult struct {
	UserID string
	Result CalculationResult
	Err    error
}

// BatchCalculateCredits runs CalculateCredits for every user against the
// same period, generation, and rate. One bad allocation never aborts the
// batch; each outcome is attributable to its user.
func BatchCalculateCredits(users []BatchUser, params BatchParams) []UserResult {
	results := make([]UserResult, 0, len(users))
	for _, user := range users {
		result, err := CalculateCredits(Params{
			UserKw:         user.UserKw,
			TotalProjectKw: params.TotalProjectKw,
			GenerationKwh:  params.GenerationKwh,
			Rate:           params.Rate,
			Month:          params.Month,
			Year:           params.Year,
		})
		results = append(results, UserResult{UserID: user.UserID, Result: result, Err: err})
	}
	return results
}

// InterpolateGeneration estimates a missing monthly reading by linear
// interpolation between the two nearest metered neighbors. stepsFromPrev is
// the month distance from the earlier neighbor to the missing month,
// totalSteps the distance between the two neighbors.
func InterpolateGeneration(prevKwh, nextKwh decimal.Decimal, stepsFromPrev, totalSteps int) (decimal.Decimal, error) {
	if totalSteps < 2 {
		return decimal.Decimal{}, fmt.Errorf("%w: neighbors must be at least two months apart", ErrInvalidGap)
	}
	if stepsFromPrev < 1 || stepsFromPrev >= totalSteps {
		return decimal.Decimal{}, fmt.Errorf("%w: missing month must lie strictly between its neighbors", ErrInvalidGap)
	}
	if prevKwh.IsNegative() || nextKwh.IsNegative() {
		return decimal.Decimal{}, fmt.Errorf("%w: neighbor readings must not be negative", ErrInvalidParameters)
	}
	fraction := decimal.NewFromInt(int64(stepsFromPrev)).Div(decimal.NewFromInt(int64(totalSteps)))
	return prevKwh.Add(nextKwh.Sub(prevKwh).Mul(fraction)), nil
}
