package engine

import (
	"errors"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
)

func dec(test *testing.T, raw string) decimal.Decimal {
	test.Helper()
	value, err := decimal.NewFromString(raw)
	if err != nil {
		test.Fatalf("parse decimal %q: %v", raw, err)
	}
	return value
}

func validParams(test *testing.T) Params {
	test.Helper()
	return Params{
		UserKw:         dec(test, "5"),
		TotalProjectKw: dec(test, "100"),
		GenerationKwh:  dec(test, "10000"),
		Rate:           dec(test, "6.5"),
		Month:          1,
		Year:           2024,
	}
}

func TestCalculateCreditsBoundaryExample(test *testing.T) {
	test.Parallel()
	result, err := CalculateCredits(validParams(test))
	if err != nil {
		test.Fatalf("calculate: %v", err)
	}
	if !result.CreditAmount.Equal(dec(test, "3250")) {
		test.Fatalf("expected credit 3250, got %s", result.CreditAmount)
	}
	if !result.Details.UserShare.Equal(dec(test, "0.05")) {
		test.Fatalf("expected share 0.05, got %s", result.Details.UserShare)
	}
	if !result.Details.UserGeneration.Equal(dec(test, "500")) {
		test.Fatalf("expected user generation 500, got %s", result.Details.UserGeneration)
	}
	if result.FormulaVersion != FormulaVersion {
		test.Fatalf("expected formula version %s, got %s", FormulaVersion, result.FormulaVersion)
	}
}

func TestCalculateCreditsDeterministic(test *testing.T) {
	test.Parallel()
	params := Params{
		UserKw:         dec(test, "3.3"),
		TotalProjectKw: dec(test, "77.7"),
		GenerationKwh:  dec(test, "12345.678"),
		Rate:           dec(test, "7.15"),
		Month:          6,
		Year:           2025,
	}
	first, err := CalculateCredits(params)
	if err != nil {
		test.Fatalf("first calculate: %v", err)
	}
	second, err := CalculateCredits(params)
	if err != nil {
		test.Fatalf("second calculate: %v", err)
	}
	if first.CreditAmount.String() != second.CreditAmount.String() {
		test.Fatalf("amounts differ: %s vs %s", first.CreditAmount, second.CreditAmount)
	}
	if first.FormulaVersion != second.FormulaVersion {
		test.Fatalf("versions differ: %s vs %s", first.FormulaVersion, second.FormulaVersion)
	}
}

func TestCalculateCreditsMonotonicInShare(test *testing.T) {
	test.Parallel()
	smaller := validParams(test)
	larger := validParams(test)
	larger.UserKw = dec(test, "7.5")

	smallResult, err := CalculateCredits(smaller)
	if err != nil {
		test.Fatalf("smaller share: %v", err)
	}
	largeResult, err := CalculateCredits(larger)
	if err != nil {
		test.Fatalf("larger share: %v", err)
	}
	if !smallResult.CreditAmount.LessThan(largeResult.CreditAmount) {
		test.Fatalf("expected %s < %s", smallResult.CreditAmount, largeResult.CreditAmount)
	}
}

func TestCalculateCreditsRoundsHalfUpOnce(test *testing.T) {
	test.Parallel()
	params := Params{
		UserKw:         dec(test, "1"),
		TotalProjectKw: dec(test, "3"),
		GenerationKwh:  dec(test, "100"),
		Rate:           dec(test, "1"),
		Month:          2,
		Year:           2024,
	}
	// 100/3 = 33.333... -> 33.33 only after the final multiplication.
	result, err := CalculateCredits(params)
	if err != nil {
		test.Fatalf("calculate: %v", err)
	}
	if !result.CreditAmount.Equal(dec(test, "33.33")) {
		test.Fatalf("expected 33.33, got %s", result.CreditAmount)
	}
}

func TestCalculateCreditsRejectsInvalidParameters(test *testing.T) {
	test.Parallel()
	testCases := []struct {
		name   string
		mutate func(params *Params)
	}{
		{name: "zero user kw", mutate: func(params *Params) { params.UserKw = decimal.Zero }},
		{name: "negative user kw", mutate: func(params *Params) { params.UserKw = decimal.NewFromInt(-1) }},
		{name: "zero project kw", mutate: func(params *Params) { params.TotalProjectKw = decimal.Zero }},
		{name: "negative generation", mutate: func(params *Params) { params.GenerationKwh = decimal.NewFromInt(-10) }},
		{name: "zero rate", mutate: func(params *Params) { params.Rate = decimal.Zero }},
		{name: "month too low", mutate: func(params *Params) { params.Month = 0 }},
		{name: "month too high", mutate: func(params *Params) { params.Month = 13 }},
		{name: "zero year", mutate: func(params *Params) { params.Year = 0 }},
	}
	for _, testCase := range testCases {
		testCase := testCase
		test.Run(testCase.name, func(test *testing.T) {
			test.Parallel()
			params := validParams(test)
			testCase.mutate(&params)
			_, err := CalculateCredits(params)
			if !errors.Is(err, ErrInvalidParameters) {
				test.Fatalf("expected ErrInvalidParameters, got %v", err)
			}
		})
	}
}

func TestCalculateCreditsRejectsCapacityExceeded(test *testing.T) {
	test.Parallel()
	params := validParams(test)
	params.UserKw = dec(test, "150")
	_, err := CalculateCredits(params)
	if !errors.Is(err, ErrCapacityExceeded) {
		test.Fatalf("expected ErrCapacityExceeded, got %v", err)
	}
}

func TestCalculateCreditsAllowsFullProjectShare(test *testing.T) {
	test.Parallel()
	params := validParams(test)
	params.UserKw = params.TotalProjectKw
	result, err := CalculateCredits(params)
	if err != nil {
		test.Fatalf("calculate: %v", err)
	}
	if !result.Details.UserShare.Equal(dec(test, "1")) {
		test.Fatalf("expected share 1, got %s", result.Details.UserShare)
	}
}

func TestValidateGeneration(test *testing.T) {
	test.Parallel()
	expected := Range{Min: dec(test, "800"), Max: dec(test, "2000")}

	inRange, err := ValidateGeneration(dec(test, "1000"), expected)
	if err != nil {
		test.Fatalf("validate in range: %v", err)
	}
	if !inRange.Valid {
		test.Fatalf("expected 1000 to be valid, got reason %q", inRange.Reason)
	}

	low, err := ValidateGeneration(dec(test, "500"), expected)
	if err != nil {
		test.Fatalf("validate low: %v", err)
	}
	if low.Valid || !strings.Contains(low.Reason, "below expected minimum") {
		test.Fatalf("unexpected low validation: %+v", low)
	}

	high, err := ValidateGeneration(dec(test, "2500"), expected)
	if err != nil {
		test.Fatalf("validate high: %v", err)
	}
	if high.Valid || !strings.Contains(high.Reason, "above expected maximum") {
		test.Fatalf("unexpected high validation: %+v", high)
	}
}

func TestValidateGenerationBoundsInclusive(test *testing.T) {
	test.Parallel()
	expected := Range{Min: dec(test, "800"), Max: dec(test, "2000")}
	for _, raw := range []string{"800", "2000"} {
		validation, err := ValidateGeneration(dec(test, raw), expected)
		if err != nil {
			test.Fatalf("validate %s: %v", raw, err)
		}
		if !validation.Valid {
			test.Fatalf("expected boundary value %s to be valid, got %q", raw, validation.Reason)
		}
	}
}

func TestValidateGenerationRejectsInvertedRange(test *testing.T) {
	test.Parallel()
	_, err := ValidateGeneration(dec(test, "1000"), Range{Min: dec(test, "2000"), Max: dec(test, "800")})
	if !errors.Is(err, ErrInvalidRange) {
		test.Fatalf("expected ErrInvalidRange, got %v", err)
	}
}

func TestBatchCalculateCreditsKeepsGoingPastFailures(test *testing.T) {
	test.Parallel()
	users := []BatchUser{
		{UserID: "user-a", UserKw: dec(test, "5")},
		{UserID: "user-b", UserKw: dec(test, "150")},
		{UserID: "user-c", UserKw: dec(test, "10")},
	}
	params := BatchParams{
		TotalProjectKw: dec(test, "100"),
		GenerationKwh:  dec(test, "10000"),
		Rate:           dec(test, "6.5"),
		Month:          1,
		Year:           2024,
	}

	results := BatchCalculateCredits(users, params)
	if len(results) != 3 {
		test.Fatalf("expected 3 results, got %d", len(results))
	}
	if results[0].UserID != "user-a" || results[0].Err != nil {
		test.Fatalf("unexpected first outcome: %+v", results[0])
	}
	if !results[0].Result.CreditAmount.Equal(dec(test, "3250")) {
		test.Fatalf("expected 3250 for user-a, got %s", results[0].Result.CreditAmount)
	}
	if !errors.Is(results[1].Err, ErrCapacityExceeded) {
		test.Fatalf("expected capacity error for user-b, got %v", results[1].Err)
	}
	if results[2].Err != nil {
		test.Fatalf("expected user-c to succeed, got %v", results[2].Err)
	}
	if !results[2].Result.CreditAmount.Equal(dec(test, "6500")) {
		test.Fatalf("expected 6500 for user-c, got %s", results[2].Result.CreditAmount)
	}
}

func TestInterpolateGeneration(test *testing.T) {
	test.Parallel()
	value, err := InterpolateGeneration(dec(test, "900"), dec(test, "1200"), 1, 3)
	if err != nil {
		test.Fatalf("interpolate: %v", err)
	}
	if !value.Equal(dec(test, "1000")) {
		test.Fatalf("expected 1000, got %s", value)
	}

	midpoint, err := InterpolateGeneration(dec(test, "800"), dec(test, "1000"), 1, 2)
	if err != nil {
		test.Fatalf("interpolate midpoint: %v", err)
	}
	if !midpoint.Equal(dec(test, "900")) {
		test.Fatalf("expected 900, got %s", midpoint)
	}
}

func TestInterpolateGenerationRejectsBadGaps(test *testing.T) {
	test.Parallel()
	if _, err := InterpolateGeneration(dec(test, "900"), dec(test, "1200"), 1, 1); !errors.Is(err, ErrInvalidGap) {
		test.Fatalf("expected ErrInvalidGap for adjacent neighbors, got %v", err)
	}
	if _, err := InterpolateGeneration(dec(test, "900"), dec(test, "1200"), 3, 3); !errors.Is(err, ErrInvalidGap) {
		test.Fatalf("expected ErrInvalidGap for step at boundary, got %v", err)
	}
	if _, err := InterpolateGeneration(dec(test, "-1"), dec(test, "1200"), 1, 2); !errors.Is(err, ErrInvalidParameters) {
		test.Fatalf("expected ErrInvalidParameters for negative neighbor, got %v", err)
	}
}
