// Package scoring holds the pure pass/fail and validity rules used by the
// certification workflow. This is pure domain logic - no I/O, no side effects.
// Every function receives the data it needs as arguments and returns a result.
package scoring

import (
	"strings"

	"certflow/pkg/domain"
	dErrors "certflow/pkg/domain-errors"
)

// PassThreshold is the minimum score that counts as a positive evaluation.
// The same bar applies to document analysis, serial pre-evaluation criteria,
// and the final results analysis.
const PassThreshold = 70

// Known test keys. Tests are idempotent by key: re-running a scoring step
// updates the existing record instead of appending a new one.
const (
	TestKeyDocAnalysis           = "doc_analysis"
	TestKeyProductionAudit       = "production_audit"
	TestKeyProductionAttestation = "production_attestation"
	TestKeyManagementSystem      = "management_system"
)

// ValidateScore rejects scores outside [0,100].
func ValidateScore(score int) error {
	if score < 0 || score > 100 {
		return dErrors.New(dErrors.CodeValidation, "score must be between 0 and 100")
	}
	return nil
}

// DocAnalysisPassed reports whether a document analysis score clears the bar.
func DocAnalysisPassed(score int) bool {
	return score >= PassThreshold
}

// SerialPreEvalScores carries the four criteria scored before a serial
// product may proceed to sampling.
type SerialPreEvalScores struct {
	DocOnly               int // document analysis without a production audit
	ProductionAudit       int
	ProductionAttestation int
	ManagementSystem      int
}

// AllowedValidityYears computes the certificate durations the scores permit.
// The ladder is deliberately non-cumulative: each criterion maps to one
// specific duration, not a monotonically increasing scale.
//
//	DocOnly               >= 70 -> 1 year
//	ProductionAudit       >= 70 -> 2 years
//	ProductionAttestation >= 70 -> 3 years
//	ManagementSystem      >= 70 -> 5 years
//
// When all four criteria fail, 0 ("not eligible") becomes the only choice and
// forces a redo cycle.
func AllowedValidityYears(s SerialPreEvalScores) []int {
	var years []int
	if s.DocOnly >= PassThreshold {
		years = append(years, 1)
	}
	if s.ProductionAudit >= PassThreshold {
		years = append(years, 2)
	}
	if s.ProductionAttestation >= PassThreshold {
		years = append(years, 3)
	}
	if s.ManagementSystem >= PassThreshold {
		years = append(years, 5)
	}
	if len(years) == 0 {
		years = append(years, 0)
	}
	return years
}

// EvaluateSerialPreEval validates the scores and the chosen validity against
// the allowed set.
//
// Errors: CodeValidation when a score is out of range or chosenYears is not
// permitted by the scores.
func EvaluateSerialPreEval(s SerialPreEvalScores, chosenYears int) ([]int, error) {
	for _, v := range []int{s.DocOnly, s.ProductionAudit, s.ProductionAttestation, s.ManagementSystem} {
		if err := ValidateScore(v); err != nil {
			return nil, err
		}
	}
	allowed := AllowedValidityYears(s)
	for _, y := range allowed {
		if y == chosenYears {
			return allowed, nil
		}
	}
	return nil, dErrors.New(dErrors.CodeValidation,
		"chosen validity does not match the provided scores")
}

// TestScore is the slice of a Test record the results analysis needs.
type TestScore struct {
	Key   string
	Value int
}

// CertificationData is the manually entered certification-test record, when
// one is present on the application.
type CertificationData struct {
	Result string
	Score  int
}

// ResultsOutcome is the verdict of the final analysis.
type ResultsOutcome struct {
	Pass  bool
	Score int
}

// AnalyzeResults decides whether the certification work conforms.
// Rule priority:
//  1. With certification data present, its result text and numeric score
//     decide: the text must read as an affirmative conformity statement and
//     the score must clear the bar.
//  2. Without it, the weighted mean of all test values decides.
//
// A failed analysis is not terminal; the workflow loops the application back
// to certification tests.
func AnalyzeResults(tests []TestScore, cd *CertificationData) ResultsOutcome {
	score := weightedMean(tests)
	if cd != nil {
		if cd.Score != 0 {
			score = cd.Score
		}
		return ResultsOutcome{
			Pass:  ResultConforms(cd.Result) && cd.Score >= PassThreshold,
			Score: score,
		}
	}
	return ResultsOutcome{Pass: score >= PassThreshold, Score: score}
}

// TestWeight returns the weight of a test key in the results mean.
// All keys currently weigh 1, matching observed production behavior; the
// weighted-mean plumbing stays so a differentiated table is a local change.
func TestWeight(key string) int {
	return 1
}

func weightedMean(tests []TestScore) int {
	sum, total := 0, 0
	for _, t := range tests {
		w := TestWeight(t.Key)
		sum += t.Value * w
		total += w
	}
	if total == 0 {
		return 0
	}
	// Round half up, matching the original arithmetic.
	return (sum + total/2) / total
}

// negativePhrases are checked before affirmative ones so "does not conform"
// never reads as a conformity statement. Both the original localized phrasing
// and the English rendition are accepted at this boundary.
var negativePhrases = []string{
	"не відповідає",
	"не видповидае",
	"does not conform",
	"non-conform",
}

var affirmativePhrases = []string{
	"відповідає",
	"видповидае",
	"conforms",
}

// ResultConforms reports whether a free-text result reads as an affirmative
// conformity statement.
func ResultConforms(result string) bool {
	r := strings.ToLower(strings.TrimSpace(result))
	for _, neg := range negativePhrases {
		if strings.Contains(r, neg) {
			return false
		}
	}
	for _, aff := range affirmativePhrases {
		if strings.Contains(r, aff) {
			return true
		}
	}
	return false
}

// RecommendedValidity derives the default certificate duration from the
// product type and the tests that were run. An explicit serial pre-evaluation
// choice, when saved, supersedes this recommendation.
func RecommendedValidity(productType domain.ProductType, testKeys []string) int {
	switch productType {
	case domain.ProductSingle:
		return 1
	case domain.ProductBatch:
		return 2
	case domain.ProductSerial:
		for _, k := range testKeys {
			if k == TestKeyManagementSystem {
				return 5
			}
		}
		for _, k := range testKeys {
			if k == TestKeyProductionAttestation {
				return 3
			}
		}
		return 3
	}
	return 1
}
