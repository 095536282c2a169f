package scoring

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"certflow/pkg/domain"
	dErrors "certflow/pkg/domain-errors"
)

func TestValidateScore(t *testing.T) {
	assert.NoError(t, ValidateScore(0))
	assert.NoError(t, ValidateScore(70))
	assert.NoError(t, ValidateScore(100))
	assert.Error(t, ValidateScore(-1))
	assert.Error(t, ValidateScore(101))
	assert.True(t, dErrors.HasCode(ValidateScore(101), dErrors.CodeValidation))
}

func TestDocAnalysisPassed(t *testing.T) {
	assert.False(t, DocAnalysisPassed(69))
	assert.True(t, DocAnalysisPassed(70))
	assert.True(t, DocAnalysisPassed(100))
}

func TestAllowedValidityYears(t *testing.T) {
	tests := []struct {
		name   string
		scores SerialPreEvalScores
		want   []int
	}{
		{
			name:   "all criteria pass",
			scores: SerialPreEvalScores{DocOnly: 80, ProductionAudit: 75, ProductionAttestation: 90, ManagementSystem: 70},
			want:   []int{1, 2, 3, 5},
		},
		{
			name:   "only doc analysis passes",
			scores: SerialPreEvalScores{DocOnly: 80, ProductionAudit: 60, ProductionAttestation: 60, ManagementSystem: 60},
			want:   []int{1},
		},
		{
			name:   "ladder is not cumulative",
			scores: SerialPreEvalScores{DocOnly: 0, ProductionAudit: 0, ProductionAttestation: 0, ManagementSystem: 95},
			want:   []int{5},
		},
		{
			name:   "all fail yields the not-eligible marker",
			scores: SerialPreEvalScores{DocOnly: 69, ProductionAudit: 69, ProductionAttestation: 69, ManagementSystem: 69},
			want:   []int{0},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, AllowedValidityYears(tt.scores))
		})
	}
}

func TestEvaluateSerialPreEval(t *testing.T) {
	t.Run("chosen years must be in the allowed set", func(t *testing.T) {
		scores := SerialPreEvalScores{DocOnly: 80, ProductionAudit: 60, ProductionAttestation: 60, ManagementSystem: 60}

		allowed, err := EvaluateSerialPreEval(scores, 1)
		require.NoError(t, err)
		assert.Equal(t, []int{1}, allowed)

		_, err = EvaluateSerialPreEval(scores, 2)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
	})

	t.Run("out of range score is rejected", func(t *testing.T) {
		_, err := EvaluateSerialPreEval(SerialPreEvalScores{DocOnly: 101}, 1)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
	})

	t.Run("all failing allows only the redo choice", func(t *testing.T) {
		scores := SerialPreEvalScores{DocOnly: 10, ProductionAudit: 20, ProductionAttestation: 30, ManagementSystem: 40}
		allowed, err := EvaluateSerialPreEval(scores, 0)
		require.NoError(t, err)
		assert.Equal(t, []int{0}, allowed)
	})
}

func TestAnalyzeResults(t *testing.T) {
	t.Run("weighted mean decides without certification data", func(t *testing.T) {
		out := AnalyzeResults([]TestScore{{Key: "a", Value: 80}, {Key: "b", Value: 60}}, nil)
		assert.True(t, out.Pass)
		assert.Equal(t, 70, out.Score)

		out = AnalyzeResults([]TestScore{{Key: "a", Value: 80}, {Key: "b", Value: 58}}, nil)
		assert.False(t, out.Pass)
		assert.Equal(t, 69, out.Score)
	})

	t.Run("no tests means zero score and a failing verdict", func(t *testing.T) {
		out := AnalyzeResults(nil, nil)
		assert.False(t, out.Pass)
		assert.Equal(t, 0, out.Score)
	})

	t.Run("certification data overrides the mean", func(t *testing.T) {
		tests := []TestScore{{Key: "a", Value: 10}}
		out := AnalyzeResults(tests, &CertificationData{Result: "conforms", Score: 85})
		assert.True(t, out.Pass)
		assert.Equal(t, 85, out.Score)
	})

	t.Run("affirmative text with a failing score does not pass", func(t *testing.T) {
		out := AnalyzeResults(nil, &CertificationData{Result: "conforms", Score: 69})
		assert.False(t, out.Pass)
	})

	t.Run("zero certification score falls back to the mean for reporting", func(t *testing.T) {
		tests := []TestScore{{Key: "a", Value: 90}}
		out := AnalyzeResults(tests, &CertificationData{Result: "conforms", Score: 0})
		assert.False(t, out.Pass)
		assert.Equal(t, 90, out.Score)
	})
}

func TestResultConforms(t *testing.T) {
	assert.True(t, ResultConforms("conforms"))
	assert.True(t, ResultConforms("The product CONFORMS to the requirements"))
	assert.True(t, ResultConforms("відповідає вимогам"))

	// Negative phrases win even though they contain the affirmative substring.
	assert.False(t, ResultConforms("does not conform"))
	assert.False(t, ResultConforms("не відповідає вимогам"))
	assert.False(t, ResultConforms("non-conformity detected"))

	assert.False(t, ResultConforms(""))
	assert.False(t, ResultConforms("inconclusive"))
}

func TestRecommendedValidity(t *testing.T) {
	assert.Equal(t, 1, RecommendedValidity(domain.ProductSingle, []string{TestKeyDocAnalysis}))
	assert.Equal(t, 2, RecommendedValidity(domain.ProductBatch, []string{TestKeyDocAnalysis, TestKeyProductionAudit}))
	assert.Equal(t, 5, RecommendedValidity(domain.ProductSerial, []string{TestKeyDocAnalysis, TestKeyManagementSystem}))
	assert.Equal(t, 3, RecommendedValidity(domain.ProductSerial, []string{TestKeyDocAnalysis}))
}
