package txretry

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMessageClassifier_Classify(t *testing.T) {
	classifier := NewMessageClassifier()

	tests := []struct {
		name          string
		msg           string
		lastFee       *big.Int
		expectedAct   Action
		expectedNonce uint64
		expectedFee   *big.Int
	}{
		{
			name:          "next nonce at end of message",
			msg:           "next nonce 42",
			lastFee:       big.NewInt(100),
			expectedAct:   ActionRetryWithNonce,
			expectedNonce: 42,
		},
		{
			name:          "geth nonce too low message",
			msg:           "nonce too low: next nonce 7, tx nonce 5",
			lastFee:       big.NewInt(100),
			expectedAct:   ActionRetryWithNonce,
			expectedNonce: 7,
		},
		{
			name:          "nonce followed by whitespace",
			msg:           "(code: -32000, message: nonce too low: next nonce 1234 tx nonce 1200)",
			lastFee:       big.NewInt(1),
			expectedAct:   ActionRetryWithNonce,
			expectedNonce: 1234,
		},
		{
			name:          "nonce zero",
			msg:           "next nonce 0",
			expectedAct:   ActionRetryWithNonce,
			expectedNonce: 0,
		},
		{
			name:        "non numeric nonce is fatal",
			msg:         "next nonce abc",
			lastFee:     big.NewInt(100),
			expectedAct: ActionFatal,
		},
		{
			name:          "digits run ends at first non digit",
			msg:           "next nonce 7abc",
			lastFee:       big.NewInt(100),
			expectedAct:   ActionRetryWithNonce,
			expectedNonce: 7,
		},
		{
			name:        "marker without value is fatal",
			msg:         "next nonce ",
			lastFee:     big.NewInt(100),
			expectedAct: ActionFatal,
		},
		{
			name:        "nonce overflowing uint64 is fatal",
			msg:         "next nonce 18446744073709551616",
			lastFee:     big.NewInt(100),
			expectedAct: ActionFatal,
		},
		{
			name:        "unparsable nonce does not fall through to fee check",
			msg:         "next nonce abc, replacement transaction underpriced",
			lastFee:     big.NewInt(100),
			expectedAct: ActionFatal,
		},
		{
			name:          "nonce marker wins over underpriced",
			msg:           "replacement transaction underpriced; next nonce 9",
			lastFee:       big.NewInt(100),
			expectedAct:   ActionRetryWithNonce,
			expectedNonce: 9,
		},
		{
			name:        "underpriced escalates 100",
			msg:         "replacement transaction underpriced",
			lastFee:     big.NewInt(100),
			expectedAct: ActionRetryWithFee,
			expectedFee: big.NewInt(110),
		},
		{
			name:        "underpriced escalates 99",
			msg:         "failed to send: replacement transaction underpriced",
			lastFee:     big.NewInt(99),
			expectedAct: ActionRetryWithFee,
			expectedFee: big.NewInt(108),
		},
		{
			name:        "underpriced without previous fee is fatal",
			msg:         "replacement transaction underpriced",
			lastFee:     nil,
			expectedAct: ActionFatal,
		},
		{
			name:        "revert is fatal",
			msg:         "execution reverted: ERC721: token already minted",
			lastFee:     big.NewInt(100),
			expectedAct: ActionFatal,
		},
		{
			name:        "empty message is fatal",
			msg:         "",
			expectedAct: ActionFatal,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			directive := classifier.Classify(tt.msg, tt.lastFee)

			assert.Equal(t, tt.expectedAct, directive.Action, "action: %s", directive.Action)
			switch tt.expectedAct {
			case ActionRetryWithNonce:
				assert.Equal(t, tt.expectedNonce, directive.Nonce)
				assert.True(t, directive.Retryable())
			case ActionRetryWithFee:
				assert.Equal(t, 0, tt.expectedFee.Cmp(directive.Fee), "fee: %s", directive.Fee)
				assert.True(t, directive.Retryable())
			case ActionFatal:
				assert.Equal(t, tt.msg, directive.Reason, "fatal keeps the provider message")
				assert.False(t, directive.Retryable())
			}
		})
	}
}

func TestMessageClassifier_DoesNotMutateLastFee(t *testing.T) {
	fee := big.NewInt(100)
	directive := NewMessageClassifier().Classify("replacement transaction underpriced", fee)

	assert.Equal(t, int64(100), fee.Int64())
	assert.Equal(t, int64(110), directive.Fee.Int64())
}

func TestMessageClassifier_ZeroValue(t *testing.T) {
	var classifier MessageClassifier
	directive := classifier.Classify("replacement transaction underpriced", big.NewInt(100))

	assert.Equal(t, ActionRetryWithFee, directive.Action)
	assert.Equal(t, int64(110), directive.Fee.Int64())
}

func TestMessageClassifierFor_UsesEstimatorEscalation(t *testing.T) {
	fees := &fakeFees{fee: big.NewInt(1), escalateBy: big.NewInt(1000)}
	directive := NewMessageClassifierFor(fees).Classify("replacement transaction underpriced", big.NewInt(100))

	assert.Equal(t, int64(1100), directive.Fee.Int64())
}

func TestAction_String(t *testing.T) {
	assert.Equal(t, "proceed", ActionProceed.String())
	assert.Equal(t, "retry_with_nonce", ActionRetryWithNonce.String())
	assert.Equal(t, "retry_with_fee", ActionRetryWithFee.String())
	assert.Equal(t, "fatal", ActionFatal.String())
	assert.Equal(t, "action(42)", Action(42).String())
}
