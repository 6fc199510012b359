package txretry

import (
	"fmt"
	"math/big"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

const (
	nextNonceMarker   = "next nonce "
	underpricedMarker = "replacement transaction underpriced"
)

// Action is what the retry loop does next after an attempt.
type Action int

const (
	ActionProceed Action = iota
	ActionRetryWithNonce
	ActionRetryWithFee
	ActionFatal
)

func (a Action) String() string {
	switch a {
	case ActionProceed:
		return "proceed"
	case ActionRetryWithNonce:
		return "retry_with_nonce"
	case ActionRetryWithFee:
		return "retry_with_fee"
	case ActionFatal:
		return "fatal"
	}
	return fmt.Sprintf("action(%d)", int(a))
}

// Directive is the decision taken for one attempt. Only the field matching Action is set.
type Directive struct {
	Action Action
	Hash   common.Hash
	Nonce  uint64
	Fee    *big.Int
	Reason string
}

func Proceed(hash common.Hash) Directive {
	return Directive{Action: ActionProceed, Hash: hash}
}

func RetryWithNonce(nonce uint64) Directive {
	return Directive{Action: ActionRetryWithNonce, Nonce: nonce}
}

func RetryWithFee(fee *big.Int) Directive {
	return Directive{Action: ActionRetryWithFee, Fee: new(big.Int).Set(fee)}
}

func Fatal(reason string) Directive {
	return Directive{Action: ActionFatal, Reason: reason}
}

// Retryable reports whether the directive asks for another attempt.
func (d Directive) Retryable() bool {
	return d.Action == ActionRetryWithNonce || d.Action == ActionRetryWithFee
}

// Classifier maps a provider error message to a directive.
type Classifier interface {
	Classify(msg string, lastFee *big.Int) Directive
}

// MessageClassifier recognises the two retryable node errors by their text.
// Every message that is not recognised is fatal.
type MessageClassifier struct {
	escalate func(*big.Int) *big.Int
}

var _ Classifier = (*MessageClassifier)(nil)

func NewMessageClassifier() *MessageClassifier {
	return &MessageClassifier{escalate: Escalate}
}

// NewMessageClassifierFor uses the estimator's escalation for underpriced rejections.
func NewMessageClassifierFor(fees FeeEstimator) *MessageClassifier {
	return &MessageClassifier{escalate: fees.Escalate}
}

// Classify checks the nonce marker first. A message carrying the marker but no usable number
// is fatal and is not checked for underpricing.
func (c *MessageClassifier) Classify(msg string, lastFee *big.Int) Directive {
	if idx := strings.Index(msg, nextNonceMarker); idx >= 0 {
		nonce, err := parseNextNonce(msg[idx+len(nextNonceMarker):])
		if err != nil {
			return Fatal(msg)
		}
		return RetryWithNonce(nonce)
	}

	if strings.Contains(msg, underpricedMarker) {
		if lastFee == nil {
			return Fatal(msg)
		}
		if c.escalate == nil {
			return RetryWithFee(Escalate(lastFee))
		}
		return RetryWithFee(c.escalate(lastFee))
	}

	return Fatal(msg)
}

// parseNextNonce reads the run of decimal digits at the start of s.
func parseNextNonce(s string) (uint64, error) {
	end := 0
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	if end == 0 {
		return 0, fmt.Errorf("no nonce after marker in %q", s)
	}
	return strconv.ParseUint(s[:end], 10, 64)
}
