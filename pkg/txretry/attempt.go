package txretry

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Attempt records the parameters and outcome of one submission.
// A nil nonce lets the signer pick one; a nil fee has not been resolved yet.
type Attempt struct {
	index     int
	nonce     *uint64
	fee       *big.Int
	hash      common.Hash
	err       error
	directive Directive
}

// NewAttempt describes submission number index. A nil nonce lets the signer choose.
func NewAttempt(index int, nonce *uint64, fee *big.Int) Attempt {
	return Attempt{
		index: index,
		nonce: copyNonce(nonce),
		fee:   copyFee(fee),
	}
}

// withOutcome returns a copy of a carrying the result of the submission.
func (a Attempt) withOutcome(hash common.Hash, err error, directive Directive) Attempt {
	a.nonce = copyNonce(a.nonce)
	a.fee = copyFee(a.fee)
	a.hash = hash
	a.err = err
	a.directive = directive
	return a
}

func (a Attempt) Index() int { return a.index }

func (a Attempt) Nonce() (uint64, bool) {
	if a.nonce == nil {
		return 0, false
	}
	return *a.nonce, true
}

func (a Attempt) Fee() *big.Int { return copyFee(a.fee) }

func (a Attempt) Hash() common.Hash { return a.hash }

func (a Attempt) Err() error { return a.err }

// Directive is the decision taken after this attempt.
func (a Attempt) Directive() Directive { return a.directive }

func (a Attempt) String() string {
	nonce := "auto"
	if a.nonce != nil {
		nonce = fmt.Sprintf("%d", *a.nonce)
	}
	fee := "auto"
	if a.fee != nil {
		fee = a.fee.String()
	}
	return fmt.Sprintf("attempt #%d (nonce: %s, fee: %s)", a.index, nonce, fee)
}

func copyNonce(n *uint64) *uint64 {
	if n == nil {
		return nil
	}
	v := *n
	return &v
}

func copyFee(f *big.Int) *big.Int {
	if f == nil {
		return nil
	}
	return new(big.Int).Set(f)
}
