package txretry

import (
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Intent is a contract call to be sent: method(owner, tokenID, payload) on contract.
// It is immutable; accessors return copies.
type Intent struct {
	contract common.Address
	method   string
	owner    common.Address
	tokenID  *big.Int
	payload  []byte
}

// NewIntent validates and copies the call arguments.
func NewIntent(contract common.Address, method string, owner common.Address, tokenID *big.Int, payload []byte) (Intent, error) {
	if method == "" {
		return Intent{}, errors.New("method is required")
	}
	if tokenID == nil || tokenID.Sign() < 0 {
		return Intent{}, errors.New("token id must be a non-negative integer")
	}
	if contract == (common.Address{}) {
		return Intent{}, errors.New("contract address is required")
	}

	return Intent{
		contract: contract,
		method:   method,
		owner:    owner,
		tokenID:  new(big.Int).Set(tokenID),
		payload:  append([]byte(nil), payload...),
	}, nil
}

func (i Intent) Contract() common.Address { return i.contract }
func (i Intent) Method() string            { return i.method }
func (i Intent) Owner() common.Address     { return i.owner }

func (i Intent) TokenID() *big.Int {
	if i.tokenID == nil {
		return nil
	}
	return new(big.Int).Set(i.tokenID)
}

func (i Intent) Payload() []byte {
	return append([]byte(nil), i.payload...)
}

// Args returns the ABI call arguments in declaration order.
func (i Intent) Args() []interface{} {
	return []interface{}{i.owner, i.TokenID(), i.Payload()}
}
