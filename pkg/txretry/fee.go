package txretry

import (
	"context"
	"fmt"
	"math/big"
)

// FeeBumpDivisor sets the escalation step: each bump adds fee/FeeBumpDivisor, i.e. 10%.
const FeeBumpDivisor = 10

// Escalate returns fee + floor(fee/10). Bids under 10 wei still go up by one wei.
func Escalate(fee *big.Int) *big.Int {
	bump := new(big.Int).Quo(fee, big.NewInt(FeeBumpDivisor))
	if bump.Sign() <= 0 {
		bump.SetInt64(1)
	}
	return new(big.Int).Add(fee, bump)
}

// GasPriceSuggester is the node call used for the initial bid.
type GasPriceSuggester interface {
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
}

// FeeEstimator provides the first fee bid and the bids that follow an underpriced rejection.
type FeeEstimator interface {
	InitialFee(ctx context.Context) (*big.Int, error)
	Escalate(fee *big.Int) *big.Int
}

// NetworkFeeEstimator asks the node for its suggested gas price.
type NetworkFeeEstimator struct {
	backend GasPriceSuggester
}

var _ FeeEstimator = (*NetworkFeeEstimator)(nil)

func NewNetworkFeeEstimator(backend GasPriceSuggester) *NetworkFeeEstimator {
	return &NetworkFeeEstimator{backend: backend}
}

func (e *NetworkFeeEstimator) InitialFee(ctx context.Context) (*big.Int, error) {
	fee, err := e.backend.SuggestGasPrice(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get gas price: %w", err)
	}
	if fee == nil || fee.Sign() < 0 {
		return nil, fmt.Errorf("invalid gas price suggested: %v", fee)
	}
	return new(big.Int).Set(fee), nil
}

func (e *NetworkFeeEstimator) Escalate(fee *big.Int) *big.Int {
	return Escalate(fee)
}
