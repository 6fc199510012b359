package txretry

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
)

// Submitter sends one transaction per call. It does not retry and returns provider errors unchanged.
type Submitter interface {
	// Submit signs and broadcasts the intent with the attempt's nonce and fee.
	Submit(ctx context.Context, intent Intent, attempt Attempt) (common.Hash, error)

	// WaitReceipt blocks until the transaction is mined or ctx is done.
	WaitReceipt(ctx context.Context, hash common.Hash) (*Receipt, error)
}
