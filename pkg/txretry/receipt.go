package txretry

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// Receipt is the confirmed result of a transaction.
type Receipt struct {
	TransactionHash   common.Hash     `json:"transaction_hash"`
	TransactionIndex  uint            `json:"transaction_index"`
	BlockHash         *common.Hash    `json:"block_hash,omitempty"`
	BlockNumber       *big.Int        `json:"block_number,omitempty"`
	From              common.Address  `json:"from"`
	To                *common.Address `json:"to,omitempty"`
	CumulativeGasUsed uint64          `json:"cumulative_gas_used"`
	GasUsed           *uint64         `json:"gas_used,omitempty"`
	ContractAddress   *common.Address `json:"contract_address,omitempty"`
	Status            *uint64         `json:"status,omitempty"`
	EffectiveGasPrice *big.Int        `json:"effective_gas_price,omitempty"`
}

// Succeeded reports whether the receipt carries a successful status.
func (r *Receipt) Succeeded() bool {
	return r != nil && r.Status != nil && *r.Status == types.ReceiptStatusSuccessful
}

// NewReceipt converts a node receipt. The node receipt does not carry the sender
// or the recipient, so they are passed in from the transaction.
func NewReceipt(r *types.Receipt, from common.Address, to *common.Address) *Receipt {
	if r == nil {
		return nil
	}

	out := &Receipt{
		TransactionHash:   r.TxHash,
		TransactionIndex:  r.TransactionIndex,
		From:              from,
		CumulativeGasUsed: r.CumulativeGasUsed,
	}

	if r.BlockHash != (common.Hash{}) {
		blockHash := r.BlockHash
		out.BlockHash = &blockHash
	}
	if r.BlockNumber != nil {
		out.BlockNumber = new(big.Int).Set(r.BlockNumber)
	}
	if to != nil {
		recipient := *to
		out.To = &recipient
	}
	if r.GasUsed > 0 {
		gasUsed := r.GasUsed
		out.GasUsed = &gasUsed
	}
	if r.ContractAddress != (common.Address{}) {
		contract := r.ContractAddress
		out.ContractAddress = &contract
	}
	status := r.Status
	out.Status = &status
	if r.EffectiveGasPrice != nil {
		out.EffectiveGasPrice = new(big.Int).Set(r.EffectiveGasPrice)
	}

	return out
}
