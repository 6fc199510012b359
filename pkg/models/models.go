package models

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-playground/validator/v10"
	"github.com/speedrun-hq/speedrun-minter/pkg/txretry"
)

// Mint statuses reported in a MintResult
const (
	StatusSubmitted = "submitted"
	StatusConfirmed = "confirmed"
	StatusReverted  = "reverted"
	StatusFailed    = "failed"
)

// MetadataAttribute is one trait of the token metadata
type MetadataAttribute struct {
	TraitType   string      `json:"trait_type" validate:"required"`
	DisplayType *string     `json:"display_type,omitempty"`
	Value       interface{} `json:"value"`
}

// Metadata is the token metadata passed to the contract as the data argument
type Metadata struct {
	Name        string              `json:"name" validate:"required"`
	Description string              `json:"description"`
	Image       string              `json:"image"`
	ExternalURL string              `json:"external_url"`
	Attributes  []MetadataAttribute `json:"attributes" validate:"dive"`
}

// MintRequest represents a request to mint one token
type MintRequest struct {
	// ID makes the request idempotent; one is generated when empty
	ID               string   `json:"id,omitempty"`
	OwnerAddress     string   `json:"owner_address" validate:"required,eth_addr"`
	TokenID          uint64   `json:"token_id"`
	Metadata         Metadata `json:"metadata"`
	WaitConfirmation *bool    `json:"wait_confirmation,omitempty"`
}

// ShouldWait returns whether the caller wants to wait for the receipt, true by default
func (r MintRequest) ShouldWait() bool {
	return r.WaitConfirmation == nil || *r.WaitConfirmation
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// report fields by their json names
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Validate checks the request fields
func (r MintRequest) Validate() error {
	if err := validate.Struct(r); err != nil {
		var fieldErrs validator.ValidationErrors
		if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
			return err
		}

		first := fieldErrs[0]
		field := strings.TrimPrefix(first.Namespace(), "MintRequest.")
		if first.Tag() == "required" {
			return fmt.Errorf("%s is required", field)
		}
		return fmt.Errorf("invalid %s: %v does not satisfy %s", field, first.Value(), first.Tag())
	}

	if common.HexToAddress(r.OwnerAddress) == (common.Address{}) {
		return errors.New("owner_address must not be the zero address")
	}
	return nil
}

// NFTDetails describes the minted token
type NFTDetails struct {
	TokenID  uint64   `json:"token_id"`
	Owner    string   `json:"owner"`
	Metadata Metadata `json:"metadata"`
}

// TxResult describes the transaction that carried the mint
type TxResult struct {
	Hash     string           `json:"transaction_hash"`
	Nonce    *uint64          `json:"nonce,omitempty"`
	GasPrice string           `json:"gas_price"`
	Attempts int              `json:"attempts"`
	Receipt  *txretry.Receipt `json:"receipt,omitempty"`
}

// MintResult is the outcome of a mint request
type MintResult struct {
	ID         string     `json:"id"`
	Status     string     `json:"status"`
	NFTDetails NFTDetails `json:"nft_details"`
	TxResult   *TxResult  `json:"tx_result,omitempty"`
	Error      string     `json:"error,omitempty"`
	ErrorType  string     `json:"error_type,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

// Final reports whether the result will not change, so it can be replayed for a repeated request
func (r *MintResult) Final() bool {
	return r.Status != StatusFailed || r.ErrorType == "ambiguous_outcome"
}

// PendingTransaction is a broadcast transaction that has no receipt yet
type PendingTransaction struct {
	Nonce     uint64    `json:"nonce"`
	Hash      string    `json:"hash"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

// ServiceStatus is reported by the status endpoint
type ServiceStatus struct {
	ChainID             int                  `json:"chain_id"`
	ChainName           string               `json:"chain_name"`
	NFTAddress          string               `json:"nft_address"`
	MintMethod          string               `json:"mint_method"`
	Signer              string               `json:"signer"`
	LatestBlock         uint64               `json:"latest_block,omitempty"`
	BlockError          string               `json:"block_error,omitempty"`
	GasPrice            string               `json:"gas_price,omitempty"`
	SignerBalance       string               `json:"signer_balance,omitempty"`
	Workers             int                  `json:"workers"`
	QueueLength         int                  `json:"queue_length"`
	PendingTransactions []PendingTransaction `json:"pending_transactions"`
	CircuitOpen         bool                 `json:"circuit_open"`
}
