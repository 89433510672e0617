// Copyright 2025 Blockscout
//
// Package cctx implements buffer.Item/ItemFactory for ZetaChain
// cross-chain transactions. Unlike bridge messages, a CCTX arrives as
// a sequence of full snapshots whose status advances over time; the
// buffer keeps the newest snapshot per index and consolidates once the
// status is terminal.
package cctx

import (
	"encoding/json"

	"github.com/blockscout/indexing-core/internal/model"
)

// Status is the ZetaChain-reported lifecycle state of a CCTX.
type Status string

const (
	StatusPendingInbound  Status = "PendingInbound"
	StatusPendingOutbound Status = "PendingOutbound"
	StatusOutboundMined   Status = "OutboundMined"
	StatusPendingRevert   Status = "PendingRevert"
	StatusReverted        Status = "Reverted"
	StatusAborted         Status = "Aborted"
)

// Terminal reports whether the node will never change this status again.
func (s Status) Terminal() bool {
	return s == StatusOutboundMined || s == StatusReverted || s == StatusAborted
}

// CctxStatus is the status envelope carried by every CCTX snapshot.
type CctxStatus struct {
	Status              Status `json:"status"`
	StatusMessage       string `json:"status_message"`
	ErrorMessage        string `json:"error_message"`
	LastUpdateTimestamp string `json:"lastUpdate_timestamp"`
	CreatedTimestamp    string `json:"created_timestamp"`
	IsAbortRefunded     bool   `json:"isAbortRefunded"`
}

// InboundParams describes the observed inbound leg of a CCTX.
type InboundParams struct {
	Sender                string `json:"sender"`
	SenderChainID         string `json:"sender_chain_id"`
	TxOrigin              string `json:"tx_origin"`
	CoinType              string `json:"coin_type"`
	Asset                 string `json:"asset"`
	Amount                string `json:"amount"`
	ObservedHash          string `json:"observed_hash"`
	ObservedExternalHeight string `json:"observed_external_height"`
	FinalizedZetaHeight   string `json:"finalized_zeta_height"`
	TxFinalizationStatus  string `json:"tx_finalization_status"`
}

// OutboundParams describes one outbound leg of a CCTX; reverts add a
// second entry.
type OutboundParams struct {
	Receiver               string `json:"receiver"`
	ReceiverChainID        string `json:"receiver_chainId"`
	CoinType               string `json:"coin_type"`
	Amount                 string `json:"amount"`
	Hash                   string `json:"hash"`
	ObservedExternalHeight string `json:"observed_external_height"`
	GasUsed                string `json:"gas_used"`
	TxFinalizationStatus   string `json:"tx_finalization_status"`
}

// CrossChainTx is one full CCTX snapshot as the ZetaChain node reports
// it.
type CrossChainTx struct {
	Creator        string           `json:"creator"`
	Index          string           `json:"index"`
	ZetaFees       string           `json:"zeta_fees"`
	RelayedMessage string           `json:"relayed_message"`
	CctxStatus     CctxStatus       `json:"cctx_status"`
	InboundParams  InboundParams    `json:"inbound_params"`
	OutboundParams []OutboundParams `json:"outbound_params"`
}

// Token is a ZetaChain foreign-coin record, synced alongside CCTXs so
// transfers can be labeled with symbol and decimals.
type Token struct {
	Zrc20ContractAddress string `json:"zrc20_contract_address"`
	Asset                string `json:"asset"`
	ForeignChainID       string `json:"foreign_chain_id"`
	Decimals             int32  `json:"decimals"`
	Name                 string `json:"name"`
	Symbol               string `json:"symbol"`
	CoinType             string `json:"coin_type"`
}

// Decode parses a raw record payload back into a snapshot.
func Decode(payload []byte) (CrossChainTx, error) {
	var tx CrossChainTx
	err := json.Unmarshal(payload, &tx)
	return tx, err
}

// SnapshotRow flattens a node-reported snapshot into its storable row,
// keeping the raw JSON alongside the extracted columns.
func SnapshotRow(tx CrossChainTx, raw []byte) model.CCTXSnapshot {
	return model.CCTXSnapshot{
		Index:          tx.Index,
		Creator:        tx.Creator,
		Status:         string(tx.CctxStatus.Status),
		StatusMessage:  tx.CctxStatus.StatusMessage,
		RelayedMessage: tx.RelayedMessage,
		SenderChainID:  parseChainID(tx.InboundParams.SenderChainID),
		Sender:         tx.InboundParams.Sender,
		Amount:         tx.InboundParams.Amount,
		Asset:          tx.InboundParams.Asset,
		LastUpdateUnix: parseUnixInt(tx.CctxStatus.LastUpdateTimestamp),
		Raw:            append([]byte(nil), raw...),
	}
}

// TokenInfo maps a foreign-coin record onto the shared token shape.
func (t Token) TokenInfo() model.TokenInfo {
	return model.TokenInfo{
		Address:  t.Zrc20ContractAddress,
		Symbol:   t.Symbol,
		Name:     t.Name,
		Decimals: t.Decimals,
		ChainID:  parseChainID(t.ForeignChainID),
		CoinType: t.CoinType,
	}
}
