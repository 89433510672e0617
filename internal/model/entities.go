// Copyright 2025 Blockscout

package model

// UserOperation is one indexed ERC-4337 EntryPoint event.
type UserOperation struct {
	Hash          string
	Sender        string
	Paymaster     string
	Nonce         string
	Success       bool
	ActualGasCost string // decimal string, avoids integer precision loss
	ActualGasUsed string
	ChainID       int64
	BlockNumber   uint64
	LogIndex      uint32
	TxHash        string
}

// DABlob is one indexed data-availability blob, keyed by
// (height, namespace, commitment).
type DABlob struct {
	Height       uint64
	Namespace    string
	Commitment   string
	Data         []byte
	ShareVersion uint32
}

// CCTXSnapshot is the flattened cross_chain_tx row stored alongside
// the consolidated message a terminal CCTX produces. Index is the full
// 32-byte hash; the consolidated message only carries its folded key.
type CCTXSnapshot struct {
	Index          string
	Creator        string
	Status         string
	StatusMessage  string
	RelayedMessage string
	SenderChainID  int64
	Sender         string
	Amount         string
	Asset          string
	LastUpdateUnix int64
	Raw            []byte // full node-reported JSON, kept for reprocessing
}

// TokenInfo is a foreign-coin record used to label transfers.
type TokenInfo struct {
	Address  string
	Symbol   string
	Name     string
	Decimals int32
	ChainID  int64
	CoinType string
}
