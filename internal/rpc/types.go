package rpc

import (
	"github.com/Klingon-tech/cellwallet/internal/wallet"
	"github.com/Klingon-tech/cellwallet/pkg/tx"
	"github.com/Klingon-tech/cellwallet/pkg/types"
)

// JSON-RPC 2.0 error codes.
const (
	CodeParseError     = -32700
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternalError  = -32603
	CodeNotFound       = -32000
	// CodeRejected means the ledger refused a transaction. The message is
	// the reason.
	CodeRejected = -32001
)

// Method names.
const (
	MethodGetTip          = "get_tip"
	MethodGetCells        = "get_cells"
	MethodGetLiveCell     = "get_live_cell"
	MethodSendTransaction = "send_transaction"
	MethodGetTransaction  = "get_transaction"
	MethodGetPoolInfo     = "get_pool_info"
)

// Request is a JSON-RPC 2.0 request.
type Request struct {
	JSONRPC string      `json:"jsonrpc"`
	Method  string      `json:"method"`
	Params  interface{} `json:"params"`
	ID      interface{} `json:"id"`
}

// Response is a JSON-RPC 2.0 response.
type Response struct {
	JSONRPC string      `json:"jsonrpc"`
	Result  interface{} `json:"result,omitempty"`
	Error   *Error      `json:"error,omitempty"`
	ID      interface{} `json:"id"`
}

// Error is a JSON-RPC 2.0 error object.
type Error struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func (e *Error) Error() string {
	return e.Message
}

// ── Param types ─────────────────────────────────────────────────────────

// CellsParam selects cells by lock or by address. Lock wins when both
// are set.
type CellsParam struct {
	Lock    *types.Lock `json:"lock,omitempty"`
	Address string      `json:"address,omitempty"`
}

// OutPointParam is used by get_live_cell.
type OutPointParam struct {
	OutPoint types.OutPoint `json:"out_point"`
}

// TxSubmitParam is used by send_transaction.
type TxSubmitParam struct {
	Transaction *tx.Transaction `json:"transaction"`
}

// HashParam is used by endpoints that take a single hash.
type HashParam struct {
	Hash string `json:"hash"`
}

// ── Result types ────────────────────────────────────────────────────────

// TipResult describes the ledger head.
type TipResult struct {
	ChainID   string     `json:"chain_id"`
	Genesis   types.Hash `json:"genesis"`
	Number    uint64     `json:"number"`
	Hash      types.Hash `json:"hash"`
	Timestamp int64      `json:"timestamp"`
}

// CellsResult lists live cells.
type CellsResult struct {
	Cells []types.Cell `json:"cells"`
}

// TxSubmitResult is returned by send_transaction.
type TxSubmitResult struct {
	TxHash types.Hash `json:"tx_hash"`
}

// TxResult is returned by get_transaction. Transaction is nil when the
// status is unknown.
type TxResult struct {
	Transaction *tx.Transaction `json:"transaction,omitempty"`
	Status      wallet.TxStatus `json:"status"`
	BlockNumber uint64          `json:"block_number,omitempty"`
	Fee         uint64          `json:"fee,omitempty"`
}

// PoolInfoResult describes the pending pool.
type PoolInfoResult struct {
	Count      int    `json:"count"`
	MinFeeRate uint64 `json:"min_fee_rate"`
}
