package rpcclient

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Klingon-tech/cellwallet/internal/rpc"
	"github.com/Klingon-tech/cellwallet/internal/wallet"
	"github.com/Klingon-tech/cellwallet/pkg/tx"
	"github.com/Klingon-tech/cellwallet/pkg/types"
)

// NodeClient implements wallet.Node over JSON-RPC.
type NodeClient struct {
	c *Client
}

var _ wallet.Node = (*NodeClient)(nil)

// NewNodeClient wraps c.
func NewNodeClient(c *Client) *NodeClient {
	return &NodeClient{c: c}
}

// Dial creates a NodeClient for endpoint.
func Dial(endpoint string, timeout time.Duration) *NodeClient {
	return NewNodeClient(NewWithTimeout(endpoint, timeout))
}

// LiveCells returns the live cells guarded by lock.
func (n *NodeClient) LiveCells(ctx context.Context, lock types.Lock) ([]types.Cell, error) {
	var res rpc.CellsResult
	if err := n.c.Call(ctx, rpc.MethodGetCells, rpc.CellsParam{Lock: &lock}, &res); err != nil {
		return nil, n.classify(ctx, err)
	}
	return res.Cells, nil
}

// SubmitTransaction sends a signed transaction. A refusal by the ledger
// is returned as *wallet.RejectedError.
func (n *NodeClient) SubmitTransaction(ctx context.Context, t *tx.Transaction) (types.Hash, error) {
	var res rpc.TxSubmitResult
	err := n.c.Call(ctx, rpc.MethodSendTransaction, rpc.TxSubmitParam{Transaction: t}, &res)
	var rpcErr *RPCError
	if errors.As(err, &rpcErr) && rpcErr.Code == rpc.CodeRejected {
		return types.Hash{}, &wallet.RejectedError{Reason: rpcErr.Message}
	}
	if err != nil {
		return types.Hash{}, n.classify(ctx, err)
	}
	return res.TxHash, nil
}

// TransactionStatus reports the status of a transaction.
func (n *NodeClient) TransactionStatus(ctx context.Context, hash types.Hash) (wallet.TxStatus, error) {
	var res rpc.TxResult
	if err := n.c.Call(ctx, rpc.MethodGetTransaction, rpc.HashParam{Hash: hash.String()}, &res); err != nil {
		return wallet.StatusUnknown, n.classify(ctx, err)
	}
	return res.Status, nil
}

// Tip returns the node's head block.
func (n *NodeClient) Tip(ctx context.Context) (*rpc.TipResult, error) {
	var res rpc.TipResult
	if err := n.c.Call(ctx, rpc.MethodGetTip, nil, &res); err != nil {
		return nil, n.classify(ctx, err)
	}
	return &res, nil
}

// classify maps transport failures to wallet.ErrIndexUnavailable and
// leaves cancellation and server errors as they are.
func (n *NodeClient) classify(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
		return err
	}
	if errors.Is(err, ErrTransport) {
		return fmt.Errorf("%w: %s: %w", wallet.ErrIndexUnavailable, n.c.Endpoint(), err)
	}
	return err
}
