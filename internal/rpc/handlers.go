package rpc

import (
	"context"
	"errors"
	"fmt"

	"github.com/Klingon-tech/cellwallet/internal/ledger"
	"github.com/Klingon-tech/cellwallet/internal/wallet"
	"github.com/Klingon-tech/cellwallet/pkg/types"
)

func (s *Server) handleGetTip(_ *Request) (interface{}, *Error) {
	tip := s.ledger.Tip()
	return &TipResult{
		ChainID:   s.chainID,
		Genesis:   s.ledger.Genesis(),
		Number:    tip.Number,
		Hash:      tip.Hash,
		Timestamp: tip.Timestamp,
	}, nil
}

func (s *Server) handleGetCells(ctx context.Context, req *Request) (interface{}, *Error) {
	var params CellsParam
	if err := parseParams(req, &params); err != nil {
		return nil, err
	}

	var lock types.Lock
	switch {
	case params.Lock != nil:
		if err := params.Lock.Validate(); err != nil {
			return nil, &Error{Code: CodeInvalidParams, Message: err.Error()}
		}
		lock = *params.Lock
	case params.Address != "":
		l, err := s.params.ParseAddress(params.Address)
		if err != nil {
			return nil, &Error{Code: CodeInvalidParams, Message: err.Error()}
		}
		lock = l
	default:
		return nil, &Error{Code: CodeInvalidParams, Message: "lock or address is required"}
	}

	cells, err := s.ledger.LiveCells(ctx, lock)
	if err != nil {
		return nil, &Error{Code: CodeInternalError, Message: fmt.Sprintf("get cells: %v", err)}
	}
	if cells == nil {
		cells = []types.Cell{}
	}
	return &CellsResult{Cells: cells}, nil
}

func (s *Server) handleGetLiveCell(req *Request) (interface{}, *Error) {
	var params OutPointParam
	if err := parseParams(req, &params); err != nil {
		return nil, err
	}
	cell, err := s.ledger.Cells().LiveCell(params.OutPoint)
	if errors.Is(err, ledger.ErrCellNotFound) || (err == nil && s.ledger.Pool().Spent(params.OutPoint)) {
		return nil, &Error{Code: CodeNotFound, Message: fmt.Sprintf("cell %s is not live", params.OutPoint)}
	}
	if err != nil {
		return nil, &Error{Code: CodeInternalError, Message: err.Error()}
	}
	return &cell, nil
}

func (s *Server) handleSendTransaction(ctx context.Context, req *Request) (interface{}, *Error) {
	var params TxSubmitParam
	if err := parseParams(req, &params); err != nil {
		return nil, err
	}
	if params.Transaction == nil {
		return nil, &Error{Code: CodeInvalidParams, Message: "transaction is required"}
	}

	hash, err := s.ledger.SubmitTransaction(ctx, params.Transaction)
	var rejected *wallet.RejectedError
	switch {
	case errors.As(err, &rejected):
		return nil, &Error{Code: CodeRejected, Message: rejected.Reason}
	case err != nil:
		return nil, &Error{Code: CodeInternalError, Message: err.Error()}
	}
	return &TxSubmitResult{TxHash: hash}, nil
}

func (s *Server) handleGetTransaction(req *Request) (interface{}, *Error) {
	var params HashParam
	if err := parseParams(req, &params); err != nil {
		return nil, err
	}
	hash, err := types.HexToHash(params.Hash)
	if err != nil {
		return nil, &Error{Code: CodeInvalidParams, Message: fmt.Sprintf("invalid hash: %v", err)}
	}

	rec, err := s.ledger.Transaction(hash)
	if errors.Is(err, ledger.ErrTxNotFound) {
		return &TxResult{Status: wallet.StatusUnknown}, nil
	}
	if err != nil {
		return nil, &Error{Code: CodeInternalError, Message: err.Error()}
	}
	return &TxResult{
		Transaction: rec.Transaction,
		Status:      rec.Status,
		BlockNumber: rec.BlockNumber,
		Fee:         rec.Fee,
	}, nil
}

func (s *Server) handleGetPoolInfo(_ *Request) (interface{}, *Error) {
	pool := s.ledger.Pool()
	return &PoolInfoResult{
		Count:      pool.Count(),
		MinFeeRate: pool.MinFeeRate(),
	}, nil
}
