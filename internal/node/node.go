// Package node provides the devnet ledger node that backs the wallet in
// local development and integration tests. It can be embedded in any
// binary (the celld daemon, tests).
package node

import (
	"context"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/lightningnetwork/lnd/ticker"
	"github.com/rs/zerolog"

	"github.com/Klingon-tech/cellwallet/config"
	"github.com/Klingon-tech/cellwallet/internal/ledger"
	klog "github.com/Klingon-tech/cellwallet/internal/log"
	"github.com/Klingon-tech/cellwallet/internal/rpc"
	"github.com/Klingon-tech/cellwallet/internal/storage"
)

// Node is a fully-initialized devnet node.
type Node struct {
	cfg     *config.Config
	genesis *config.Genesis
	logger  zerolog.Logger

	// Core
	db     storage.DB
	ledger *ledger.Ledger

	// RPC
	rpcServer *rpc.Server

	// Block production
	newTicker func(time.Duration) ticker.Ticker

	// Lifecycle
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates and initializes a new Node. It performs all setup steps
// (logger, genesis, storage, ledger, RPC) but does NOT start background
// goroutines. Call Start() for that.
func New(cfg *config.Config) (*Node, error) {
	// ── 1. Network ──────────────────────────────────────────────────
	if cfg.Network != config.Devnet {
		return nil, fmt.Errorf("celld only serves %s, got %s", config.Devnet, cfg.Network)
	}
	params := config.ParamsFor(cfg.Network)

	// ── 2. Init logger ──────────────────────────────────────────────
	logFile := expandHome(cfg.Log.File)
	if logFile == "" {
		logsDir := cfg.LogsDir()
		if err := os.MkdirAll(logsDir, 0755); err != nil {
			return nil, fmt.Errorf("creating logs dir: %w", err)
		}
		logFile = filepath.Join(logsDir, "celld.log")
	}
	if err := klog.Init(cfg.Log.Level, cfg.Log.JSON, logFile); err != nil {
		return nil, fmt.Errorf("initializing logger: %w", err)
	}
	logger := klog.WithComponent("node")

	// ── 3. Genesis ──────────────────────────────────────────────────
	genesis, err := loadGenesis(cfg.Ledger.GenesisFile)
	if err != nil {
		return nil, err
	}

	logger.Info().
		Str("chain_id", genesis.ChainID).
		Str("network", string(cfg.Network)).
		Int("allocations", len(genesis.Alloc)).
		Dur("block_time", cfg.Ledger.BlockInterval).
		Msg("Starting cell devnet node")

	// ── 4. Open storage ─────────────────────────────────────────────
	db, err := openStorage(cfg)
	if err != nil {
		return nil, err
	}
	logger.Info().
		Str("backend", cfg.Ledger.Backend).
		Str("path", cfg.CellsDir()).
		Msg("Database opened")

	// ── 5. Ledger ───────────────────────────────────────────────────
	l, err := ledger.New(db, genesis, klog.Ledger)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("open ledger: %w", err)
	}
	tip := l.Tip()
	cells, err := l.Cells().Count()
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("count cells: %w", err)
	}
	logger.Info().
		Uint64("number", tip.Number).
		Str("genesis", l.Genesis().String()).
		Int("cells", cells).
		Msg("Ledger ready")

	// ── 6. RPC server ───────────────────────────────────────────────
	var rpcServer *rpc.Server
	if cfg.RPC.Enabled {
		addr := net.JoinHostPort(cfg.RPC.Addr, strconv.Itoa(cfg.RPC.Port))
		rpcServer = rpc.New(addr, l, params, genesis.ChainID, cfg.RPC, klog.RPC)
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Node{
		cfg:       cfg,
		genesis:   genesis,
		logger:    logger,
		db:        db,
		ledger:    l,
		rpcServer: rpcServer,
		newTicker: func(d time.Duration) ticker.Ticker {
			return ticker.New(d)
		},
		ctx:    ctx,
		cancel: cancel,
	}, nil
}

// Start starts the RPC listener and the block producer.
func (n *Node) Start() error {
	if n.rpcServer != nil {
		if err := n.rpcServer.Start(); err != nil {
			return fmt.Errorf("start rpc: %w", err)
		}
	}

	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		n.runBlockProducer(n.cfg.Ledger.BlockInterval)
	}()

	n.logger.Info().
		Str("rpc", n.RPCAddr()).
		Dur("block_time", n.cfg.Ledger.BlockInterval).
		Msg("Node started successfully")
	return nil
}

// Stop shuts the node down and closes the database.
func (n *Node) Stop() {
	n.cancel()
	n.wg.Wait()

	if n.rpcServer != nil {
		if err := n.rpcServer.Stop(); err != nil {
			n.logger.Warn().Err(err).Msg("RPC shutdown")
		}
	}
	if n.db != nil {
		if err := n.db.Close(); err != nil {
			n.logger.Error().Err(err).Msg("Closing database")
		}
	}

	n.logger.Info().Msg("Goodbye!")
}

// RPCAddr returns the RPC listen address, or "" when RPC is disabled.
func (n *Node) RPCAddr() string {
	if n.rpcServer == nil {
		return ""
	}
	return n.rpcServer.Addr()
}

// RPCURL returns the endpoint wallets should dial.
func (n *Node) RPCURL() string {
	if n.rpcServer == nil {
		return ""
	}
	return n.rpcServer.URL()
}

// Ledger returns the node's ledger.
func (n *Node) Ledger() *ledger.Ledger {
	return n.ledger
}

// ChainID returns the genesis chain id.
func (n *Node) ChainID() string {
	return n.genesis.ChainID
}

// ── Block production ────────────────────────────────────────────────

func (n *Node) runBlockProducer(interval time.Duration) {
	t := n.newTicker(interval)
	t.Resume()
	defer t.Stop()

	for {
		select {
		case <-n.ctx.Done():
			n.logger.Info().Msg("Block production stopped")
			return
		case <-t.Ticks():
			n.produceBlock()
		}
	}
}

// produceBlock commits pending transactions. An empty pool produces nothing.
func (n *Node) produceBlock() {
	defer klog.Benchmark("produce_block")()
	blk, err := n.ledger.Commit()
	if err != nil {
		n.logger.Error().Err(err).Msg("Failed to commit block")
		return
	}
	if blk == nil {
		return
	}
	n.logger.Debug().
		Uint64("number", blk.Number).
		Int("txs", len(blk.Transactions)).
		Int("pending", n.ledger.Pool().Count()).
		Msg("Block produced")
}
