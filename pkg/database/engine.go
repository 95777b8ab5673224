// Package database wires the storage, logging, concurrency, and
// execution subsystems into one engine and drives the transaction
// lifecycle.
package database

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"reldb/pkg/catalog"
	"reldb/pkg/concurrency/lock"
	"reldb/pkg/concurrency/transaction"
	"reldb/pkg/config"
	"reldb/pkg/execution"
	"reldb/pkg/log"
	"reldb/pkg/memory"
	"reldb/pkg/optimizer"
	"reldb/pkg/plan"
	"reldb/pkg/primitives"
	"reldb/pkg/storage/disk"
	"reldb/pkg/tuple"
)

// Engine is the assembled database core. Recovery is not part of
// Open: callers run Recover after registering their tables and before
// starting any transaction.
type Engine struct {
	cfg     config.Config
	disk    *disk.DiskManager
	pool    *memory.BufferPool
	logs    *log.Manager
	txns    *transaction.Manager
	locks   *lock.Manager
	catalog *catalog.MemoryCatalog
	opt     *optimizer.Optimizer
}

// Open builds the engine under cfg.DataDir. It does not replay an
// existing log stream; that is Recover's job.
func Open(cfg config.Config) (*Engine, error) {
	dm, err := disk.NewDiskManager(cfg.DataDir)
	if err != nil {
		return nil, err
	}

	txns := transaction.NewManager()
	logs, err := log.NewManager(dm, txns)
	if err != nil {
		return nil, err
	}

	pool := memory.NewBufferPool(cfg.PoolSize, dm)
	pool.SetLogFlusher(logs)
	logs.SetBufferPool(pool)

	cat := catalog.NewMemoryCatalog(pool, logs, dm)
	logs.SetCatalog(cat)

	locks := lock.NewManager()
	locks.SetDeadlockPolicy(cfg.DeadlockPolicy)

	e := &Engine{
		cfg:     cfg,
		disk:    dm,
		pool:    pool,
		logs:    logs,
		txns:    txns,
		locks:   locks,
		catalog: cat,
		opt:     optimizer.NewOptimizer(cat, cfg.JoinOrder, cfg.EnableProjectionPushdown),
	}

	logrus.WithField("data_dir", cfg.DataDir).Info("database engine opened")
	return e, nil
}

// Recover replays the log. Tables must be registered in the catalog
// first so redo can resolve their database oids.
func (e *Engine) Recover() error {
	if !e.disk.LogExists() {
		return nil
	}
	return e.logs.Recover()
}

// Catalog exposes the catalog for table registration.
func (e *Engine) Catalog() *catalog.MemoryCatalog { return e.catalog }

// Pool exposes the buffer pool.
func (e *Engine) Pool() *memory.BufferPool { return e.pool }

// Logs exposes the log manager.
func (e *Engine) Logs() *log.Manager { return e.logs }

// Txns exposes the transaction manager.
func (e *Engine) Txns() *transaction.Manager { return e.txns }

// Locks exposes the lock manager.
func (e *Engine) Locks() *lock.Manager { return e.locks }

// Begin starts a transaction: a fresh xid, an ATT entry via the Begin
// log record.
func (e *Engine) Begin() (primitives.XID, error) {
	xid := e.txns.Begin()
	if _, err := e.logs.AppendBeginLog(xid); err != nil {
		return 0, err
	}
	return xid, nil
}

// Commit makes the transaction durable. Only after the commit record
// is flushed does the transaction leave the active set; its locks are
// released last.
func (e *Engine) Commit(xid primitives.XID) error {
	if _, err := e.logs.AppendCommitLog(xid); err != nil {
		return fmt.Errorf("commit of %d failed: %w", xid, err)
	}
	if err := e.txns.Commit(xid); err != nil {
		return err
	}
	e.locks.ReleaseLocks(xid)
	return nil
}

// Rollback undoes the transaction's whole chain, writes the terminal
// rollback record, and releases its locks.
func (e *Engine) Rollback(xid primitives.XID) error {
	if err := e.logs.Rollback(xid); err != nil {
		return fmt.Errorf("rollback of %d failed: %w", xid, err)
	}
	if _, err := e.logs.AppendRollbackLog(xid); err != nil {
		return err
	}
	if err := e.txns.Rollback(xid); err != nil {
		return err
	}
	e.locks.ReleaseLocks(xid)
	return nil
}

// Checkpoint forces a fuzzy checkpoint.
func (e *Engine) Checkpoint() error {
	_, err := e.logs.Checkpoint()
	return err
}

// Execute optimizes the plan, builds its executor tree, and drains it,
// returning every produced record. The cid identifies the statement
// within its transaction.
func (e *Engine) Execute(p plan.Node, xid primitives.XID, cid primitives.CID,
	iso transaction.IsolationLevel) ([]*tuple.Record, error) {
	p = e.opt.Optimize(p)

	ctx := &execution.Context{
		Catalog:   e.catalog,
		Locks:     e.locks,
		Txns:      e.txns,
		Pool:      e.pool,
		Xid:       xid,
		Cid:       cid,
		Isolation: iso,
	}

	exec, err := execution.Build(ctx, p)
	if err != nil {
		return nil, err
	}
	if err := exec.Init(); err != nil {
		return nil, err
	}

	var out []*tuple.Record
	for {
		rec, err := exec.Next()
		if err != nil {
			return nil, err
		}
		if rec == nil {
			return out, nil
		}
		out = append(out, rec)
	}
}

// Close flushes everything and releases the file handles. A clean
// shutdown leaves a log whose replay reproduces the on-disk state.
func (e *Engine) Close() error {
	if err := e.logs.FlushAll(); err != nil {
		return err
	}
	if err := e.pool.FlushAll(); err != nil {
		return err
	}
	if err := e.disk.Sync(); err != nil {
		return err
	}
	return e.disk.Close()
}
