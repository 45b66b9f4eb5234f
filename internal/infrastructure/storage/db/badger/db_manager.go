package dbbadger

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v3"
	"github.com/dgraph-io/badger/v3/options"
	log "github.com/sirupsen/logrus"
	"github.com/tdex-network/fiatln-daemon/internal/core/domain"
	"github.com/tdex-network/fiatln-daemon/internal/core/ports"
	"github.com/timshannon/badgerhold/v4"
)

const (
	orderSeqKey        = "seq_order"
	buyTxSeqKey        = "seq_buy_tx"
	sellTxSeqKey       = "seq_sell_tx"
	counterOfferSeqKey = "seq_counter_offer"

	sequenceBandwidth = 100
	gcInterval        = 30 * time.Minute
)

type txKey struct{}

type repoManager struct {
	store  *badgerhold.Store
	stopGC func()

	// Serializes the write transactions, that are then never in conflict.
	txLock sync.Mutex

	orderSeq        *badger.Sequence
	buyTxSeq        *badger.Sequence
	sellTxSeq       *badger.Sequence
	counterOfferSeq *badger.Sequence

	orderRepository        domain.OrderRepository
	transactionRepository  domain.TransactionRepository
	counterOfferRepository domain.CounterOfferRepository
	configRepository       domain.ConfigRepository
}

// NewRepoManager opens (or creates if not exists) the badger store in the
// given dir. The store is kept in memory if baseDbDir is empty.
func NewRepoManager(baseDbDir string, logger badger.Logger) (ports.RepoManager, error) {
	var dbDir string
	if len(baseDbDir) > 0 {
		dbDir = filepath.Join(baseDbDir, "orders")
	}

	store, stopGC, err := createDb(dbDir, logger)
	if err != nil {
		return nil, fmt.Errorf("opening orders db: %w", err)
	}

	rm := &repoManager{store: store, stopGC: stopGC}
	for key, seq := range map[string]**badger.Sequence{
		orderSeqKey:        &rm.orderSeq,
		buyTxSeqKey:        &rm.buyTxSeq,
		sellTxSeqKey:       &rm.sellTxSeq,
		counterOfferSeqKey: &rm.counterOfferSeq,
	} {
		s, err := store.Badger().GetSequence([]byte(key), sequenceBandwidth)
		if err != nil {
			rm.Close()
			return nil, fmt.Errorf("opening sequence %s: %w", key, err)
		}
		*seq = s
	}

	rm.orderRepository = orderRepositoryImpl{rm}
	rm.transactionRepository = transactionRepositoryImpl{rm}
	rm.counterOfferRepository = counterOfferRepositoryImpl{rm}
	rm.configRepository = configRepositoryImpl{rm}
	return rm, nil
}

func (r *repoManager) OrderRepository() domain.OrderRepository {
	return r.orderRepository
}

func (r *repoManager) TransactionRepository() domain.TransactionRepository {
	return r.transactionRepository
}

func (r *repoManager) CounterOfferRepository() domain.CounterOfferRepository {
	return r.counterOfferRepository
}

func (r *repoManager) ConfigRepository() domain.ConfigRepository {
	return r.configRepository
}

// RunTransaction runs handler in a badger transaction that the repositories
// find in the context. The transaction is committed only if handler succeeds.
// Nested calls join the outer transaction.
func (r *repoManager) RunTransaction(
	ctx context.Context, readOnly bool, handler func(ctx context.Context) error,
) error {
	if _, ok := ctx.Value(txKey{}).(*badger.Txn); ok {
		return handler(ctx)
	}

	if !readOnly {
		r.txLock.Lock()
		defer r.txLock.Unlock()
	}

	txn := r.store.Badger().NewTransaction(!readOnly)
	defer txn.Discard()

	if err := handler(context.WithValue(ctx, txKey{}, txn)); err != nil {
		return err
	}
	if readOnly {
		return nil
	}
	return txn.Commit()
}

func (r *repoManager) Close() {
	for _, seq := range []*badger.Sequence{
		r.orderSeq, r.buyTxSeq, r.sellTxSeq, r.counterOfferSeq,
	} {
		if seq == nil {
			continue
		}
		if err := seq.Release(); err != nil {
			log.WithError(err).Warn("failed to release db sequence")
		}
	}
	r.stopGC()
	if err := r.store.Close(); err != nil {
		log.WithError(err).Warn("failed to close orders db")
	}
}

// view runs fn with the transaction in ctx, if any, or in a new read-only
// one.
func (r *repoManager) view(ctx context.Context, fn func(txn *badger.Txn) error) error {
	if txn, ok := ctx.Value(txKey{}).(*badger.Txn); ok {
		return fn(txn)
	}
	return r.store.Badger().View(fn)
}

// update runs fn with the transaction in ctx, if any, or in a new one
// committed right after.
func (r *repoManager) update(ctx context.Context, fn func(txn *badger.Txn) error) error {
	if txn, ok := ctx.Value(txKey{}).(*badger.Txn); ok {
		return fn(txn)
	}

	r.txLock.Lock()
	defer r.txLock.Unlock()
	return r.store.Badger().Update(fn)
}

func nextID(seq *badger.Sequence) (int64, error) {
	// Sequences start from 0, that is reserved for unset ids.
	n, err := seq.Next()
	if err != nil {
		return 0, err
	}
	return int64(n) + 1, nil
}

func createDb(dbDir string, logger badger.Logger) (*badgerhold.Store, func(), error) {
	isInMemory := len(dbDir) <= 0

	opts := badger.DefaultOptions(dbDir)
	opts.Logger = logger

	if isInMemory {
		opts.InMemory = true
	} else {
		opts.Compression = options.ZSTD
	}

	db, err := badgerhold.Open(badgerhold.Options{
		Encoder:          badgerhold.DefaultEncode,
		Decoder:          badgerhold.DefaultDecode,
		SequenceBandwith: sequenceBandwidth,
		Options:          opts,
	})
	if err != nil {
		return nil, nil, err
	}

	if isInMemory {
		return db, func() {}, nil
	}

	ticker := time.NewTicker(gcInterval)
	done := make(chan struct{})
	go func() {
		for {
			select {
			case <-ticker.C:
				if err := db.Badger().RunValueLogGC(0.5); err != nil &&
					err != badger.ErrNoRewrite {
					log.Error(err)
				}
			case <-done:
				ticker.Stop()
				return
			}
		}
	}()

	return db, func() { close(done) }, nil
}
