// Package simulate replays scenario files of pool operations against pools
// deployed through the factory and journals every outcome.
package simulate

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"os"
	"time"

	"go.uber.org/zap"

	"ammPool/internal/factory"
	"ammPool/internal/ledger"
	"ammPool/internal/model"
	"ammPool/internal/pool"
	"ammPool/internal/storage"
	"ammPool/internal/tokenmeta"
)

// RunConfig holds runtime settings for a replay.
type RunConfig struct {
	Input        string
	BatchSize    int
	MaxRetries   int
	RetryBackoff time.Duration
}

// Stats summarises a replay.
type Stats struct {
	Total    int
	Applied  int
	Rejected int
	Failed   int
}

// Runner applies scenario operations and writes the resulting events to storage.
type Runner struct {
	cfg      RunConfig
	factory  *factory.Factory
	journal  *journalWriter
	resolver *tokenmeta.Resolver
	logger   *zap.Logger

	wallets map[string]*ledger.Wallet
	pools   map[string]factory.Deployment
	seq     uint64
	lastTS  uint64
	now     func() time.Time
}

// NewRunner builds a Runner. resolver may be nil.
func NewRunner(cfg RunConfig, f *factory.Factory, sink storage.Storage, resolver *tokenmeta.Resolver, logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	journal := &journalWriter{
		sink:    sink,
		retries: cfg.MaxRetries,
		backoff: cfg.RetryBackoff,
		logger:  logger,
	}
	return &Runner{
		cfg:      cfg,
		factory:  f,
		journal:  journal,
		resolver: resolver,
		logger:   logger,
		wallets:  make(map[string]*ledger.Wallet),
		pools:    make(map[string]factory.Deployment),
		now:      time.Now,
	}
}

// Wallet returns the wallet of an account, if it has one.
func (r *Runner) Wallet(account string) (*ledger.Wallet, bool) {
	wallet, ok := r.wallets[accountKey(account)]
	return wallet, ok
}

// Pool returns the deployment registered under alias.
func (r *Runner) Pool(alias string) (factory.Deployment, bool) {
	deployment, ok := r.pools[alias]
	return deployment, ok
}

// Run replays the scenario file.
func (r *Runner) Run(ctx context.Context) (Stats, error) {
	var stats Stats
	if r.factory == nil {
		return stats, fmt.Errorf("factory is nil")
	}
	if r.journal.sink == nil {
		return stats, fmt.Errorf("storage is nil")
	}
	if r.cfg.BatchSize <= 0 {
		r.cfg.BatchSize = 500
	}

	seq, err := r.journal.resume(ctx)
	if err != nil {
		return stats, err
	}
	r.seq = seq

	file, err := os.Open(r.cfg.Input)
	if err != nil {
		return stats, fmt.Errorf("open scenario: %w", err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 10*1024*1024)

	batch := make([]model.PoolEvent, 0, r.cfg.BatchSize)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 || line[0] == '#' {
			continue
		}
		stats.Total++

		select {
		case <-ctx.Done():
			return stats, ctx.Err()
		default:
		}

		var op model.Operation
		if err := json.Unmarshal(line, &op); err != nil {
			stats.Failed++
			r.logger.Warn("decode operation", zap.Int("line", lineNo), zap.Error(err))
			continue
		}

		event := r.Apply(ctx, op)
		if event.OK() {
			stats.Applied++
		} else {
			stats.Rejected++
			r.logger.Info("operation rejected",
				zap.Int("line", lineNo),
				zap.String("op", op.Op),
				zap.String("pool", op.Pool),
				zap.String("error", event.Error),
			)
		}
		batch = append(batch, event)

		if len(batch) >= r.cfg.BatchSize {
			if err := r.journal.write(ctx, batch); err != nil {
				return stats, err
			}
			batch = batch[:0]
		}
	}
	if err := scanner.Err(); err != nil {
		return stats, fmt.Errorf("scan scenario: %w", err)
	}

	if err := r.journal.write(ctx, batch); err != nil {
		return stats, err
	}

	r.logger.Info("simulation complete",
		zap.Int("total", stats.Total),
		zap.Int("applied", stats.Applied),
		zap.Int("rejected", stats.Rejected),
		zap.Int("failed", stats.Failed),
		zap.Int("pools", len(r.pools)),
	)
	return stats, nil
}

// Apply executes one operation and returns its journal event. Failures are
// reported through the event status rather than an error.
func (r *Runner) Apply(ctx context.Context, op model.Operation) model.PoolEvent {
	r.seq++
	event := model.PoolEvent{
		Seq:       r.seq,
		Timestamp: r.timestamp(op),
		Account:   op.Account,
		PoolAlias: op.Pool,
		Status:    model.StatusOK,
	}

	var err error
	switch op.Op {
	case model.OpFund:
		event.EventName = model.EventFund
		err = r.fund(op, &event)
	case model.OpCreate:
		event.EventName = model.EventCreate
		err = r.create(op, &event)
	case model.OpSwap:
		event.EventName = model.EventSwap
		err = r.swap(op, &event)
	case model.OpAddLiquidity:
		event.EventName = model.EventAddLiquidity
		err = r.addLiquidity(op, &event)
	case model.OpRemoveLiquidity:
		event.EventName = model.EventRemoveLiquidity
		err = r.removeLiquidity(op, &event)
	case model.OpPrice:
		event.EventName = model.EventPrice
		err = r.price(ctx, op, &event)
	default:
		event.EventName = op.Op
		err = fmt.Errorf("%w: %q", ErrUnknownOperation, op.Op)
	}

	if err != nil {
		event.Status = model.StatusRejected
		event.Error = err.Error()
	}
	return event
}

func (r *Runner) timestamp(op model.Operation) uint64 {
	switch {
	case op.Timestamp > 0:
		r.lastTS = op.Timestamp
	case r.lastTS == 0:
		r.lastTS = uint64(r.now().Unix())
	}
	return r.lastTS
}

func (r *Runner) wallet(account string) (*ledger.Wallet, error) {
	key := accountKey(account)
	if key == "" {
		return nil, ErrMissingAccount
	}
	wallet, ok := r.wallets[key]
	if !ok {
		wallet = ledger.NewWallet()
		r.wallets[key] = wallet
	}
	return wallet, nil
}

func (r *Runner) lookup(alias string) (factory.Deployment, error) {
	deployment, ok := r.pools[alias]
	if !ok {
		return factory.Deployment{}, fmt.Errorf("%w: %q", ErrUnknownPool, alias)
	}
	return deployment, nil
}

func (r *Runner) fund(op model.Operation, event *model.PoolEvent) error {
	wallet, err := r.wallet(op.Account)
	if err != nil {
		return err
	}
	bucket, err := parseBucket(op.Asset, op.Amount)
	if err != nil {
		return err
	}
	event.AssetIn = bucket.Asset.Hex()
	event.AmountIn = pool.FormatAmount(bucket.Amount)
	return wallet.Credit(bucket)
}

func (r *Runner) create(op model.Operation, event *model.PoolEvent) error {
	if _, exists := r.pools[op.Pool]; exists || op.Pool == "" {
		return fmt.Errorf("%w: %q", ErrPoolExists, op.Pool)
	}
	wallet, err := r.wallet(op.Account)
	if err != nil {
		return err
	}
	fee, err := pool.ParseAmount(op.Fee)
	if err != nil {
		return err
	}
	seeds, err := r.take(wallet, [2]string{op.AssetA, op.AmountA}, [2]string{op.AssetB, op.AmountB})
	if err != nil {
		return err
	}

	deployment, err := r.factory.CreatePool(seeds[0], seeds[1], fee)
	if err != nil {
		r.refund(wallet, seeds...)
		return err
	}
	r.pools[op.Pool] = deployment

	r.credit(wallet, deployment.Claims)
	if deployment.Admin != nil {
		r.credit(wallet, *deployment.Admin)
	}

	event.AmountA = pool.FormatAmount(seeds[0].Amount)
	event.AmountB = pool.FormatAmount(seeds[1].Amount)
	event.Claims = pool.FormatAmount(deployment.Claims.Amount)
	withState(event, deployment.Engine.Snapshot())
	return nil
}

func (r *Runner) swap(op model.Operation, event *model.PoolEvent) error {
	entry, err := r.lookup(op.Pool)
	if err != nil {
		return err
	}
	wallet, err := r.wallet(op.Account)
	if err != nil {
		return err
	}
	event.Pool = entry.Engine.Address().Hex()
	event.AssetIn = op.Asset
	event.AmountIn = op.Amount

	inputs, err := r.take(wallet, [2]string{op.Asset, op.Amount})
	if err != nil {
		return err
	}
	input := inputs[0]
	event.AssetIn = input.Asset.Hex()
	event.AmountIn = pool.FormatAmount(input.Amount)

	engine := entry.Engine
	out, err := engine.Swap(input)
	if err != nil {
		r.refund(wallet, input)
		withState(event, engine.Snapshot())
		return err
	}
	r.credit(wallet, out)

	event.AssetOut = out.Asset.Hex()
	event.AmountOut = pool.FormatAmount(out.Amount)
	withState(event, engine.Snapshot())
	return nil
}

func (r *Runner) addLiquidity(op model.Operation, event *model.PoolEvent) error {
	entry, err := r.lookup(op.Pool)
	if err != nil {
		return err
	}
	wallet, err := r.wallet(op.Account)
	if err != nil {
		return err
	}
	engine := entry.Engine
	event.Pool = engine.Address().Hex()

	deposits, err := r.take(wallet, [2]string{op.AssetA, op.AmountA}, [2]string{op.AssetB, op.AmountB})
	if err != nil {
		return err
	}

	leftoverA, leftoverB, claims, err := engine.AddLiquidity(deposits[0], deposits[1])
	if err != nil {
		r.refund(wallet, deposits...)
		withState(event, engine.Snapshot())
		return err
	}
	r.credit(wallet, leftoverA, leftoverB, claims)

	depositA, depositB := deposits[0], deposits[1]
	if depositA.Asset != engine.AssetA() {
		depositA, depositB = depositB, depositA
	}
	event.AmountA = pool.FormatAmount(new(big.Rat).Sub(depositA.Amount, leftoverA.Amount))
	event.AmountB = pool.FormatAmount(new(big.Rat).Sub(depositB.Amount, leftoverB.Amount))
	event.LeftoverA = pool.FormatAmount(leftoverA.Amount)
	event.LeftoverB = pool.FormatAmount(leftoverB.Amount)
	event.Claims = pool.FormatAmount(claims.Amount)
	withState(event, engine.Snapshot())
	return nil
}

func (r *Runner) removeLiquidity(op model.Operation, event *model.PoolEvent) error {
	entry, err := r.lookup(op.Pool)
	if err != nil {
		return err
	}
	wallet, err := r.wallet(op.Account)
	if err != nil {
		return err
	}
	engine := entry.Engine
	event.Pool = engine.Address().Hex()

	amount, err := pool.ParseAmount(op.Amount)
	if err != nil {
		return err
	}
	claims, err := wallet.Take(engine.ClaimIdentity(), amount)
	if err != nil {
		return err
	}

	outA, outB, err := engine.RemoveLiquidity(claims)
	if err != nil {
		r.refund(wallet, claims)
		withState(event, engine.Snapshot())
		return err
	}
	r.credit(wallet, outA, outB)

	event.Claims = pool.FormatAmount(claims.Amount)
	event.AmountA = pool.FormatAmount(outA.Amount)
	event.AmountB = pool.FormatAmount(outB.Amount)
	withState(event, engine.Snapshot())
	return nil
}

// price queries the spot price. Pools deployed with an admin badge require the
// account to hold it.
func (r *Runner) price(ctx context.Context, op model.Operation, event *model.PoolEvent) error {
	entry, err := r.lookup(op.Pool)
	if err != nil {
		return err
	}
	engine := entry.Engine
	event.Pool = engine.Address().Hex()

	var price *big.Rat
	if guard := entry.Guard; guard != nil {
		wallet, err := r.wallet(op.Account)
		if err != nil {
			return err
		}
		credential := pool.NewBucket(guard.Badge(), wallet.Balance(guard.Badge()))
		price, err = guard.SpotPrice(credential)
		if err != nil {
			return err
		}
	} else {
		price, err = engine.SpotPrice()
		if err != nil {
			return err
		}
	}

	event.Price = pool.FormatAmount(price)
	event.PriceText = fmt.Sprintf("1 %s = %s %s",
		r.resolver.Label(ctx, engine.AssetB()),
		event.Price,
		r.resolver.Label(ctx, engine.AssetA()),
	)
	withState(event, engine.Snapshot())
	return nil
}

// take withdraws (asset, amount) pairs from the wallet, returning everything
// already taken when a later pair fails.
func (r *Runner) take(wallet *ledger.Wallet, pairs ...[2]string) ([]pool.Bucket, error) {
	taken := make([]pool.Bucket, 0, len(pairs))
	for _, pair := range pairs {
		want, err := parseBucket(pair[0], pair[1])
		if err == nil {
			var bucket pool.Bucket
			bucket, err = wallet.Take(want.Asset, want.Amount)
			if err == nil {
				taken = append(taken, bucket)
				continue
			}
		}
		r.refund(wallet, taken...)
		return nil, err
	}
	return taken, nil
}

func (r *Runner) refund(wallet *ledger.Wallet, buckets ...pool.Bucket) {
	r.credit(wallet, buckets...)
}

func (r *Runner) credit(wallet *ledger.Wallet, buckets ...pool.Bucket) {
	for _, bucket := range buckets {
		if bucket.IsEmpty() {
			continue
		}
		if err := wallet.Credit(bucket); err != nil {
			r.logger.Error("credit wallet", zap.String("asset", bucket.Asset.Hex()), zap.Error(err))
		}
	}
}

func withState(event *model.PoolEvent, state pool.State) {
	event.Pool = state.Address.Hex()
	event.AssetA = state.AssetA.Hex()
	event.AssetB = state.AssetB.Hex()
	event.ClaimToken = state.ClaimToken.Hex()
	event.FeeRate = pool.FormatAmount(state.FeeRate)
	event.ReserveA = pool.FormatAmount(state.ReserveA)
	event.ReserveB = pool.FormatAmount(state.ReserveB)
	event.ClaimSupply = pool.FormatAmount(state.ClaimSupply)
}
