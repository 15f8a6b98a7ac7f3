// Package factory validates pool parameters, derives pool identities and
// wires new engines to their custody collaborators.
package factory

import (
	"fmt"
	"math/big"
	"sort"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"go.uber.org/zap"

	"ammPool/internal/access"
	"ammPool/internal/pool"
)

// Identities are derived from the pool address the way contracts derive
// child addresses from their own address and nonce.
const (
	claimTokenNonce = 1
	adminBadgeNonce = 2
)

// Custody issues the collaborators each new pool owns exclusively.
type Custody interface {
	NewVault(asset common.Address) pool.Vault
	NewClaimToken(identity common.Address) pool.ClaimToken
	NewBadge(identity common.Address) pool.Bucket
}

// Config controls pool deployment.
type Config struct {
	Deployer    common.Address
	AdminBadges bool
}

// Deployment is everything handed back to the creator of a pool.
type Deployment struct {
	Engine *pool.Engine
	Claims pool.Bucket
	Admin  *pool.Bucket
	Guard  *access.Guard
}

// Factory creates pools and keeps a registry of them by address.
type Factory struct {
	cfg     Config
	custody Custody
	logger  *zap.Logger
	metrics *pool.Metrics

	mu    sync.RWMutex
	nonce uint64
	pools map[common.Address]*pool.Engine
}

func New(cfg Config, custody Custody, logger *zap.Logger, metrics *pool.Metrics) *Factory {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Factory{
		cfg:     cfg,
		custody: custody,
		logger:  logger,
		metrics: metrics,
		pools:   make(map[common.Address]*pool.Engine),
	}
}

// CreatePool validates the parameters, then deploys a pool seeded with the
// initial buckets. Nothing is allocated when validation fails.
func (f *Factory) CreatePool(initialA, initialB pool.Bucket, fee *big.Rat) (Deployment, error) {
	if f.custody == nil {
		return Deployment{}, fmt.Errorf("custody is nil")
	}
	if err := pool.ValidateCreate(initialA, initialB, fee); err != nil {
		return Deployment{}, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	address := crypto.CreateAddress(f.cfg.Deployer, f.nonce)
	claimIdentity := crypto.CreateAddress(address, claimTokenNonce)

	engine, claims, err := pool.Create(pool.Params{
		Address: address,
		VaultA:  f.custody.NewVault(initialA.Asset),
		VaultB:  f.custody.NewVault(initialB.Asset),
		Claims:  f.custody.NewClaimToken(claimIdentity),
		FeeRate: fee,
		Logger:  f.logger,
		Metrics: f.metrics,
	}, initialA, initialB)
	if err != nil {
		return Deployment{}, fmt.Errorf("create pool: %w", err)
	}

	f.nonce++
	f.pools[address] = engine

	deployment := Deployment{Engine: engine, Claims: claims}
	if f.cfg.AdminBadges {
		badgeIdentity := crypto.CreateAddress(address, adminBadgeNonce)
		badge := f.custody.NewBadge(badgeIdentity)
		deployment.Admin = &badge
		deployment.Guard = access.NewGuard(engine, badgeIdentity)
	}

	f.logger.Info("pool deployed",
		zap.String("pool", address.Hex()),
		zap.String("claim_token", claimIdentity.Hex()),
		zap.Bool("admin_badge", deployment.Admin != nil),
	)

	return deployment, nil
}

func (f *Factory) Pool(address common.Address) (*pool.Engine, bool) {
	f.mu.RLock()
	engine, ok := f.pools[address]
	f.mu.RUnlock()
	return engine, ok
}

// Pools lists registered pool addresses in address order.
func (f *Factory) Pools() []common.Address {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := make([]common.Address, 0, len(f.pools))
	for address := range f.pools {
		out = append(out, address)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Cmp(out[j]) < 0
	})
	return out
}
