// Package tokenmeta labels pool assets with their ERC20 symbol when an RPC
// endpoint is available.
package tokenmeta

import (
	"bytes"
	"context"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"ammPool/internal/model"
)

// Caller performs read-only contract calls; *chain.Client satisfies it.
type Caller interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

// Resolver fetches and caches token metadata. A nil Resolver labels every
// asset with its shortened address.
type Resolver struct {
	caller Caller
	logger *zap.Logger

	mu   sync.RWMutex
	data map[common.Address]model.TokenMeta
}

func NewResolver(caller Caller, logger *zap.Logger) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{
		caller: caller,
		logger: logger,
		data:   make(map[common.Address]model.TokenMeta),
	}
}

// Resolve returns cached metadata or fetches it. Failed lookups are cached as
// address-only metadata so a missing token is queried once.
func (r *Resolver) Resolve(ctx context.Context, token common.Address) (model.TokenMeta, error) {
	r.mu.RLock()
	meta, ok := r.data[token]
	r.mu.RUnlock()
	if ok {
		return meta, nil
	}

	meta, err := FetchTokenMeta(ctx, r.caller, token, r.logger)
	if err != nil {
		r.logger.Warn("token metadata fetch failed", zap.String("token", token.Hex()), zap.Error(err))
		meta = model.TokenMeta{Address: token.Hex()}
	}

	r.mu.Lock()
	r.data[token] = meta
	r.mu.Unlock()
	return meta, err
}

// Label returns the token symbol, or a shortened address when none is known.
func (r *Resolver) Label(ctx context.Context, token common.Address) string {
	if r == nil {
		return ShortAddress(token)
	}
	meta, _ := r.Resolve(ctx, token)
	if meta.Symbol == "" {
		return ShortAddress(token)
	}
	return meta.Symbol
}

// ShortAddress renders 0x1234..abcd.
func ShortAddress(address common.Address) string {
	hex := strings.ToLower(address.Hex())
	return hex[:6] + ".." + hex[len(hex)-4:]
}

// FetchTokenMeta loads decimals, symbol and name via ERC20 calls.
func FetchTokenMeta(ctx context.Context, caller Caller, token common.Address, logger *zap.Logger) (model.TokenMeta, error) {
	meta := model.TokenMeta{Address: token.Hex()}
	if caller == nil {
		return meta, fmt.Errorf("contract caller is nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	stringABI, err := erc20Meta()
	if err != nil {
		return meta, fmt.Errorf("parse erc20 abi: %w", err)
	}
	fallbackABI, err := erc20MetaBytes32()
	if err != nil {
		return meta, fmt.Errorf("parse erc20 bytes32 abi: %w", err)
	}

	call := func(method string, parsed abi.ABI) ([]interface{}, error) {
		data, err := parsed.Pack(method)
		if err != nil {
			return nil, fmt.Errorf("pack %s: %w", method, err)
		}
		resp, err := caller.CallContract(ctx, ethereum.CallMsg{To: &token, Data: data}, nil)
		if err != nil {
			return nil, fmt.Errorf("call %s: %w", method, err)
		}
		values, err := parsed.Unpack(method, resp)
		if err != nil {
			return nil, fmt.Errorf("unpack %s: %w", method, err)
		}
		if len(values) == 0 {
			return nil, fmt.Errorf("unpack %s: empty result", method)
		}
		return values, nil
	}

	values, err := call("decimals", stringABI)
	if err != nil {
		return meta, err
	}
	decimals, ok := values[0].(uint8)
	if !ok {
		return meta, fmt.Errorf("unsupported decimals type %T", values[0])
	}
	meta.Decimals = decimals

	meta.Symbol = textField(call, "symbol", stringABI, fallbackABI, logger, token)
	meta.Name = textField(call, "name", stringABI, fallbackABI, logger, token)

	return meta, nil
}

func textField(
	call func(string, abi.ABI) ([]interface{}, error),
	method string,
	stringABI, fallbackABI abi.ABI,
	logger *zap.Logger,
	token common.Address,
) string {
	if values, err := call(method, stringABI); err == nil {
		if text, ok := values[0].(string); ok {
			return text
		}
	}
	values, err := call(method, fallbackABI)
	if err != nil {
		logger.Debug(method+" call failed", zap.String("token", token.Hex()), zap.Error(err))
		return ""
	}
	if raw, ok := values[0].([32]byte); ok {
		return string(bytes.TrimRight(raw[:], "\x00"))
	}
	return ""
}
