package tokenmeta

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ammPool/internal/chain"
)

var (
	usdc  = common.HexToAddress("0x00000000000000000000000000000000000000aa")
	maker = common.HexToAddress("0x00000000000000000000000000000000000000bb")
)

// fakeToken answers ERC20 metadata calls by selector.
type fakeToken struct {
	responses map[string][]byte
	calls     int
}

func (f *fakeToken) respond(selector []byte) ([]byte, error) {
	f.calls++
	resp, ok := f.responses[string(selector[:4])]
	if !ok {
		return nil, errors.New("execution reverted")
	}
	return resp, nil
}

func (f *fakeToken) CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	return f.respond(msg.Data)
}

func mustPack(t *testing.T, parsed abi.ABI, method string, value interface{}) []byte {
	t.Helper()
	out, err := parsed.Methods[method].Outputs.Pack(value)
	require.NoError(t, err)
	return out
}

func stringToken(t *testing.T, decimals uint8, symbol, name string) *fakeToken {
	parsed, err := erc20Meta()
	require.NoError(t, err)
	return &fakeToken{responses: map[string][]byte{
		string(parsed.Methods["decimals"].ID): mustPack(t, parsed, "decimals", decimals),
		string(parsed.Methods["symbol"].ID):   mustPack(t, parsed, "symbol", symbol),
		string(parsed.Methods["name"].ID):     mustPack(t, parsed, "name", name),
	}}
}

func TestFetchTokenMetaString(t *testing.T) {
	caller := stringToken(t, 6, "USDC", "USD Coin")

	meta, err := FetchTokenMeta(context.Background(), caller, usdc, nil)
	require.NoError(t, err)
	assert.Equal(t, uint8(6), meta.Decimals)
	assert.Equal(t, "USDC", meta.Symbol)
	assert.Equal(t, "USD Coin", meta.Name)
	assert.Equal(t, usdc.Hex(), meta.Address)
}

func TestFetchTokenMetaBytes32Fallback(t *testing.T) {
	parsed, err := erc20Meta()
	require.NoError(t, err)
	fallback, err := erc20MetaBytes32()
	require.NoError(t, err)

	var symbol, name [32]byte
	copy(symbol[:], "MKR")
	copy(name[:], "Maker")
	caller := &fakeToken{responses: map[string][]byte{
		string(parsed.Methods["decimals"].ID): mustPack(t, parsed, "decimals", uint8(18)),
		string(parsed.Methods["symbol"].ID):   mustPack(t, fallback, "symbol", symbol),
		string(parsed.Methods["name"].ID):     mustPack(t, fallback, "name", name),
	}}

	meta, err := FetchTokenMeta(context.Background(), caller, maker, nil)
	require.NoError(t, err)
	assert.Equal(t, "MKR", meta.Symbol)
	assert.Equal(t, "Maker", meta.Name)
}

func TestResolverCachesFailures(t *testing.T) {
	caller := &fakeToken{responses: map[string][]byte{}}
	resolver := NewResolver(caller, nil)

	assert.Equal(t, "0x0000..00aa", resolver.Label(context.Background(), usdc))
	calls := caller.calls
	assert.Equal(t, "0x0000..00aa", resolver.Label(context.Background(), usdc))
	assert.Equal(t, calls, caller.calls)
}

func TestNilResolverLabel(t *testing.T) {
	var resolver *Resolver
	assert.Equal(t, "0x0000..00bb", resolver.Label(context.Background(), maker))
}

// ethService serves eth_call over an in-process RPC server.
type ethService struct {
	token *fakeToken
}

func (s *ethService) Call(ctx context.Context, args map[string]interface{}, block string) (hexutil.Bytes, error) {
	input, ok := args["input"].(string)
	if !ok {
		input, ok = args["data"].(string)
	}
	if !ok {
		return nil, errors.New("missing call data")
	}
	data, err := hexutil.Decode(input)
	if err != nil {
		return nil, err
	}
	return s.token.respond(data)
}

func TestResolverOverRPC(t *testing.T) {
	server := rpc.NewServer()
	require.NoError(t, server.RegisterName("eth", &ethService{token: stringToken(t, 8, "WBTC", "Wrapped BTC")}))
	defer server.Stop()

	client := chain.NewClientFromRPC(rpc.DialInProc(server))
	defer client.Close()

	resolver := NewResolver(client, nil)
	meta, err := resolver.Resolve(context.Background(), usdc)
	require.NoError(t, err)
	assert.Equal(t, "WBTC", meta.Symbol)
	assert.Equal(t, uint8(8), meta.Decimals)
	assert.Equal(t, "WBTC", resolver.Label(context.Background(), usdc))
}
