package tokenmeta

import (
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

const erc20MetaJSON = `[
  {"inputs": [], "name": "decimals", "outputs": [{"type": "uint8"}], "stateMutability": "view", "type": "function"},
  {"inputs": [], "name": "symbol", "outputs": [{"type": "string"}], "stateMutability": "view", "type": "function"},
  {"inputs": [], "name": "name", "outputs": [{"type": "string"}], "stateMutability": "view", "type": "function"}
]`

// Some early tokens return bytes32 for symbol and name.
const erc20MetaBytes32JSON = `[
  {"inputs": [], "name": "symbol", "outputs": [{"type": "bytes32"}], "stateMutability": "view", "type": "function"},
  {"inputs": [], "name": "name", "outputs": [{"type": "bytes32"}], "stateMutability": "view", "type": "function"}
]`

var (
	metaABIOnce sync.Once
	metaABI     abi.ABI
	metaABIErr  error

	bytes32ABIOnce sync.Once
	bytes32ABI     abi.ABI
	bytes32ABIErr  error
)

func erc20Meta() (abi.ABI, error) {
	metaABIOnce.Do(func() {
		metaABI, metaABIErr = abi.JSON(strings.NewReader(erc20MetaJSON))
	})
	return metaABI, metaABIErr
}

func erc20MetaBytes32() (abi.ABI, error) {
	bytes32ABIOnce.Do(func() {
		bytes32ABI, bytes32ABIErr = abi.JSON(strings.NewReader(erc20MetaBytes32JSON))
	})
	return bytes32ABI, bytes32ABIErr
}
