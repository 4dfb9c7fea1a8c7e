// Package multicalltest provides an in-process Multicall3 endpoint for tests.
package multicalltest

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"sync/atomic"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"autopoolScope/internal/multicall"
)

// ErrUnavailable is returned by the endpoint for injected failures.
var ErrUnavailable = errors.New("endpoint unavailable: 429 too many requests")

// Responder answers one inner call of an aggregate3 batch.
type Responder func(height uint64, target common.Address, callData []byte) (success bool, returnData []byte)

// Endpoint decodes real aggregate3 calldata and answers it in memory.
// Block timestamps are height*SecondsPerBlock.
type Endpoint struct {
	Respond         Responder
	SecondsPerBlock uint64

	mu       sync.Mutex
	failures map[uint64]int
	attempts map[uint64]int
	calls    atomic.Int64
}

func NewEndpoint(respond Responder) *Endpoint {
	return &Endpoint{
		Respond:         respond,
		SecondsPerBlock: 12,
		failures:        make(map[uint64]int),
		attempts:        make(map[uint64]int),
	}
}

// FailFirst makes the first n calls at height fail. A negative n fails forever.
func (e *Endpoint) FailFirst(height uint64, n int) {
	e.mu.Lock()
	e.failures[height] = n
	e.mu.Unlock()
}

// Calls returns the number of CallContract invocations.
func (e *Endpoint) Calls() int {
	return int(e.calls.Load())
}

// Attempts returns the number of calls made at height.
func (e *Endpoint) Attempts(height uint64) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.attempts[height]
}

func (e *Endpoint) CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	e.calls.Add(1)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if blockNumber == nil || !blockNumber.IsUint64() {
		return nil, fmt.Errorf("historical block number required")
	}
	height := blockNumber.Uint64()

	e.mu.Lock()
	e.attempts[height]++
	attempt := e.attempts[height]
	limit, ok := e.failures[height]
	e.mu.Unlock()
	if ok && (limit < 0 || attempt <= limit) {
		return nil, ErrUnavailable
	}

	parsed, err := multicall.ABI()
	if err != nil {
		return nil, err
	}
	method, err := parsed.MethodById(msg.Data)
	if err != nil || method.Name != "aggregate3" {
		return nil, fmt.Errorf("unsupported call")
	}
	args, err := method.Inputs.Unpack(msg.Data[4:])
	if err != nil {
		return nil, fmt.Errorf("unpack aggregate3: %w", err)
	}
	calls := *abi.ConvertType(args[0], new([]multicall.Call3)).(*[]multicall.Call3)

	blockID := parsed.Methods["getBlockNumber"].ID
	timestampID := parsed.Methods["getCurrentBlockTimestamp"].ID

	results := make([]multicall.Result3, 0, len(calls))
	for _, call := range calls {
		var res multicall.Result3
		switch {
		case msg.To != nil && call.Target == *msg.To && hasSelector(call.CallData, blockID):
			res = multicall.Result3{Success: true, ReturnData: Uint256(height)}
		case msg.To != nil && call.Target == *msg.To && hasSelector(call.CallData, timestampID):
			res = multicall.Result3{Success: true, ReturnData: Uint256(height * e.SecondsPerBlock)}
		case e.Respond != nil:
			res.Success, res.ReturnData = e.Respond(height, call.Target, call.CallData)
		}
		if !res.Success && !call.AllowFailure {
			return nil, fmt.Errorf("execution reverted: Multicall3: call failed")
		}
		results = append(results, res)
	}

	return method.Outputs.Pack(results)
}

// Selector returns the 4-byte selector of a canonical signature such as "totalAssets()".
func Selector(signature string) []byte {
	return crypto.Keccak256([]byte(signature))[:4]
}

// Uint256 ABI-encodes v as a single uint256 word.
func Uint256(v uint64) []byte {
	return common.LeftPadBytes(new(big.Int).SetUint64(v).Bytes(), 32)
}

// Constant answers every call whose selector matches a key of values with the
// mapped uint256, at every height. Unknown selectors revert.
func Constant(values map[string]uint64) Responder {
	bySelector := make(map[string][]byte, len(values))
	for sig, v := range values {
		bySelector[string(Selector(sig))] = Uint256(v)
	}
	return func(_ uint64, _ common.Address, callData []byte) (bool, []byte) {
		if len(callData) < 4 {
			return false, nil
		}
		ret, ok := bySelector[string(callData[:4])]
		if !ok {
			return false, []byte("revert")
		}
		return true, ret
	}
}

func hasSelector(data []byte, selector []byte) bool {
	return len(data) >= 4 && string(data[:4]) == string(selector)
}
