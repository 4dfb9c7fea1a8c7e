package multicall

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

var ErrBlockMismatch = errors.New("aggregated call answered for a different block")

// Caller performs an eth_call at a block height. *chain.Client satisfies it.
type Caller interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

// Batch is a list of calls evaluated together at one block height.
// With RequireSuccess set, any reverting call fails the whole batch instead
// of producing a nil value.
type Batch struct {
	Calls          []Call
	Height         uint64
	RequireSuccess bool
}

// Result holds the decoded values of one batch together with the block
// number and timestamp read in the same aggregated call.
type Result struct {
	Block     uint64
	Timestamp uint64
	Values    map[string]interface{}
}

// Invoker evaluates batches through a Multicall3 aggregate3 eth_call.
type Invoker struct {
	caller  Caller
	address common.Address
}

func NewInvoker(caller Caller, address common.Address) *Invoker {
	if address == (common.Address{}) {
		address = DefaultAddress
	}
	return &Invoker{caller: caller, address: address}
}

// Address returns the Multicall3 contract the invoker targets.
func (i *Invoker) Address() common.Address {
	return i.address
}

// Invoke performs one round trip for the batch. Transport and node errors are
// returned as-is; retrying is the caller's concern.
func (i *Invoker) Invoke(ctx context.Context, batch Batch) (Result, error) {
	if i.caller == nil {
		return Result{}, fmt.Errorf("caller is nil")
	}

	parsed, err := ABI()
	if err != nil {
		return Result{}, fmt.Errorf("parse multicall3 abi: %w", err)
	}

	calls, err := i.buildCalls(parsed, batch)
	if err != nil {
		return Result{}, err
	}
	data, err := parsed.Pack("aggregate3", calls)
	if err != nil {
		return Result{}, fmt.Errorf("pack aggregate3: %w", err)
	}

	to := i.address
	resp, err := i.caller.CallContract(ctx, ethereum.CallMsg{To: &to, Data: data}, new(big.Int).SetUint64(batch.Height))
	if err != nil {
		return Result{}, fmt.Errorf("aggregate3 at block %d: %w", batch.Height, err)
	}

	out, err := parsed.Unpack("aggregate3", resp)
	if err != nil {
		return Result{}, fmt.Errorf("unpack aggregate3 at block %d: %w", batch.Height, err)
	}
	if len(out) != 1 {
		return Result{}, fmt.Errorf("unpack aggregate3 at block %d: unexpected output count %d", batch.Height, len(out))
	}
	results := *abi.ConvertType(out[0], new([]Result3)).(*[]Result3)
	if len(results) != len(calls) {
		return Result{}, fmt.Errorf("aggregate3 at block %d: got %d results for %d calls", batch.Height, len(results), len(calls))
	}

	block, err := unpackUint64(parsed, "getBlockNumber", results[0])
	if err != nil {
		return Result{}, err
	}
	if block != batch.Height {
		return Result{}, fmt.Errorf("%w: requested %d, got %d", ErrBlockMismatch, batch.Height, block)
	}
	timestamp, err := unpackUint64(parsed, "getCurrentBlockTimestamp", results[1])
	if err != nil {
		return Result{}, err
	}

	values := make(map[string]interface{}, len(batch.Calls))
	for idx, call := range batch.Calls {
		res := results[idx+2]
		values[call.name] = call.DecodeResult(res.Success, res.ReturnData)
	}

	return Result{Block: block, Timestamp: timestamp, Values: values}, nil
}

func (i *Invoker) buildCalls(parsed abi.ABI, batch Batch) ([]Call3, error) {
	blockData, err := parsed.Pack("getBlockNumber")
	if err != nil {
		return nil, fmt.Errorf("pack getBlockNumber: %w", err)
	}
	timestampData, err := parsed.Pack("getCurrentBlockTimestamp")
	if err != nil {
		return nil, fmt.Errorf("pack getCurrentBlockTimestamp: %w", err)
	}

	calls := make([]Call3, 0, len(batch.Calls)+2)
	calls = append(calls,
		Call3{Target: i.address, CallData: blockData},
		Call3{Target: i.address, CallData: timestampData},
	)
	for _, call := range batch.Calls {
		calls = append(calls, Call3{
			Target:       call.target,
			AllowFailure: !batch.RequireSuccess,
			CallData:     call.callData,
		})
	}
	return calls, nil
}

func unpackUint64(parsed abi.ABI, method string, res Result3) (uint64, error) {
	if !res.Success {
		return 0, fmt.Errorf("%s reverted", method)
	}
	values, err := parsed.Unpack(method, res.ReturnData)
	if err != nil {
		return 0, fmt.Errorf("unpack %s: %w", method, err)
	}
	v, ok := asBigInt(values[0])
	if !ok || !v.IsUint64() {
		return 0, fmt.Errorf("%s: unexpected value %v", method, values[0])
	}
	return v.Uint64(), nil
}
