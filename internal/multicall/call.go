package multicall

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

// Synthetic result names filled from the aggregated call itself.
const (
	NameBlock     = "block"
	NameTimestamp = "timestamp"
)

var (
	ErrDuplicateName = errors.New("duplicate result name")
	ErrReservedName  = errors.New("reserved result name")
)

// Call describes one read-only contract invocation and how to decode its result.
// Calls are immutable and can be evaluated at any number of block heights.
type Call struct {
	target    common.Address
	signature string
	name      string
	args      []interface{}
	decode    Decoder
	method    abi.Method
	callData  []byte
}

// NewCall builds a call from a signature of the form "name(inputs)(outputs)",
// e.g. "convertToAssets(uint256)(uint256)". Args must be the Go types go-ethereum's
// ABI packer expects (common.Address, *big.Int, []byte, bool, ...).
func NewCall(target common.Address, signature string, name string, decode Decoder, args ...interface{}) (Call, error) {
	if strings.TrimSpace(name) == "" {
		return Call{}, fmt.Errorf("call %s: result name is required", signature)
	}
	if decode == nil {
		decode = Raw
	}

	method, err := parseSignature(signature)
	if err != nil {
		return Call{}, fmt.Errorf("call %s: %w", name, err)
	}
	packed, err := method.Inputs.Pack(args...)
	if err != nil {
		return Call{}, fmt.Errorf("call %s: pack %s: %w", name, method.Sig, err)
	}

	callData := make([]byte, 0, len(method.ID)+len(packed))
	callData = append(callData, method.ID...)
	callData = append(callData, packed...)

	return Call{
		target:    target,
		signature: signature,
		name:      name,
		args:      append([]interface{}(nil), args...),
		decode:    decode,
		method:    method,
		callData:  callData,
	}, nil
}

// MustCall is NewCall for descriptors built from constant signatures.
func MustCall(target common.Address, signature string, name string, decode Decoder, args ...interface{}) Call {
	call, err := NewCall(target, signature, name, decode, args...)
	if err != nil {
		panic(err)
	}
	return call
}

func (c Call) Target() common.Address { return c.target }
func (c Call) Signature() string      { return c.signature }
func (c Call) Name() string           { return c.name }
func (c Call) Args() []interface{}    { return append([]interface{}(nil), c.args...) }

// CallData returns the ABI-encoded calldata (selector plus packed arguments).
func (c Call) CallData() []byte { return append([]byte(nil), c.callData...) }

// DecodeResult maps one aggregate3 result to a value. The success flag is
// authoritative: a failed call is always nil, whatever bytes came with it.
func (c Call) DecodeResult(success bool, returnData []byte) interface{} {
	if !success {
		return nil
	}
	values, err := c.method.Outputs.Unpack(returnData)
	if err != nil {
		return nil
	}
	return c.decode(true, values)
}

// ValidateNames checks that result names are unique and do not collide with
// the synthetic block and timestamp columns.
func ValidateNames(calls []Call) error {
	seen := make(map[string]struct{}, len(calls))
	for _, call := range calls {
		if call.name == NameBlock || call.name == NameTimestamp {
			return fmt.Errorf("%w: %q", ErrReservedName, call.name)
		}
		if _, ok := seen[call.name]; ok {
			return fmt.Errorf("%w: %q", ErrDuplicateName, call.name)
		}
		seen[call.name] = struct{}{}
	}
	return nil
}

func parseSignature(signature string) (abi.Method, error) {
	sig := strings.ReplaceAll(signature, " ", "")
	open := strings.IndexByte(sig, '(')
	if open <= 0 {
		return abi.Method{}, fmt.Errorf("invalid signature %q", signature)
	}
	name := sig[:open]

	closeIdx := matchParen(sig, open)
	if closeIdx < 0 {
		return abi.Method{}, fmt.Errorf("unbalanced signature %q", signature)
	}

	inputs, err := parseArguments(sig[open+1 : closeIdx])
	if err != nil {
		return abi.Method{}, fmt.Errorf("inputs of %q: %w", signature, err)
	}

	var outputs abi.Arguments
	rest := sig[closeIdx+1:]
	if rest != "" {
		if rest[0] != '(' || matchParen(rest, 0) != len(rest)-1 {
			return abi.Method{}, fmt.Errorf("invalid outputs in %q", signature)
		}
		outputs, err = parseArguments(rest[1 : len(rest)-1])
		if err != nil {
			return abi.Method{}, fmt.Errorf("outputs of %q: %w", signature, err)
		}
	}

	return abi.NewMethod(name, name, abi.Function, "view", true, false, inputs, outputs), nil
}

func parseArguments(list string) (abi.Arguments, error) {
	if list == "" {
		return nil, nil
	}
	if strings.ContainsAny(list, "()") {
		return nil, fmt.Errorf("tuple types are not supported")
	}

	parts := strings.Split(list, ",")
	args := make(abi.Arguments, 0, len(parts))
	for _, part := range parts {
		typ, err := abi.NewType(part, "", nil)
		if err != nil {
			return nil, fmt.Errorf("type %q: %w", part, err)
		}
		args = append(args, abi.Argument{Type: typ})
	}
	return args, nil
}

func matchParen(s string, open int) int {
	depth := 0
	for i := open; i < len(s); i++ {
		switch s[i] {
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}
