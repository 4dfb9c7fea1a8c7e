package multicall

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

// Decoder maps a call's success flag and unpacked return values to a result
// value. A nil return is the null value for that row.
type Decoder func(success bool, values []interface{}) interface{}

// Raw returns the first return value as unpacked by go-ethereum.
func Raw(success bool, values []interface{}) interface{} {
	if !success || len(values) == 0 {
		return nil
	}
	return values[0]
}

// BigInt returns the first return value as a *big.Int.
func BigInt(success bool, values []interface{}) interface{} {
	if !success || len(values) == 0 {
		return nil
	}
	v, ok := asBigInt(values[0])
	if !ok {
		return nil
	}
	return v
}

// Uint64 returns the first return value as a uint64, or nil if it overflows.
func Uint64(success bool, values []interface{}) interface{} {
	if !success || len(values) == 0 {
		return nil
	}
	v, ok := asBigInt(values[0])
	if !ok || v.Sign() < 0 || !v.IsUint64() {
		return nil
	}
	return v.Uint64()
}

func Bool(success bool, values []interface{}) interface{} {
	if !success || len(values) == 0 {
		return nil
	}
	v, ok := values[0].(bool)
	if !ok {
		return nil
	}
	return v
}

func Address(success bool, values []interface{}) interface{} {
	if !success || len(values) == 0 {
		return nil
	}
	v, ok := values[0].(common.Address)
	if !ok {
		return nil
	}
	return v
}

func Addresses(success bool, values []interface{}) interface{} {
	if !success || len(values) == 0 {
		return nil
	}
	v, ok := values[0].([]common.Address)
	if !ok {
		return nil
	}
	return v
}

func String(success bool, values []interface{}) interface{} {
	if !success || len(values) == 0 {
		return nil
	}
	v, ok := values[0].(string)
	if !ok {
		return nil
	}
	return v
}

// Scaled normalizes an on-chain fixed-point integer to a decimal, dividing by 10^decimals.
func Scaled(decimals uint8) Decoder {
	return func(success bool, values []interface{}) interface{} {
		if !success || len(values) == 0 {
			return nil
		}
		v, ok := asBigInt(values[0])
		if !ok {
			return nil
		}
		return decimal.NewFromBigInt(v, -int32(decimals))
	}
}

func asBigInt(value interface{}) (*big.Int, bool) {
	switch v := value.(type) {
	case *big.Int:
		if v == nil {
			return nil, false
		}
		return new(big.Int).Set(v), true
	case uint8:
		return new(big.Int).SetUint64(uint64(v)), true
	case uint16:
		return new(big.Int).SetUint64(uint64(v)), true
	case uint32:
		return new(big.Int).SetUint64(uint64(v)), true
	case uint64:
		return new(big.Int).SetUint64(v), true
	case int8:
		return big.NewInt(int64(v)), true
	case int16:
		return big.NewInt(int64(v)), true
	case int32:
		return big.NewInt(int64(v)), true
	case int64:
		return big.NewInt(v), true
	default:
		return nil, false
	}
}
