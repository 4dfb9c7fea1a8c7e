// Package autopool builds the call descriptors that sample Autopool vault state.
package autopool

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"autopoolScope/internal/multicall"
)

const (
	sigTotalAssets     = "totalAssets()(uint256)"
	sigTotalSupply     = "totalSupply()(uint256)"
	sigConvertToAssets = "convertToAssets(uint256)(uint256)"
	sigPaused          = "paused()(bool)"
	sigBalanceOf       = "balanceOf(address)(uint256)"
	sigDecimals        = "decimals()(uint8)"
	sigDestinations    = "getDestinations()(address[])"

	// ShareDecimals is the fixed precision of Autopool shares.
	ShareDecimals = 18
)

var ErrInvalidVault = errors.New("invalid autopool")

// Vault identifies one Autopool and how its values are labelled and scaled.
type Vault struct {
	Label        string
	Address      common.Address
	Decimals     uint8
	Destinations []Destination
}

// Destination is a vault the Autopool allocates into.
type Destination struct {
	Label    string
	Address  common.Address
	Decimals uint8
}

// Column names produced by Calls.
func TotalAssetsColumn(label string) string { return label + ".total_assets" }
func TotalSupplyColumn(label string) string { return label + ".total_supply" }
func NAVColumn(label string) string         { return label + ".nav_per_share" }
func PausedColumn(label string) string      { return label + ".paused" }

func SharesColumn(label, dest string) string { return label + "." + dest + ".shares" }

// ParseVault parses "label=0xaddress" or "label=0xaddress:decimals".
// Decimals default to 18.
func ParseVault(value string) (Vault, error) {
	label, rest, ok := strings.Cut(strings.TrimSpace(value), "=")
	label = strings.TrimSpace(label)
	if !ok || label == "" {
		return Vault{}, fmt.Errorf("%w: %q must be label=address", ErrInvalidVault, value)
	}
	if strings.ContainsAny(label, ". ") {
		return Vault{}, fmt.Errorf("%w: label %q may not contain dots or spaces", ErrInvalidVault, label)
	}

	addr, dec, hasDec := strings.Cut(strings.TrimSpace(rest), ":")
	if !common.IsHexAddress(addr) {
		return Vault{}, fmt.Errorf("%w: bad address %q", ErrInvalidVault, addr)
	}
	vault := Vault{Label: label, Address: common.HexToAddress(addr), Decimals: ShareDecimals}
	if hasDec {
		n, err := strconv.ParseUint(dec, 10, 8)
		if err != nil {
			return Vault{}, fmt.Errorf("%w: bad decimals %q: %v", ErrInvalidVault, dec, err)
		}
		vault.Decimals = uint8(n)
	}
	return vault, nil
}

// Calls returns the per-vault state descriptors: total assets, total supply,
// NAV per whole share and the paused flag.
func Calls(v Vault) ([]multicall.Call, error) {
	if v.Label == "" {
		return nil, fmt.Errorf("%w: label required", ErrInvalidVault)
	}
	oneShare := new(big.Int).Exp(big.NewInt(10), big.NewInt(ShareDecimals), nil)

	specs := []struct {
		sig    string
		name   string
		decode multicall.Decoder
		args   []interface{}
	}{
		{sigTotalAssets, TotalAssetsColumn(v.Label), multicall.Scaled(v.Decimals), nil},
		{sigTotalSupply, TotalSupplyColumn(v.Label), multicall.Scaled(ShareDecimals), nil},
		{sigConvertToAssets, NAVColumn(v.Label), multicall.Scaled(v.Decimals), []interface{}{oneShare}},
		{sigPaused, PausedColumn(v.Label), multicall.Bool, nil},
	}

	calls := make([]multicall.Call, 0, len(specs))
	for _, s := range specs {
		call, err := multicall.NewCall(v.Address, s.sig, s.name, s.decode, s.args...)
		if err != nil {
			return nil, fmt.Errorf("build %s: %w", s.name, err)
		}
		calls = append(calls, call)
	}
	return calls, nil
}

// DestinationCalls returns the Autopool's share balance in each destination.
func DestinationCalls(v Vault) ([]multicall.Call, error) {
	calls := make([]multicall.Call, 0, len(v.Destinations))
	for _, dest := range v.Destinations {
		name := SharesColumn(v.Label, dest.Label)
		call, err := multicall.NewCall(dest.Address, sigBalanceOf, name, multicall.Scaled(dest.Decimals), v.Address)
		if err != nil {
			return nil, fmt.Errorf("build %s: %w", name, err)
		}
		calls = append(calls, call)
	}
	return calls, nil
}

// AllCalls concatenates Calls and DestinationCalls for every vault.
func AllCalls(vaults []Vault) ([]multicall.Call, error) {
	var out []multicall.Call
	for _, v := range vaults {
		calls, err := Calls(v)
		if err != nil {
			return nil, err
		}
		out = append(out, calls...)

		dest, err := DestinationCalls(v)
		if err != nil {
			return nil, err
		}
		out = append(out, dest...)
	}
	if err := multicall.ValidateNames(out); err != nil {
		return nil, err
	}
	return out, nil
}

// Invoker runs one batch at one height.
type Invoker interface {
	Invoke(ctx context.Context, batch multicall.Batch) (multicall.Result, error)
}

// Discover reads the vault's decimals and destination list at height and
// returns v with them filled in. Destinations are labelled by their short
// address and scaled as 18-decimal vault shares.
func Discover(ctx context.Context, invoker Invoker, v Vault, height uint64) (Vault, error) {
	decimalsCall, err := multicall.NewCall(v.Address, sigDecimals, "decimals", multicall.Uint64)
	if err != nil {
		return Vault{}, err
	}
	destCall, err := multicall.NewCall(v.Address, sigDestinations, "destinations", multicall.Addresses)
	if err != nil {
		return Vault{}, err
	}

	res, err := invoker.Invoke(ctx, multicall.Batch{
		Calls:  []multicall.Call{decimalsCall, destCall},
		Height: height,
	})
	if err != nil {
		return Vault{}, fmt.Errorf("discover %s at %d: %w", v.Label, height, err)
	}

	if dec, ok := res.Values["decimals"].(uint64); ok && dec <= 255 {
		v.Decimals = uint8(dec)
	}

	addrs, _ := res.Values["destinations"].([]common.Address)
	v.Destinations = nil
	for _, addr := range addrs {
		v.Destinations = append(v.Destinations, Destination{
			Label:    shortLabel(addr),
			Address:  addr,
			Decimals: ShareDecimals,
		})
	}
	return v, nil
}

func shortLabel(addr common.Address) string {
	return strings.ToLower(addr.Hex()[:10])
}
