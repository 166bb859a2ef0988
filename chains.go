package walletpnl

import (
	_ "embed"
	"fmt"
	"sort"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"gopkg.in/yaml.v3"
)

// Chain identifies a supported EVM network by its short name ("ethereum", "base", ...).
type Chain string

// DefaultChain is used when a request omits the chain.
const DefaultChain Chain = "ethereum"

// ChainInfo carries the static constants every upstream API needs for one chain.
type ChainInfo struct {
	Name              Chain
	ChainID           int64
	CoinGeckoPlatform string
	DefiLlamaPrefix   string
	WrappedNative     string
	Stablecoins       map[string]struct{}
}

// IsStablecoin reports whether contract is a USD-pegged stablecoin on this chain.
func (c ChainInfo) IsStablecoin(contract string) bool {
	_, ok := c.Stablecoins[strings.ToLower(contract)]
	return ok
}

// IsWrappedNative reports whether contract is the chain's wrapped gas token.
func (c ChainInfo) IsWrappedNative(contract string) bool {
	return strings.EqualFold(contract, c.WrappedNative)
}

//go:embed chains.yaml
var chainsYAML []byte

var chainRegistry = mustLoadChains(chainsYAML)

type chainDocument struct {
	ChainID           int64    `yaml:"chainId"`
	CoinGeckoPlatform string   `yaml:"coingeckoPlatform"`
	DefiLlamaPrefix   string   `yaml:"defillamaPrefix"`
	WrappedNative     string   `yaml:"wrappedNative"`
	Stablecoins       []string `yaml:"stablecoins"`
}

func mustLoadChains(data []byte) map[Chain]ChainInfo {
	registry, err := parseChains(data)
	if err != nil {
		panic(fmt.Sprintf("load chain registry: %v", err))
	}
	return registry
}

func parseChains(data []byte) (map[Chain]ChainInfo, error) {
	var docs map[string]chainDocument
	if err := yaml.Unmarshal(data, &docs); err != nil {
		return nil, fmt.Errorf("decode chains: %w", err)
	}

	registry := make(map[Chain]ChainInfo, len(docs))
	for name, doc := range docs {
		if doc.ChainID <= 0 {
			return nil, fmt.Errorf("chain %s: missing chainId", name)
		}
		if !common.IsHexAddress(doc.WrappedNative) {
			return nil, fmt.Errorf("chain %s: bad wrapped native address %q", name, doc.WrappedNative)
		}
		stables := make(map[string]struct{}, len(doc.Stablecoins))
		for _, addr := range doc.Stablecoins {
			if !common.IsHexAddress(addr) {
				return nil, fmt.Errorf("chain %s: bad stablecoin address %q", name, addr)
			}
			stables[strings.ToLower(addr)] = struct{}{}
		}
		registry[Chain(name)] = ChainInfo{
			Name:              Chain(name),
			ChainID:           doc.ChainID,
			CoinGeckoPlatform: doc.CoinGeckoPlatform,
			DefiLlamaPrefix:   doc.DefiLlamaPrefix,
			WrappedNative:     strings.ToLower(doc.WrappedNative),
			Stablecoins:       stables,
		}
	}
	return registry, nil
}

// LookupChain returns the constants for chain.
func LookupChain(chain Chain) (ChainInfo, bool) {
	info, ok := chainRegistry[chain]
	return info, ok
}

// SupportedChains lists the registry in alphabetical order.
func SupportedChains() []Chain {
	chains := make([]Chain, 0, len(chainRegistry))
	for name := range chainRegistry {
		chains = append(chains, name)
	}
	sort.Slice(chains, func(i, j int) bool { return chains[i] < chains[j] })
	return chains
}

// ValidateRequest checks an (address, chain) pair at the service boundary and
// returns the lower-cased address. An empty chain selects DefaultChain.
func ValidateRequest(address, chain string) (string, Chain, error) {
	address = strings.TrimSpace(address)
	if !strings.HasPrefix(address, "0x") && !strings.HasPrefix(address, "0X") {
		return "", "", fmt.Errorf("%w: address must be a 0x-prefixed 40 hex digit string", ErrInvalidInput)
	}
	if !common.IsHexAddress(address) {
		return "", "", fmt.Errorf("%w: address must be a 0x-prefixed 40 hex digit string", ErrInvalidInput)
	}

	name := Chain(strings.ToLower(strings.TrimSpace(chain)))
	if name == "" {
		name = DefaultChain
	}
	if _, ok := LookupChain(name); !ok {
		return "", "", fmt.Errorf("%w: unsupported chain %q", ErrInvalidInput, chain)
	}
	return strings.ToLower(common.HexToAddress(address).Hex()), name, nil
}
