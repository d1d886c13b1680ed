package domain

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// ChainID is an EVM chain identifier.
type ChainID uint64

func (c ChainID) String() string {
	return strconv.FormatUint(uint64(c), 10)
}

// ChainBalance is the available amount of an asset held on one chain.
type ChainBalance struct {
	ChainID ChainID
	Amount  decimal.Decimal
}

// Known chains
const (
	ChainEthereum        ChainID = 1
	ChainOptimism        ChainID = 10
	ChainPolygon         ChainID = 137
	ChainArbitrum        ChainID = 42161
	ChainBase            ChainID = 8453
	ChainSepolia         ChainID = 11155111
	ChainOptimismSepolia ChainID = 11155420
	ChainPolygonAmoy     ChainID = 80002
	ChainArbitrumSepolia ChainID = 421614
	ChainBaseSepolia     ChainID = 84532
	ChainMonadTestnet    ChainID = 10143
)

type chainInfo struct {
	name     string
	explorer string
	testnet  bool
}

var chainRegistry = map[ChainID]chainInfo{
	ChainEthereum:        {name: "Ethereum", explorer: "https://etherscan.io/tx/%s"},
	ChainOptimism:        {name: "Optimism", explorer: "https://optimistic.etherscan.io/tx/%s"},
	ChainPolygon:         {name: "Polygon", explorer: "https://polygonscan.com/tx/%s"},
	ChainArbitrum:        {name: "Arbitrum", explorer: "https://arbiscan.io/tx/%s"},
	ChainBase:            {name: "Base", explorer: "https://basescan.org/tx/%s"},
	ChainSepolia:         {name: "Sepolia", explorer: "https://sepolia.etherscan.io/tx/%s", testnet: true},
	ChainOptimismSepolia: {name: "Optimism Sepolia", explorer: "https://sepolia-optimism.etherscan.io/tx/%s", testnet: true},
	ChainPolygonAmoy:     {name: "Polygon Amoy", explorer: "https://amoy.polygonscan.com/tx/%s", testnet: true},
	ChainArbitrumSepolia: {name: "Arbitrum Sepolia", explorer: "https://sepolia.arbiscan.io/tx/%s", testnet: true},
	ChainBaseSepolia:     {name: "Base Sepolia", explorer: "https://sepolia.basescan.org/tx/%s", testnet: true},
	ChainMonadTestnet:    {name: "Monad Testnet", explorer: "https://testnet.monadexplorer.com/tx/%s", testnet: true},
}

// ChainName returns the display name of a chain, or "Chain <id>" when unknown.
func ChainName(id ChainID) string {
	if info, ok := chainRegistry[id]; ok {
		return info.name
	}
	return "Chain " + id.String()
}

// IsTestnet reports whether id is a known test network.
func IsTestnet(id ChainID) bool {
	return chainRegistry[id].testnet
}

// ParseChainRef parses a chain reference. A reference may list several chains
// separated by commas; the first one is the destination.
func ParseChainRef(ref string) (ChainID, error) {
	first, _, _ := strings.Cut(ref, ",")
	first = strings.TrimSpace(first)
	if first == "" {
		return 0, fmt.Errorf("empty chain reference")
	}
	id, err := strconv.ParseUint(first, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid chain reference %q: %w", ref, err)
	}
	return ChainID(id), nil
}

// ExplorerTxURL returns the block explorer link for a transaction, or "" when the
// chain is not known.
func ExplorerTxURL(chainRef, txHash string) string {
	if txHash == "" {
		return ""
	}
	id, err := ParseChainRef(chainRef)
	if err != nil {
		return ""
	}
	info, ok := chainRegistry[id]
	if !ok {
		return ""
	}
	return fmt.Sprintf(info.explorer, txHash)
}

// TotalBalance sums balances across chains.
func TotalBalance(balances []ChainBalance) decimal.Decimal {
	total := decimal.Zero
	for _, b := range balances {
		total = total.Add(b.Amount)
	}
	return total
}
