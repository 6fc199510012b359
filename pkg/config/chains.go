package config

const (
	EthereumMainnetChainID = 1
	SepoliaChainID         = 11155111
	BSCMainnetChainID      = 56
	BSCTestnetChainID      = 97
	PolygonMainnetChainID  = 137
	PolygonAmoyChainID     = 80002
	BaseMainnetChainID     = 8453
	BaseSepoliaChainID     = 84532
)

// chainNames maps chain IDs to their names
var chainNames = map[int]string{
	EthereumMainnetChainID: "ETHEREUM",
	SepoliaChainID:         "SEPOLIA",
	BSCMainnetChainID:      "BSC",
	BSCTestnetChainID:      "BSC_TESTNET",
	PolygonMainnetChainID:  "POLYGON",
	PolygonAmoyChainID:     "POLYGON_AMOY",
	BaseMainnetChainID:     "BASE",
	BaseSepoliaChainID:     "BASE_SEPOLIA",
}

// defaultRPCURLs maps chain IDs to public RPC endpoints
var defaultRPCURLs = map[int]string{
	EthereumMainnetChainID: "https://eth.llamarpc.com",
	SepoliaChainID:         "https://ethereum-sepolia-rpc.publicnode.com",
	BSCMainnetChainID:      "https://bsc-dataseed.bnbchain.org",
	BSCTestnetChainID:      "https://data-seed-prebsc-1-s1.bnbchain.org:8545",
	PolygonMainnetChainID:  "https://polygon-rpc.com",
	PolygonAmoyChainID:     "https://rpc-amoy.polygon.technology",
	BaseMainnetChainID:     "https://mainnet.base.org",
	BaseSepoliaChainID:     "https://sepolia.base.org",
}

// GetChainName returns the name of the chain for a given chain ID
func GetChainName(chainID int) string {
	name, exists := chainNames[chainID]
	if !exists {
		return ""
	}
	return name
}

// GetDefaultRPCURL returns the public RPC endpoint for a given chain ID
func GetDefaultRPCURL(chainID int) string {
	url, exists := defaultRPCURLs[chainID]
	if !exists {
		return ""
	}
	return url
}
