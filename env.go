package walletpnl

const (
	// EtherscanAPIKeyEnv names the environment variable holding the Etherscan V2 key.
	// One key covers every supported chain.
	EtherscanAPIKeyEnv = "ETHERSCAN_API_KEY"

	// CoinGeckoAPIKeyEnv names the optional CoinGecko demo key.
	CoinGeckoAPIKeyEnv = "COINGECKO_API_KEY"

	// ListenAddrEnv overrides the HTTP listen address of cmd/web.
	ListenAddrEnv = "WALLETPNL_LISTEN_ADDR"

	// LogLevelEnv selects the zap level (debug, info, warn, error).
	LogLevelEnv = "WALLETPNL_LOG_LEVEL"
)
