package models

// NativeCurrency describes the gas currency of a chain when registering it with a wallet
type NativeCurrency struct {
	Name     string `json:"name"`
	Symbol   string `json:"symbol"`
	Decimals int    `json:"decimals"`
}

// ChainParams is the wallet_addEthereumChain payload for the target network
type ChainParams struct {
	ChainID           string         `json:"chainId"`
	ChainName         string         `json:"chainName"`
	NativeCurrency    NativeCurrency `json:"nativeCurrency"`
	RPCURLs           []string       `json:"rpcUrls"`
	BlockExplorerURLs []string       `json:"blockExplorerUrls,omitempty"`
}

// SwitchChainParams is the wallet_switchEthereumChain payload
type SwitchChainParams struct {
	ChainID string `json:"chainId"`
}

// UnrecognizedChainCode is the provider error code returned when switching to a chain the wallet does not know
const UnrecognizedChainCode = 4902
