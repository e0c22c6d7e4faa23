package paymentnetwork

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// Payment network ids.
const (
	IDERC20ProxyContract = "pn-erc20-proxy-contract"
	IDEthInputData       = "pn-eth-input-data"
	IDNativeToken        = "pn-native-token"
)

// Chain names accepted by the NEAR native token network.
const (
	NetworkAurora        = "aurora"
	NetworkAuroraTestnet = "aurora-testnet"
)

// NearNetworkNames lists the chains the native token network runs on.
var NearNetworkNames = []string{NetworkAurora, NetworkAuroraTestnet}

// NewERC20ProxyContract creates the ERC20 proxy contract network. It accepts
// any token currency and ethereum addresses.
func NewERC20ProxyContract() *ReferenceBased {
	return New(Config{
		ID:           IDERC20ProxyContract,
		ValidAddress: common.IsHexAddress,
		SupportsCurrency: func(currency string) bool {
			switch strings.ToUpper(currency) {
			case "ETH", "BTC", "NEAR":
				return false
			}
			return currency != ""
		},
	})
}

// NewEthInputData creates the ETH input data network: ETH requests paid to
// ethereum addresses with the reference in the transaction input.
func NewEthInputData() *ReferenceBased {
	return New(Config{
		ID:           IDEthInputData,
		ValidAddress: common.IsHexAddress,
		SupportsCurrency: func(currency string) bool {
			return strings.EqualFold(currency, "ETH")
		},
	})
}

// NewNativeToken creates the NEAR native token network.
func NewNativeToken() *ReferenceBased {
	return New(Config{
		ID:           IDNativeToken,
		ValidAddress: IsNearAccount,
		SupportsCurrency: func(currency string) bool {
			return strings.EqualFold(currency, "NEAR")
		},
		NetworkNames: NearNetworkNames,
	})
}

// All returns one instance of every reference-based network.
func All() []*ReferenceBased {
	return []*ReferenceBased{NewERC20ProxyContract(), NewEthInputData(), NewNativeToken()}
}

var nearAccountPattern = regexp.MustCompile(`^(([a-z\d]+[-_])*[a-z\d]+\.)*([a-z\d]+[-_])*[a-z\d]+$`)

// IsNearAccount reports whether s is a valid NEAR account id.
func IsNearAccount(s string) bool {
	return len(s) >= 2 && len(s) <= 64 && nearAccountPattern.MatchString(s)
}

var nearContracts = map[string]map[string]string{
	NetworkAurora: {
		"0.1.0": "requestnetwork.near",
		"0.2.0": "requestnetwork.near",
	},
	NetworkAuroraTestnet: {
		"0.1.0": "dev-1626339335241-5544297",
		"0.2.0": "dev-1631521265288-35171138540673",
	},
}

// NearContractName returns the payment contract used on chain for a network
// version.
func NearContractName(chain, version string) (string, error) {
	if name, ok := nearContracts[chain][version]; ok {
		return name, nil
	}
	return "", fmt.Errorf("unconfigured chain %q and version %q", chain, version)
}
