package model

// Rail identifies a payment rail plugin.
type Rail string

const (
	RailBitcoin  Rail = "bitcoin"
	RailEthereum Rail = "ethereum"
	RailTron     Rail = "tron"
	RailRipple   Rail = "ripple"
	RailFiat     Rail = "fiat"
)

// Network is the settlement network behind a rail.
type Network string

const (
	NetworkBitcoin  Network = "BTC"
	NetworkEthereum Network = "ETH"
	NetworkTron     Network = "TRX"
	NetworkRipple   Network = "XRP"
	NetworkFiat     Network = "FIAT"
)

// Rails lists every supported rail in a stable order.
func Rails() []Rail {
	return []Rail{RailBitcoin, RailEthereum, RailTron, RailRipple, RailFiat}
}

// ParseRail maps an identifier to a known rail.
func ParseRail(s string) (Rail, bool) {
	for _, r := range Rails() {
		if string(r) == s {
			return r, true
		}
	}
	return "", false
}

// Network returns the settlement network for the rail.
func (r Rail) Network() Network {
	switch r {
	case RailBitcoin:
		return NetworkBitcoin
	case RailEthereum:
		return NetworkEthereum
	case RailTron:
		return NetworkTron
	case RailRipple:
		return NetworkRipple
	case RailFiat:
		return NetworkFiat
	}
	return ""
}

// Currency is the asset a rail pays out.
func (r Rail) Currency() string {
	switch r {
	case RailBitcoin:
		return "BTC"
	case RailEthereum:
		return "ETH"
	case RailTron:
		return "USDT"
	case RailRipple:
		return "XRP"
	}
	return "USD"
}

// IsCrypto reports whether the rail settles on a blockchain.
func (r Rail) IsCrypto() bool {
	return r != RailFiat && r.Network() != ""
}

// BalanceType is the balance a plain withdrawal on the rail draws from.
func (r Rail) BalanceType() BalanceType {
	if r.IsCrypto() {
		return BalanceCrypto
	}
	return BalanceCash
}
