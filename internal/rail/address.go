package rail

import (
	"bytes"
	"crypto/sha256"
	"strings"

	"github.com/btcsuite/btcd/btcutil/bech32"
	"github.com/ethereum/go-ethereum/common"
	"github.com/mr-tron/base58"
)

const (
	bitcoinP2PKH   = 0x00
	bitcoinP2SH    = 0x05
	tronVersion    = 0x41
	rippleVersion  = 0x00
	checkedLen     = 25
	bitcoinHRP     = "bc"
	rippleAlphabet = "rpshnaf39wBUDNEGHJKLM4PQRST7VWXYZ2bcdeCg65jkm8oFqi1tuvAxyz"
)

var rippleBase58 = base58.NewAlphabet(rippleAlphabet)

// decodeCheck decodes a 25 byte base58check payload and returns its version.
func decodeCheck(addr string, alphabet *base58.Alphabet) (byte, bool) {
	if addr == "" {
		return 0, false
	}
	raw, err := base58.DecodeAlphabet(addr, alphabet)
	if err != nil || len(raw) != checkedLen {
		return 0, false
	}
	first := sha256.Sum256(raw[:checkedLen-4])
	second := sha256.Sum256(first[:])
	if !bytes.Equal(second[:4], raw[checkedLen-4:]) {
		return 0, false
	}
	return raw[0], true
}

func validBitcoinAddress(addr string) bool {
	if version, ok := decodeCheck(addr, base58.BTCAlphabet); ok {
		return version == bitcoinP2PKH || version == bitcoinP2SH
	}
	return validSegwitAddress(addr)
}

func validTronAddress(addr string) bool {
	version, ok := decodeCheck(addr, base58.BTCAlphabet)
	return ok && version == tronVersion
}

func validRippleAddress(addr string) bool {
	version, ok := decodeCheck(addr, rippleBase58)
	return ok && version == rippleVersion
}

// validEthereumAddress accepts 0x-prefixed hex. Mixed case must carry a
// valid EIP-55 checksum.
func validEthereumAddress(addr string) bool {
	if !strings.HasPrefix(addr, "0x") || !common.IsHexAddress(addr) {
		return false
	}
	body := addr[2:]
	if body == strings.ToLower(body) || body == strings.ToUpper(body) {
		return true
	}
	return common.HexToAddress(addr).Hex() == addr
}

// validSegwitAddress checks a mainnet bech32 (v0) or bech32m (v1+) address.
func validSegwitAddress(addr string) bool {
	hrp, data, encoding, err := bech32.DecodeGeneric(addr)
	if err != nil || hrp != bitcoinHRP || len(data) == 0 {
		return false
	}
	version := data[0]
	if version > 16 || (version == 0) != (encoding == bech32.Version0) {
		return false
	}
	program, err := bech32.ConvertBits(data[1:], 5, 8, false)
	if err != nil || len(program) < 2 || len(program) > 40 {
		return false
	}
	return version != 0 || len(program) == 20 || len(program) == 32
}
