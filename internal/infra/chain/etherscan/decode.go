package etherscan

import (
	"math/big"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/vietddude/scamradar/internal/core/domain"
)

// Selector describes a known 4-byte function selector.
type Selector struct {
	Name string
	Type domain.TxType
}

// knownSelectors maps lowercase 0x-prefixed selectors to names. An empty
// Type means the selector does not determine the token standard.
var knownSelectors = map[string]Selector{
	"0x095ea7b3": {Name: "approve"},
	"0xa22cb465": {Name: "setApprovalForAll", Type: domain.TxTypeERC721},
	"0x23b872dd": {Name: "transferFrom"},
	"0x42842e0e": {Name: "safeTransferFrom", Type: domain.TxTypeERC721},
	"0xb88d4fde": {Name: "safeTransferFrom", Type: domain.TxTypeERC721},
	"0xf242432a": {Name: "safeBatchTransferFrom", Type: domain.TxTypeERC1155},
	"0x8fcbaf0c": {Name: "permit", Type: domain.TxTypeERC20},
	"0xa9059cbb": {Name: "transfer", Type: domain.TxTypeERC20},
	"0x2eb2c2d6": {Name: "safeTransferFrom", Type: domain.TxTypeERC1155},
}

// SelectorOf returns the lowercase 0x-prefixed selector of call data, or ""
// when the input is too short to carry one.
func SelectorOf(input string) string {
	if len(input) < 10 {
		return ""
	}
	return strings.ToLower(input[:10])
}

// DecodeFunctionNames maps call data to the names of the functions it
// invokes. Unknown selectors yield an empty list.
func DecodeFunctionNames(input string) []string {
	sel, ok := knownSelectors[SelectorOf(input)]
	if !ok {
		return []string{}
	}
	return []string{sel.Name}
}

// TypeFromInput infers the token standard from call data, falling back to
// the given category type.
func TypeFromInput(input string, fallback domain.TxType) domain.TxType {
	if sel, ok := knownSelectors[SelectorOf(input)]; ok && sel.Type != "" {
		return sel.Type
	}
	return fallback
}

// callArgs splits call data into the selector and 32-byte argument words.
// Malformed hex yields no words.
func callArgs(input string) [][]byte {
	data, err := hexutil.Decode(input)
	if err != nil || len(data) < 4 {
		return nil
	}
	data = data[4:]
	words := make([][]byte, 0, len(data)/32)
	for len(data) >= 32 {
		words = append(words, data[:32])
		data = data[32:]
	}
	return words
}

func wordAddress(word []byte) string {
	return strings.ToLower(common.BytesToAddress(word).Hex())
}

// parseBig reads a decimal or 0x-prefixed hex quantity. Empty or malformed
// input yields zero.
func parseBig(s string) *big.Int {
	s = strings.TrimSpace(s)
	if s == "" {
		return new(big.Int)
	}
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		if v, err := hexutil.DecodeBig(s); err == nil {
			return v
		}
		if v, ok := new(big.Int).SetString(s[2:], 16); ok {
			return v
		}
		return new(big.Int)
	}
	if v, ok := new(big.Int).SetString(s, 10); ok {
		return v
	}
	return new(big.Int)
}

func parseUint(s string) uint64 {
	v := parseBig(s)
	if !v.IsUint64() {
		return 0
	}
	return v.Uint64()
}

func parseInt(s string) int64 {
	return int64(parseUint(s))
}

func parseDecimals(s string) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0
	}
	return n
}

// firstNonEmpty returns the first non-empty string.
func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
