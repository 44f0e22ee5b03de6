package domain

import "math/big"

// ZeroAddress is the sender of mint transfers.
const ZeroAddress = "0x0000000000000000000000000000000000000000"

// TxType is the token standard a transfer belongs to.
type TxType string

const (
	TxTypeERC20   TxType = "erc20"
	TxTypeERC721  TxType = "erc721"
	TxTypeERC1155 TxType = "erc1155"
	TxTypeNormal  TxType = "normal"
)

// NFTMarket holds collection market data attached to a transfer.
// All fields default to zero until CollectionEnricher fills them.
type NFTMarket struct {
	NumOwners    float64 `json:"nft_num_owners"`
	TotalSales   float64 `json:"nft_total_sales"`
	FloorPrice   float64 `json:"nft_floor_price"`
	AveragePrice float64 `json:"nft_average_price"`
	MarketCap    float64 `json:"nft_market_cap"`
	TotalVolume  float64 `json:"nft_total_volume"`
	Volume7d     float64 `json:"nft_7day_volume"`
	Sales7d      float64 `json:"nft_7day_sales"`
	AvgPrice7d   float64 `json:"nft_7day_avg_price"`
}

// TransactionRecord is one token transfer as seen by the detector.
//
// Records are created by the chain fetcher, enriched once in place by the
// collection enricher and read-only afterwards.
type TransactionRecord struct {
	Hash              string   `json:"transaction_hash"`
	BlockNumber       uint64   `json:"block_number"`
	From              string   `json:"from_address"`
	To                string   `json:"to_address"`
	Value             *big.Int `json:"value"`
	GasPrice          *big.Int `json:"gas_price"`
	GasUsed           uint64   `json:"gas_used"`
	Timestamp         int64    `json:"timestamp"`
	FunctionSelectors []string `json:"function_call"`
	ContractAddress   string   `json:"contract_address"`
	TokenValue        *big.Int `json:"token_value"`
	TokenDecimal      int      `json:"token_decimal"`
	TokenID           string   `json:"token_id,omitempty"`
	Type              TxType   `json:"tx_type"`

	NFT NFTMarket `json:"nft"`
}

// ValueFloat returns Value as float64, zero when unset.
func (r *TransactionRecord) ValueFloat() float64 {
	return bigToFloat(r.Value)
}

// GasPriceFloat returns GasPrice as float64, zero when unset.
func (r *TransactionRecord) GasPriceFloat() float64 {
	return bigToFloat(r.GasPrice)
}

// TokenValueFloat returns TokenValue as float64, zero when unset.
func (r *TransactionRecord) TokenValueFloat() float64 {
	return bigToFloat(r.TokenValue)
}

// IsZeroValue reports whether the native value transferred is zero.
func (r *TransactionRecord) IsZeroValue() bool {
	return r.Value == nil || r.Value.Sign() == 0
}

// HasTokenValue reports whether a positive token amount was moved.
func (r *TransactionRecord) HasTokenValue() bool {
	return r.TokenValue != nil && r.TokenValue.Sign() > 0
}

// IsMint reports whether the transfer originates from the zero address.
func (r *TransactionRecord) IsMint() bool {
	return r.From == ZeroAddress
}

func bigToFloat(v *big.Int) float64 {
	if v == nil {
		return 0
	}
	f, _ := new(big.Float).SetInt(v).Float64()
	return f
}
