package domain

// CollectionStats are market statistics of one NFT collection, in ETH.
type CollectionStats struct {
	Owners         float64 `json:"owners"`
	Items          float64 `json:"items"`
	FloorPriceETH  float64 `json:"floor_price_eth"`
	MarketCapETH   float64 `json:"market_cap_eth"`
	VolumeETH      float64 `json:"volume_eth"`
	HighestSaleETH float64 `json:"highest_sale_eth"`
}

// Market derives the per-transfer NFT fields from collection statistics.
//
// Average price prefers the highest sale, then volume per item, then the
// floor price. 7-day metrics are not exposed by the statistics API and
// stay zero.
func (s CollectionStats) Market() NFTMarket {
	m := NFTMarket{
		NumOwners:   s.Owners,
		TotalSales:  s.Items,
		FloorPrice:  s.FloorPriceETH,
		MarketCap:   s.MarketCapETH,
		TotalVolume: s.VolumeETH,
	}

	switch {
	case s.HighestSaleETH > 0:
		m.AveragePrice = s.HighestSaleETH
	case s.VolumeETH > 0 && s.Items > 0:
		m.AveragePrice = s.VolumeETH / s.Items
	default:
		m.AveragePrice = s.FloorPriceETH
	}
	return m
}
