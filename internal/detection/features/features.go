// Package features turns transfer records into the fixed-length vectors the
// classifier was trained on.
//
// Both extractors are pure. The order of each vector is part of the model
// contract and must not change.
package features

import (
	"github.com/vietddude/scamradar/internal/core/domain"
)

// Dim is the length of every feature vector.
const Dim = 15

// AccountNames lists the account-level features in model order.
var AccountNames = []string{
	"avg_gas_price",
	"activity_duration_days",
	"std_time_between_txns",
	"total_volume",
	"inNeighborNum",
	"total_txn",
	"in_out_ratio",
	"total_value_in",
	"outNeighborNum",
	"avg_gas_used",
	"giftinTxn_ratio",
	"miningTxnNum",
	"avg_value_out",
	"turnover_ratio",
	"out_txn",
}

// TransactionNames lists the transaction-level features in model order.
var TransactionNames = []string{
	"gas_price",
	"gas_used",
	"value",
	"num_functions",
	"has_suspicious_func",
	"nft_num_owners",
	"nft_total_sales",
	"token_value",
	"nft_total_volume",
	"is_mint",
	"high_gas",
	"nft_average_price",
	"nft_floor_price",
	"nft_market_cap",
	"is_zero_value",
}

// Names returns the built-in feature names for a task.
func Names(task domain.Task) []string {
	if task == domain.TaskTransaction {
		return TransactionNames
	}
	return AccountNames
}

// Extract dispatches to the extractor of task. address is ignored for the
// transaction task.
func Extract(task domain.Task, address string, records []*domain.TransactionRecord) []float64 {
	if task == domain.TaskTransaction {
		return Transaction(records)
	}
	return Account(address, records)
}
