package domain

import "time"

// DetectionMode tags how a detection result was produced.
type DetectionMode string

const (
	ModeNormal          DetectionMode = "normal"
	ModeNoData          DetectionMode = "no_data"
	ModeTransactionOnly DetectionMode = "transaction_only"
)

// Detection is the audit record of one completed detection.
type Detection struct {
	ID          string        `db:"id" json:"id"`
	Task        Task          `db:"task" json:"task"`
	Address     string        `db:"address" json:"address"`
	ToAddress   string        `db:"to_address" json:"to_address,omitempty"`
	TxHash      string        `db:"tx_hash" json:"tx_hash,omitempty"`
	Mode        DetectionMode `db:"mode" json:"mode"`
	Probability *float64      `db:"probability" json:"probability"`
	TxCount     int           `db:"tx_count" json:"tx_count"`
	Explained   bool          `db:"explained" json:"explained"`
	Payload     []byte        `db:"payload" json:"-"` // JSON of the full result
	CreatedAt   time.Time     `db:"created_at" json:"created_at"`
}

// Scored reports whether the detection carries a probability.
func (d *Detection) Scored() bool {
	return d.Probability != nil
}
