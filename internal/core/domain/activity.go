package domain

// Direction tells whether a transaction left or reached an account.
type Direction string

const (
	DirectionIn  Direction = "in"
	DirectionOut Direction = "out"
)

// AccountTransaction is one normal transaction of an account, normalized for
// display.
type AccountTransaction struct {
	Hash      string    `json:"hash"`
	Timestamp int64     `json:"timestamp"`
	From      string    `json:"from"`
	To        string    `json:"to"`
	ValueETH  float64   `json:"value_eth"`
	Direction Direction `json:"direction"`
}
