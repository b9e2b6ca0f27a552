package wallet

import (
	"github.com/shopspring/decimal"

	"github.com/nexustrade/paperdesk/internal/market"
)

func init() {
	// The persisted schema uses plain JSON numbers for balances.
	decimal.MarshalJSONWithoutQuotes = true
}

// State is the full persisted wallet: balances, the lifetime PnL baseline
// and the trade history. It round-trips exactly through the Store.
type State struct {
	Cash          decimal.Decimal `json:"cash"`
	AssetQty      decimal.Decimal `json:"assetQty"`
	InitialEquity decimal.Decimal `json:"initialEquity"`
	Trades        []market.Trade  `json:"trades"`
}

// NewState seeds a fresh wallet. InitialEquity is fixed here, at first-ever
// creation, and never recomputed afterwards: it is the baseline for lifetime
// PnL. refPrice marks the seeded asset position to market.
func NewState(cash, assetQty, refPrice float64) State {
	c := decimal.NewFromFloat(cash)
	q := decimal.NewFromFloat(assetQty)
	return State{
		Cash:          c,
		AssetQty:      q,
		InitialEquity: c.Add(q.Mul(decimal.NewFromFloat(refPrice))),
		Trades:        []market.Trade{},
	}
}

// clone returns a deep copy so callers can hold the state without racing
// the ledger.
func (s State) clone() State {
	out := s
	out.Trades = make([]market.Trade, len(s.Trades))
	copy(out.Trades, s.Trades)
	return out
}
