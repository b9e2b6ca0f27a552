// Package binance provides the live price and depth source for the
// dashboard.
//
// # Kline Stream Message Format
//
//	{
//	  "e": "kline", "E": 1700000000123, "s": "BTCUSDT",
//	  "k": {
//	    "t": 1699999200000, "T": 1700000099999,
//	    "o": "48100.10", "h": "48250.00", "l": "48050.00", "c": "48234.50",
//	    "v": "123.456"
//	  }
//	}
//
// # Depth Snapshot Format
//
//	{
//	  "lastUpdateId": 1027024,
//	  "bids": [["48000.50", "0.431"], ["47999.00", "1.200"]],
//	  "asks": [["48010.00", "0.300"], ["48011.50", "2.000"]]
//	}
//
// Prices and amounts arrive as decimal strings; any field that fails to
// parse makes the whole refresh fail and the caller keeps its previous
// data.
package binance

const (
	wsBaseURL  = "wss://stream.binance.com:9443/ws"
	apiBaseURL = "https://api.binance.com/api/v3"

	// DefaultInterval is the kline timeframe subscribed by the live feed.
	DefaultInterval = "15m"
)
