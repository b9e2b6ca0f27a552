package market

// Aggregator folds raw price samples into fixed-width OHLC+volume candles.
// Exactly one mutable "current" candle exists at a time; a candle is sealed
// and becomes immutable once a sample lands in a later bucket.
//
// Aggregator is not safe for concurrent use. It is owned by the engine's
// single ingestion goroutine, which serializes all access.
type Aggregator struct {
	bucket  int64 // bucket width in seconds
	history int   // max sealed candles retained

	current *Candle
	sealed  []Candle
}

// NewAggregator creates an aggregator with the given bucket width in seconds
// and bounded sealed-candle history.
func NewAggregator(bucketSeconds int64, history int) *Aggregator {
	if bucketSeconds <= 0 {
		bucketSeconds = 900
	}
	if history <= 0 {
		history = 96
	}
	return &Aggregator{
		bucket:  bucketSeconds,
		history: history,
	}
}

// Ingest folds one sample into the current candle, opening and sealing
// buckets as needed. It returns the candle sealed by this sample, or nil.
//
// The very first sample bootstraps the first candle; nothing is sealed
// until a later sample's bucket exceeds it.
func (a *Aggregator) Ingest(s PriceSample) *Candle {
	bucketStart := s.Time / a.bucket * a.bucket

	if a.current == nil {
		a.current = a.newCandle(bucketStart, s)
		return nil
	}

	if bucketStart > a.current.OpenTime {
		closed := *a.current
		a.sealed = append(a.sealed, closed)
		if len(a.sealed) > a.history {
			a.sealed = a.sealed[len(a.sealed)-a.history:]
		}
		a.current = a.newCandle(bucketStart, s)
		return &closed
	}

	// Same bucket (or a late sample): mutate the current candle in place.
	a.current.Close = s.Price
	if s.Price > a.current.High {
		a.current.High = s.Price
	}
	if s.Price < a.current.Low {
		a.current.Low = s.Price
	}
	if s.Volume > 0 {
		a.current.Volume += s.Volume
	}
	return nil
}

func (a *Aggregator) newCandle(openTime int64, s PriceSample) *Candle {
	volume := s.Volume
	if volume < 0 {
		volume = 0
	}
	return &Candle{
		OpenTime: openTime,
		Open:     s.Price,
		High:     s.Price,
		Low:      s.Price,
		Close:    s.Price,
		Volume:   volume,
	}
}

// Current returns a copy of the in-progress candle. The second return is
// false before the first sample has been ingested.
func (a *Aggregator) Current() (Candle, bool) {
	if a.current == nil {
		return Candle{}, false
	}
	return *a.current, true
}

// Sealed returns a copy of the sealed-candle history, oldest first.
func (a *Aggregator) Sealed() []Candle {
	out := make([]Candle, len(a.sealed))
	copy(out, a.sealed)
	return out
}
