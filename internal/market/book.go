package market

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"sort"
	"strconv"
)

// BookConfig holds tunables for synthetic depth generation.
type BookConfig struct {
	// Depth is the number of levels generated per side.
	Depth int

	// Step is the price distance between adjacent levels.
	Step float64

	// Jitter is the max random offset added to each level price.
	Jitter float64

	// AmountMax scales the random amount at each level.
	AmountMax float64
}

// SyntheticBook derives a depth snapshot around a reference price. It holds
// no persistent state; every snapshot is recomputed from its inputs and the
// injected generator.
type SyntheticBook struct {
	cfg BookConfig
	rng *rand.Rand
}

// NewSyntheticBook creates a synthetic book generator. The generator is
// owned by the book afterwards and must not be shared.
func NewSyntheticBook(cfg BookConfig, rng *rand.Rand) *SyntheticBook {
	if cfg.Depth <= 0 {
		cfg.Depth = 8
	}
	if cfg.Step == 0 {
		cfg.Step = 5
	}
	if cfg.AmountMax == 0 {
		cfg.AmountMax = 2
	}
	return &SyntheticBook{cfg: cfg, rng: rng}
}

// Snapshot generates Depth ask levels above ref and Depth bid levels below
// it. Level prices carry random jitter that can reorder adjacent levels, so
// both sides are sorted before returning. The closest ask sits at least
// Step above ref and the closest bid at least Step below, so the book is
// never crossed.
func (b *SyntheticBook) Snapshot(ref float64) BookSnapshot {
	asks := make([]BookLevel, 0, b.cfg.Depth)
	for i := 1; i <= b.cfg.Depth; i++ {
		asks = append(asks, BookLevel{
			Price:  ref + float64(i)*b.cfg.Step + b.rng.Float64()*b.cfg.Jitter,
			Amount: b.rng.Float64() * b.cfg.AmountMax,
		})
	}

	bids := make([]BookLevel, 0, b.cfg.Depth)
	for i := 1; i <= b.cfg.Depth; i++ {
		bids = append(bids, BookLevel{
			Price:  ref - float64(i)*b.cfg.Step - b.rng.Float64()*b.cfg.Jitter,
			Amount: b.rng.Float64() * b.cfg.AmountMax,
		})
	}

	sort.Slice(asks, func(i, j int) bool { return asks[i].Price < asks[j].Price })
	sort.Slice(bids, func(i, j int) bool { return bids[i].Price > bids[j].Price })

	return BookSnapshot{
		Bids:   bids,
		Asks:   asks,
		Spread: asks[0].Price - bids[0].Price,
	}
}

// rawDepth matches the exchange depth payload shape:
// {"bids": [["price", "amount"], ...], "asks": [["price", "amount"], ...]}
type rawDepth struct {
	Bids [][]string `json:"bids"`
	Asks [][]string `json:"asks"`
}

// ParseDepthSnapshot decodes an externally fetched depth payload, truncates
// it to depth levels per side and computes the spread. The source is assumed
// to sort bids descending and asks ascending.
//
// A malformed payload, an unparseable numeric string, an empty side or a
// crossed book all return ErrFeedUnavailable: the caller keeps its previous
// snapshot and treats the refresh as failed.
func ParseDepthSnapshot(payload []byte, depth int) (BookSnapshot, error) {
	var raw rawDepth
	if err := json.Unmarshal(payload, &raw); err != nil {
		return BookSnapshot{}, fmt.Errorf("%w: decode depth: %v", ErrFeedUnavailable, err)
	}
	if len(raw.Bids) == 0 || len(raw.Asks) == 0 {
		return BookSnapshot{}, fmt.Errorf("%w: empty book side", ErrFeedUnavailable)
	}

	bids, err := parseLevels(raw.Bids, depth)
	if err != nil {
		return BookSnapshot{}, fmt.Errorf("%w: bids: %v", ErrFeedUnavailable, err)
	}
	asks, err := parseLevels(raw.Asks, depth)
	if err != nil {
		return BookSnapshot{}, fmt.Errorf("%w: asks: %v", ErrFeedUnavailable, err)
	}

	if bids[0].Price >= asks[0].Price {
		return BookSnapshot{}, fmt.Errorf("%w: crossed book: bid %f >= ask %f",
			ErrFeedUnavailable, bids[0].Price, asks[0].Price)
	}

	return BookSnapshot{
		Bids:   bids,
		Asks:   asks,
		Spread: asks[0].Price - bids[0].Price,
	}, nil
}

func parseLevels(raw [][]string, depth int) ([]BookLevel, error) {
	if depth > 0 && len(raw) > depth {
		raw = raw[:depth]
	}
	levels := make([]BookLevel, 0, len(raw))
	for _, pair := range raw {
		if len(pair) < 2 {
			return nil, fmt.Errorf("level has %d fields", len(pair))
		}
		price, err := strconv.ParseFloat(pair[0], 64)
		if err != nil {
			return nil, fmt.Errorf("price %q: %v", pair[0], err)
		}
		amount, err := strconv.ParseFloat(pair[1], 64)
		if err != nil {
			return nil, fmt.Errorf("amount %q: %v", pair[1], err)
		}
		if amount < 0 {
			return nil, fmt.Errorf("negative amount %f", amount)
		}
		levels = append(levels, BookLevel{Price: price, Amount: amount})
	}
	return levels, nil
}
