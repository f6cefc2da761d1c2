package universe

import (
	"strings"

	"MarketFeed/internal/model"
)

// commodityRoots are futures roots quoted as physical commodities rather than financial futures.
var commodityRoots = map[string]bool{
	"GC": true, "SI": true, "CL": true, "BZ": true, "NG": true, "HG": true, "PL": true, "PA": true,
	"ZC": true, "ZW": true, "ZS": true, "KC": true, "CC": true, "SB": true, "CT": true,
}

// Classify derives the asset type of a symbol from its lexical form.
func Classify(symbol string) model.AssetType {
	s := strings.ToUpper(strings.TrimSpace(symbol))
	switch {
	case strings.HasSuffix(s, "-USD"), strings.HasSuffix(s, "-USDT"):
		return model.AssetCrypto
	case strings.HasPrefix(s, "^"):
		return model.AssetIndex
	case strings.HasSuffix(s, "=X"):
		return model.AssetForex
	case strings.HasSuffix(s, "=F"):
		if commodityRoots[strings.TrimSuffix(s, "=F")] {
			return model.AssetCommodity
		}
		return model.AssetFuture
	default:
		return model.AssetEquity
	}
}

// IsCrypto reports whether the symbol is a crypto pair.
func IsCrypto(symbol string) bool {
	return Classify(symbol) == model.AssetCrypto
}

// Universe is the static registry of tracked symbols grouped by asset type.
type Universe struct {
	groups map[model.AssetType][]string
}

// New builds a universe from per-type symbol lists. Duplicates are dropped.
func New(groups map[model.AssetType][]string) *Universe {
	u := &Universe{groups: make(map[model.AssetType][]string)}
	seen := make(map[string]bool)
	for _, t := range model.AssetTypes {
		for _, sym := range groups[t] {
			sym = strings.TrimSpace(sym)
			if sym == "" || seen[sym] {
				continue
			}
			seen[sym] = true
			u.groups[t] = append(u.groups[t], sym)
		}
	}
	return u
}

// Default returns the built-in registry.
func Default() *Universe {
	return New(map[model.AssetType][]string{
		model.AssetCrypto: {
			"BTC-USD", "ETH-USD", "SOL-USD", "BNB-USD", "XRP-USD", "ADA-USD", "DOGE-USD",
			"AVAX-USD", "DOT-USD", "LINK-USD", "LTC-USD", "MATIC-USD", "TRX-USD", "ATOM-USD",
		},
		model.AssetEquity: {
			"AAPL", "MSFT", "GOOGL", "AMZN", "NVDA", "META", "TSLA", "BRK-B", "JPM", "V",
			"JNJ", "WMT", "XOM", "PG", "MA", "HD", "KO", "DIS", "NFLX", "AMD",
		},
		model.AssetIndex: {
			"^GSPC", "^DJI", "^IXIC", "^RUT", "^VIX", "^FTSE", "^GDAXI", "^N225", "^HSI",
		},
		model.AssetFuture: {
			"ES=F", "NQ=F", "YM=F", "RTY=F", "ZB=F", "ZN=F",
		},
		model.AssetForex: {
			"EURUSD=X", "GBPUSD=X", "USDJPY=X", "AUDUSD=X", "USDCAD=X", "USDCHF=X", "EURGBP=X",
		},
		model.AssetCommodity: {
			"GC=F", "SI=F", "CL=F", "BZ=F", "NG=F", "HG=F", "ZC=F", "ZW=F",
		},
	})
}

// All returns every symbol in registry order.
func (u *Universe) All() []string {
	var out []string
	for _, t := range model.AssetTypes {
		out = append(out, u.groups[t]...)
	}
	return out
}

// ByType returns the symbols registered under the given asset type.
func (u *Universe) ByType(t model.AssetType) []string {
	return append([]string(nil), u.groups[t]...)
}

// Len returns the number of registered symbols.
func (u *Universe) Len() int {
	n := 0
	for _, syms := range u.groups {
		n += len(syms)
	}
	return n
}

// Misplaced returns symbols whose registry group disagrees with Classify.
func (u *Universe) Misplaced() []string {
	var out []string
	for _, t := range model.AssetTypes {
		for _, sym := range u.groups[t] {
			if Classify(sym) != t {
				out = append(out, sym)
			}
		}
	}
	return out
}
