package allocation

import (
	"fmt"
	"math"
	"math/rand"
)

// MockDataConfig seeds the deterministic sample-data generator used by the
// dev-mode mock endpoint and local testing.
type MockDataConfig struct {
	Seed         int64
	AccountCount int
}

// DefaultMockDataConfig mirrors the original service's MOCK_DATA_SEED
// default of 42 and a modest account count for quick manual testing.
func DefaultMockDataConfig() MockDataConfig {
	return MockDataConfig{Seed: 42, AccountCount: 8}
}

// GenerateMockAccounts produces a deterministic set of sample accounts: NAV
// drawn log-uniformly between $10M and $500M, cash between 10-20% of NAV,
// and risk metrics typical of an investment-grade bond portfolio.
func GenerateMockAccounts(cfg MockDataConfig) []Account {
	if cfg.AccountCount <= 0 {
		cfg.AccountCount = 8
	}
	rng := rand.New(rand.NewSource(cfg.Seed))

	accounts := make([]Account, cfg.AccountCount)
	for i := range accounts {
		nav := generateNAV(rng)
		cashPct := 0.10 + rng.Float64()*0.10
		duration := 1.0 + rng.Float64()*9.0
		spreadDuration := duration * (0.90 + rng.Float64()*0.07)

		accounts[i] = Account{
			AccountID:            fmt.Sprintf("ACC%06d", 100000+rng.Intn(900000)),
			AccountName:          fmt.Sprintf("Mock Account %d", i+1),
			NAV:                  nav,
			AvailableCash:        nav * cashPct,
			CurrentPosition:      0,
			ActiveSpreadDuration: spreadDuration,
			PortfolioDuration:    duration,
			SpreadDuration:       spreadDuration,
			OAS:                  generateOAS(rng, "A"),
		}
	}
	return accounts
}

// GenerateMockSecurity produces a deterministic sample security (a
// corporate bond with typical risk characteristics).
func GenerateMockSecurity(cfg MockDataConfig) Security {
	rng := rand.New(rand.NewSource(cfg.Seed + 1))

	duration := 1.0 + rng.Float64()*9.0
	spreadDuration := duration * (0.90 + rng.Float64()*0.07)

	return Security{
		CUSIP:           generateCUSIP(rng),
		Price:           90.0 + rng.Float64()*20.0,
		Duration:        round2(duration),
		SpreadDuration:  round2(spreadDuration),
		OAS:             generateOAS(rng, "A"),
		MinDenomination: 1000,
	}
}

func generateNAV(rng *rand.Rand) float64 {
	const logMin, logMax = 7.0, 8.7 // 10M .. ~500M
	logNAV := logMin + rng.Float64()*(logMax-logMin)
	nav := math.Pow(10, logNAV)
	return round(nav, 1_000_000)
}

// oasRanges mirrors the original mock generator's credit-rating bands.
var oasRanges = map[string][2]float64{
	"AAA": {5, 25},
	"AA":  {15, 40},
	"A":   {30, 80},
	"BBB": {70, 150},
	"BB":  {200, 400},
	"B":   {400, 700},
}

func generateOAS(rng *rand.Rand, rating string) float64 {
	r, ok := oasRanges[rating]
	if !ok {
		r = [2]float64{50, 100}
	}
	return round2(r[0] + rng.Float64()*(r[1]-r[0]))
}

const cusipAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

func generateCUSIP(rng *rand.Rand) string {
	issuer := make([]byte, 6)
	for i := range issuer {
		issuer[i] = cusipAlphabet[rng.Intn(len(cusipAlphabet))]
	}
	return fmt.Sprintf("%s%02d%d", issuer, rng.Intn(100), rng.Intn(10))
}

func round(v, nearest float64) float64 {
	return math.Round(v/nearest) * nearest
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
