package allocation

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func metricAccount() Account {
	return Account{
		AccountID:            "A1",
		NAV:                  1_000_000,
		CurrentPosition:      100_000,
		ActiveSpreadDuration: 5.0,
		PortfolioDuration:    6.0,
		OAS:                  120,
	}
}

func metricSecurity() Security {
	return Security{
		Price:          1.0,
		Duration:       4.0,
		SpreadDuration: 3.0,
		OAS:            150,
	}
}

func TestPreTradeMetrics(t *testing.T) {
	m := preTradeMetrics(metricAccount())
	assert.Equal(t, 5.0, m.ActiveSpreadDuration)
	assert.Equal(t, 6.0, m.Duration)
	assert.Equal(t, 120.0, m.OAS)
}

func TestPostTradeMetrics_NAVZeroNoChange(t *testing.T) {
	acc := metricAccount()
	acc.NAV = 0
	m := postTradeMetrics(acc, metricSecurity(), Buy, 1.0, 50_000, TargetActiveSpreadDuration)
	assert.Equal(t, acc.ActiveSpreadDuration, m)
}

func TestPostTradeMetrics_ActiveSpreadDuration(t *testing.T) {
	acc := metricAccount()
	sec := metricSecurity()
	m := postTradeMetrics(acc, sec, Buy, 1.0, 100_000, TargetActiveSpreadDuration)
	// oldMV = 100_000*1=100_000, newMV=(100_000+100_000)*1=200_000
	// m = 5.0 - (0.1)*3.0 + (0.2)*3.0 = 5.0 + 0.3 = 5.3
	assert.InDelta(t, 5.3, m, 1e-9)
}

func TestPostTradeMetrics_Duration(t *testing.T) {
	acc := metricAccount()
	sec := metricSecurity()
	m := postTradeMetrics(acc, sec, Buy, 1.0, 100_000, TargetDuration)
	// oldMV=100_000, oldWeight=(1_000_000-100_000)/1_000_000=0.9
	// newMV=200_000, newWeight=0.2
	// m = 0.9*6.0 + 0.2*4.0 = 5.4+0.8=6.2
	assert.InDelta(t, 6.2, m, 1e-9)
}

func TestPostTradeMetrics_OASDegradesToSecurityOAS(t *testing.T) {
	acc := metricAccount()
	sec := metricSecurity()
	m := postTradeMetrics(acc, sec, Buy, 1.0, 100_000, TargetOAS)
	assert.Equal(t, sec.OAS, m)
}

func TestPostTradeMetrics_SellDecreasesExposure(t *testing.T) {
	acc := metricAccount()
	sec := metricSecurity()
	m := postTradeMetrics(acc, sec, Sell, 1.0, 50_000, TargetActiveSpreadDuration)
	// oldMV=100_000, newMV=(100_000-50_000)*1=50_000
	// m = 5.0 - 0.1*3.0 + 0.05*3.0 = 5.0 - 0.3 + 0.15 = 4.85
	assert.InDelta(t, 4.85, m, 1e-9)
}

func TestComputeDispersion_PerfectlyEqualPostValuesWithinTolerance(t *testing.T) {
	pre := []float64{5.0, 4.8, 5.2, 5.0}
	post := []float64{5.0, 5.0, 5.0, 5.0}
	d := computeDispersion(TargetActiveSpreadDuration, 0.05, pre, post, true, 10, 0.0)
	assert.Equal(t, 0.0, d.PostTradeStdDev)
	assert.True(t, d.WithinTolerance)
	assert.Equal(t, 5.0, d.TargetValue)
	assert.Equal(t, 1.0, d.Improvement) // pre > 0, post == 0 -> full improvement
}

func TestComputeDispersion_EmptyPostValues(t *testing.T) {
	pre := []float64{5.0, 4.8}
	d := computeDispersion(TargetActiveSpreadDuration, 0.05, pre, nil, false, 0, 0.0)
	assert.False(t, d.WithinTolerance)
	assert.Equal(t, 0.0, d.TargetValue)
}

func TestComputeDispersion_ZeroPreStdDevNoImprovementDivide(t *testing.T) {
	pre := []float64{5.0, 5.0}
	post := []float64{5.1, 4.9}
	d := computeDispersion(TargetActiveSpreadDuration, 0.05, pre, post, true, 1, 0.0)
	assert.Equal(t, 0.0, d.Improvement)
}
