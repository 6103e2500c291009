package allocation

// projectFeasible applies the feasibility projector (C3) to a single
// account's desired quantity, in the order specified: round to
// denomination, minimum-lot floor, cash (BUY) or position (SELL) clipping,
// then concentration cap. It returns the feasible quantity and any
// warnings raised along the way.
func projectFeasible(
	desired float64,
	account Account,
	sec Security,
	side Side,
	price float64,
	c Constraints,
) (float64, []Warning) {
	var warnings []Warning
	q := desired
	wasNonZero := desired > 0

	if c.RoundToDenomination && sec.MinDenomination > 0 {
		q = floorDiv(q, sec.MinDenomination)
	}

	if q < c.MinAllocation {
		if wasNonZero {
			warnings = append(warnings, Warning{
				Type:      WarningMinLotSize,
				AccountID: account.AccountID,
				Message:   "allocation below minimum lot size, reduced to zero",
			})
		}
		return 0, warnings
	}

	if side == Buy && c.RespectCash {
		needed := q * price
		if needed > account.AvailableCash {
			qPrime := account.CurrentAffordableQty(price, sec.MinDenomination)
			if qPrime < c.MinAllocation {
				warnings = append(warnings, Warning{
					Type:      WarningInsufficientCash,
					AccountID: account.AccountID,
					Message:   "insufficient cash for minimum allocation, reduced to zero",
				})
				return 0, warnings
			}
			q = qPrime
		}
	}

	if side == Sell {
		if q > account.CurrentPosition {
			original := q
			q = floorDiv(account.CurrentPosition, sec.MinDenomination)
			if q < original {
				warnings = append(warnings, Warning{
					Type:      WarningCompliance,
					AccountID: account.AccountID,
					Message:   "allocation reduced to available position",
				})
			}
		}
	}

	if c.MaxConcentration > 0 {
		concentrationCap := floorDiv(c.MaxConcentration*account.NAV/price, sec.MinDenomination)
		if q > concentrationCap {
			q = concentrationCap
		}
	}

	return q, warnings
}

// CurrentAffordableQty returns the largest quantity (rounded down to a lot)
// the account's current cash can afford at price.
func (a Account) CurrentAffordableQty(price, lot float64) float64 {
	if price <= 0 {
		return 0
	}
	return floorDiv(a.AvailableCash/price, lot)
}
