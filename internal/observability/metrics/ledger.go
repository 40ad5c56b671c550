package metrics

// Status returns the status label for an operation result.
func Status(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}

// ListingOperation records a marketplace listing operation.
func ListingOperation(operation string, err error) {
	if !enabled {
		return
	}
	listingOperationsTotal.WithLabelValues(operation, Status(err)).Inc()
}

// Payout records a payout attempt; kind is "earnings" or "fees".
func Payout(kind string, err error) {
	if !enabled {
		return
	}
	payoutsTotal.WithLabelValues(kind, Status(err)).Inc()
}

// TitleRequest records a title request transition (pending, fulfilled, rejected, error).
func TitleRequest(status string) {
	if !enabled {
		return
	}
	titleRequestsTotal.WithLabelValues(status).Inc()
}

// DeedsMinted records minted deeds.
func DeedsMinted(n int) {
	if !enabled || n <= 0 {
		return
	}
	deedsMintedTotal.Add(float64(n))
}

// OracleFulfillment records a fulfillment submitted by the oracle worker.
func OracleFulfillment(result string) {
	if !enabled {
		return
	}
	oracleFulfillmentsTotal.WithLabelValues(result).Inc()
}
