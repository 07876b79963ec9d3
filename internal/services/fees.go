package services

// Fee split policy: 10% platform, 90% payee, applied in integer cents.
const (
	platformFeeShareBPS = 1000
	payeePayoutShareBPS = 9000
)

// SplitFee derives the platform fee and payee payout from a price in cents.
// The fee rounds to the nearest cent, the payout truncates, so the two parts
// never sum to more than the price. A zero price splits to zero.
//
// Money fields on an evaluation are only ever produced by this function,
// never edited directly.
func SplitFee(priceCents int64) (platformFeeCents, payeePayoutCents int64) {
	if priceCents <= 0 {
		return 0, 0
	}
	platformFeeCents = (priceCents*platformFeeShareBPS + 5000) / 10000
	payeePayoutCents = priceCents * payeePayoutShareBPS / 10000
	return platformFeeCents, payeePayoutCents
}
