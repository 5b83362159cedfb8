package enums

// PaymentStatus is a label on the order; no payment is processed here.
type PaymentStatus string

const (
	PaymentStatusUnpaid   PaymentStatus = "unpaid"
	PaymentStatusPaid     PaymentStatus = "paid"
	PaymentStatusRefunded PaymentStatus = "refunded"
)

var paymentStatuses = []PaymentStatus{PaymentStatusUnpaid, PaymentStatusPaid, PaymentStatusRefunded}

func (p PaymentStatus) String() string { return string(p) }

func (p PaymentStatus) IsValid() bool { return valid(paymentStatuses, p) }

func ParsePaymentStatus(value string) (PaymentStatus, error) {
	return parse("payment status", paymentStatuses, value)
}
