package enums

import (
	"fmt"
	"strings"
)

// PaymentMethod is the buyer's chosen way to settle an order. Payments are
// captured outside this service; the value is recorded on the order only.
type PaymentMethod string

const (
	PaymentMethodCredit PaymentMethod = "credit"
	PaymentMethodPix    PaymentMethod = "pix"
	PaymentMethodBoleto PaymentMethod = "boleto"
)

var validPaymentMethods = []PaymentMethod{
	PaymentMethodCredit,
	PaymentMethodPix,
	PaymentMethodBoleto,
}

var paymentMethodLabels = map[PaymentMethod]string{
	PaymentMethodCredit: "Cartão de Crédito",
	PaymentMethodPix:    "PIX",
	PaymentMethodBoleto: "Boleto",
}

// String implements fmt.Stringer.
func (p PaymentMethod) String() string {
	return string(p)
}

// Label is the customer-facing name shown on receipts.
func (p PaymentMethod) Label() string {
	return paymentMethodLabels[p]
}

// IsValid reports whether the value is a known PaymentMethod.
func (p PaymentMethod) IsValid() bool {
	for _, candidate := range validPaymentMethods {
		if candidate == p {
			return true
		}
	}
	return false
}

// ParsePaymentMethod converts raw input into a PaymentMethod.
func ParsePaymentMethod(value string) (PaymentMethod, error) {
	normalized := strings.ToLower(strings.TrimSpace(value))
	for _, candidate := range validPaymentMethods {
		if string(candidate) == normalized {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid payment method %q", value)
}
