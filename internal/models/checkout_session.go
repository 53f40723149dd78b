package models

// CheckoutSession is the processor-neutral view of a hosted payment session.
type CheckoutSession struct {
	ID               string            `json:"id"`
	Status           string            `json:"status"`
	PaymentStatus    string            `json:"payment_status"`
	Paid             bool              `json:"paid"`
	CustomerEmail    string            `json:"customer_email"`
	CustomerName     string            `json:"customer_name"`
	CustomerPhone    string            `json:"customer_phone"`
	AmountTotalMinor int64             `json:"amount_total_minor"`
	Currency         string            `json:"currency"`
	Metadata         map[string]string `json:"metadata"`
	LineItems        []LineItem        `json:"line_items"`
	URL              string            `json:"url,omitempty"`
}
