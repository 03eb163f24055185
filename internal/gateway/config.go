// Package gateway integrates the external payment gateway: outbound initiation
// payloads and the integrity digest that authenticates inbound callbacks.
package gateway

// Config holds the merchant credentials and URLs for the payment gateway.
// The key and salt are injected here rather than read from ambient state so
// tests can substitute fixtures.
type Config struct {
	Key  string `envconfig:"GATEWAY_KEY" required:"true"`
	Salt string `envconfig:"GATEWAY_SALT" required:"true"`

	// PaymentURL is where the donor's browser posts the signed field set.
	PaymentURL string `envconfig:"GATEWAY_PAYMENT_URL" default:"https://secure.payu.in/_payment"`

	// CallbackBaseURL is this service's public base URL; the gateway calls
	// back to <base>/payment/{success,failure,cancel,webhook}.
	CallbackBaseURL string `envconfig:"CALLBACK_BASE_URL" required:"true"`

	// Frontend outcome pages the donor is redirected to after a callback.
	FrontendSuccessURL string `envconfig:"FRONTEND_SUCCESS_URL" required:"true"`
	FrontendFailureURL string `envconfig:"FRONTEND_FAILURE_URL" required:"true"`
}
