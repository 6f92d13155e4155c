package racha

// Config is the configuration for the racha application.
type Config struct {
	HTTPAddr string
	// BINPrefix sets the BIN used to generate card numbers (6/8/9 digits).
	BINPrefix string
	// ValidadeAnos is the validity in years stamped on materialized cards.
	ValidadeAnos int
	// TaxaBasisPoints is the credit-purchase surcharge (200 = 2%).
	TaxaBasisPoints int
}

func DefaultConfig() *Config {
	return &Config{
		HTTPAddr:        "localhost:9090",
		BINPrefix:       "421234",
		ValidadeAnos:    3,
		TaxaBasisPoints: 200,
	}
}
