package config

type Config struct {
	Environment Environment
	Log         Log
	HTTP        HTTPServer
	BaseURL     string `env:"BASE_URL"`
	DatabaseDSN string `env:"DATABASE_DSN" envDefault:"cardfund.db"`

	// Settlement is expressed in a single currency.
	Currency string `env:"CURRENCY" envDefault:"EUR"`

	// Platform keeps PlatformFeePercent of each line total unless the
	// product carries its own commission override.
	PlatformFeePercent float64 `env:"PLATFORM_FEE_PERCENT" envDefault:"60"`
	VATPercent         float64 `env:"VAT_PERCENT" envDefault:"20"`

	// Default earning percentage for newly created affiliations.
	AffiliateEarningPercent float64 `env:"AFFILIATE_EARNING_PERCENT" envDefault:"2.5"`

	JWTSecret string `env:"JWT_SECRET"`

	Stripe    Stripe    `envPrefix:"STRIPE_"`
	Invoicing Invoicing `envPrefix:"INVOICING_"`
	SMTP      SMTP      `envPrefix:"SMTP_"`
}

type Stripe struct {
	BaseApiURL    string `env:"BASE_API_URL" envDefault:"https://api.stripe.com"`
	SecretKey     string `env:"SECRET_KEY"`
	WebhookSecret string `env:"WEBHOOK_SECRET"`
}

type Invoicing struct {
	BaseApiURL string `env:"BASE_API_URL"`
	APIKey     string `env:"API_KEY"`
}

type SMTP struct {
	Host     string `env:"HOST"`
	Port     int    `env:"PORT" envDefault:"587"`
	User     string `env:"USER"`
	Password string `env:"PASSWORD"`
	From     string `env:"FROM" envDefault:"no-reply@cardfund.org"`
}

type Environment struct {
	Name string `env:"ENVIRONMENT" envDefault:"development"`
}

type Log struct {
	Level  string `env:"LOG_LEVEL" envDefault:"info"`
	Format string `env:"LOG_FORMAT" envDefault:"json"`
}

type HTTPServer struct {
	Host string `env:"HTTP_HOST" envDefault:"0.0.0.0"`
	Port string `env:"HTTP_PORT" envDefault:"8080"`
}
