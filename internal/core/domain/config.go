package domain

const (
	ConfigExchangeURL       = "exchange.url"
	ConfigExchangeAPIKey    = "exchange.apikey"
	ConfigExchangeAPISecret = "exchange.apisecret"
)

// ConfigDefaults are the values of the user settable configuration keys
// before they are ever set.
var ConfigDefaults = map[string]string{
	ConfigExchangeURL:       "https://api.bl3p.eu/",
	ConfigExchangeAPIKey:    "",
	ConfigExchangeAPISecret: "",
}

// DefaultConfigValue returns the default for key, and whether key is known.
func DefaultConfigValue(key string) (string, bool) {
	v, ok := ConfigDefaults[key]
	return v, ok
}

// DefaultConfig returns a copy of ConfigDefaults.
func DefaultConfig() map[string]string {
	cfg := make(map[string]string, len(ConfigDefaults))
	for k, v := range ConfigDefaults {
		cfg[k] = v
	}
	return cfg
}
