// Package config holds process-level configuration for feedsim
// commands, parsed from the environment.
package config

// Config carries the settings shared by every feedsim command. Command
// flags take precedence, so these values act as flag defaults: an
// unset flag keeps whatever the environment provided.
//
// OllamaURL and OllamaModel may stay empty; the Ollama client fills in
// its own defaults. An empty NATSURL keeps event publishing on the
// no-op publisher.
type Config struct {
	DBPath       string `env:"FEEDSIM_DB_PATH" envDefault:"sim.db"`
	OllamaURL    string `env:"FEEDSIM_OLLAMA_URL"`
	OllamaModel  string `env:"FEEDSIM_OLLAMA_MODEL"`
	NATSURL      string `env:"FEEDSIM_NATS_URL"`
	OTLPEndpoint string `env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
}

// FromEnv parses a Config from the process environment.
func FromEnv() (Config, error) {
	var cfg Config
	if err := ParseEnv(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
