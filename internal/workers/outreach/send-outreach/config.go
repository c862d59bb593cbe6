package sendoutreach

import "time"

type Config struct {
	Timeout time.Duration
	// Enabled is false when no mail provider is configured; jobs then
	// complete with sent=false so the process can continue.
	Enabled  bool
	From     string
	ReplyTo  string
	Provider string
}

func LoadConfig() *Config {
	return &Config{
		Timeout:  20 * time.Second,
		Provider: "ses",
	}
}
