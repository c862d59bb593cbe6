package enrichprospect

import "time"

type Config struct {
	Timeout        time.Duration
	NotifyHotLeads bool
}

func LoadConfig() *Config {
	return &Config{
		Timeout: 2 * time.Minute,
	}
}
