package arango

import (
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/birdie-ai/arangoql/config"
)

type (
	// Config configures a [Client].
	Config struct {
		// Endpoint is the server URL, like "http://localhost:8529".
		Endpoint string `mapstructure:"endpoint"`
		// Database defaults to "_system".
		Database string `mapstructure:"database"`
		Username string `mapstructure:"username"`
		Password string `mapstructure:"password"`
		// Timeout limits each try of an HTTP request, a request that times out is retried.
		// Zero means no limit besides the context deadline.
		Timeout time.Duration `mapstructure:"timeout"`
		Retry   RetryConfig   `mapstructure:"retry"`
	}

	// RetryConfig configures how failed requests are retried.
	RetryConfig struct {
		// Min is the first sleep period between retries, doubled on each retry up to Max.
		Min time.Duration `mapstructure:"min"`
		Max time.Duration `mapstructure:"max"`
		// Attempts limits the number of retries of a request. Zero retries until
		// the request context ends and a negative value disables retrying.
		Attempts int `mapstructure:"attempts"`
	}
)

const (
	// DefaultDatabase is the database used when none is configured.
	DefaultDatabase = "_system"

	// DefaultMinSleepPeriod is the default min sleep period between retries.
	DefaultMinSleepPeriod = 250 * time.Millisecond

	// DefaultMaxSleepPeriod is the default max sleep period between retries.
	DefaultMaxSleepPeriod = 30 * time.Second
)

// ErrInvalidConfig indicates that a [Config] can't be used to create a [Client].
var ErrInvalidConfig = errors.New("arango: invalid config")

// DefaultConfig returns the configuration used for everything that is not set explicitly.
func DefaultConfig() Config {
	return Config{
		Endpoint: "http://localhost:8529",
		Database: DefaultDatabase,
		Retry: RetryConfig{
			Min:      DefaultMinSleepPeriod,
			Max:      DefaultMaxSleepPeriod,
			Attempts: 5,
		},
	}
}

// LoadConfig loads the configuration from the environment variables with the given
// prefix, like "AQLC_": AQLC_ARANGO_ENDPOINT, AQLC_ARANGO_DATABASE,
// AQLC_ARANGO_RETRY_ATTEMPTS and so on. Unset variables keep the [DefaultConfig] values.
func LoadConfig(prefix string) (Config, error) {
	e := struct {
		Arango Config `mapstructure:"arango"`
	}{DefaultConfig()}
	if err := config.Load(prefix, &e); err != nil {
		return Config{}, err
	}
	if err := e.Arango.Validate(); err != nil {
		return Config{}, err
	}
	return e.Arango, nil
}

// Validate checks that the configuration is usable.
func (c Config) Validate() error {
	u, err := url.Parse(c.Endpoint)
	if err != nil {
		return fmt.Errorf("%w: endpoint %q: %v", ErrInvalidConfig, c.Endpoint, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" || u.Host == "" {
		return fmt.Errorf("%w: endpoint %q must be an http(s) URL", ErrInvalidConfig, c.Endpoint)
	}
	if c.Retry.Min < 0 || c.Retry.Max < c.Retry.Min {
		return fmt.Errorf("%w: retry periods: min %v, max %v", ErrInvalidConfig, c.Retry.Min, c.Retry.Max)
	}
	if c.Timeout < 0 {
		return fmt.Errorf("%w: negative timeout %v", ErrInvalidConfig, c.Timeout)
	}
	return nil
}
