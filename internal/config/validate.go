package config

import "fmt"

// Validate performs business-rule validation on the loaded configuration.
// It must be called after loading; Load calls it automatically.
func (c *Config) Validate() error {
	if c.Upstream.RetryAttempts < 1 {
		return fmt.Errorf("upstream.retry_attempts must be >= 1 (got %d)", c.Upstream.RetryAttempts)
	}
	if c.Upstream.RetryDelay < 0 {
		return fmt.Errorf("upstream.retry_delay must be >= 0 (got %v)", c.Upstream.RetryDelay)
	}
	if c.Upstream.Timeout <= 0 {
		return fmt.Errorf("upstream.timeout must be > 0 (got %v)", c.Upstream.Timeout)
	}

	if c.Sync.Interval <= 0 {
		return fmt.Errorf("sync.interval must be > 0 (got %v)", c.Sync.Interval)
	}
	if c.Sync.Lookback <= 0 {
		return fmt.Errorf("sync.lookback must be > 0 (got %v)", c.Sync.Lookback)
	}

	if c.Classifier.Enabled && c.Classifier.APIKey == "" {
		return fmt.Errorf("classifier.api_key is required when classifier is enabled")
	}

	return nil
}
