package agent

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"time"
)

const (
	defPollInterval = 5 * time.Second
	defBaseTopic    = "agrifed/fl"
)

type Config struct {
	CoordinatorURL string `json:"coordinator_url"`
	ClientID       string `json:"client_id"`
	Name           string `json:"name"`
	Location       string `json:"location"`
	DatasetSize    uint64 `json:"dataset_size"`
	ModelType      string `json:"model_type"`
	PollInterval   string `json:"poll_interval"`
	TrainSeed      int64  `json:"train_seed"`
	BrokerURL      string `json:"broker_url"`
	BaseTopic      string `json:"base_topic"`
}

func LoadConfig(filepath string) (Config, error) {
	file, err := os.Open(filepath)
	if err != nil {
		return Config{}, fmt.Errorf("unable to open configuration file '%s': %w", filepath, err)
	}
	defer file.Close()

	var config Config
	decoder := json.NewDecoder(file)
	if err := decoder.Decode(&config); err != nil {
		return Config{}, fmt.Errorf("failed to parse configuration file '%s': %w", filepath, err)
	}

	if err := config.Validate(); err != nil {
		return Config{}, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}

func (c Config) Validate() error {
	if c.CoordinatorURL == "" {
		return errors.New("coordinator_url is required")
	}
	if _, err := url.Parse(c.CoordinatorURL); err != nil {
		return fmt.Errorf("coordinator_url is not a valid URL: %w", err)
	}
	if c.ClientID == "" {
		return errors.New("client_id is required")
	}
	if c.DatasetSize == 0 {
		return errors.New("dataset_size is required")
	}
	if c.PollInterval != "" {
		if _, err := time.ParseDuration(c.PollInterval); err != nil {
			return fmt.Errorf("poll_interval is not a valid duration: %w", err)
		}
	}
	if c.BrokerURL != "" {
		if _, err := url.Parse(c.BrokerURL); err != nil {
			return fmt.Errorf("broker_url is not a valid URL: %w", err)
		}
	}

	return nil
}

// PollEvery returns the configured poll cadence, falling back to the
// default when unset.
func (c Config) PollEvery() time.Duration {
	if c.PollInterval == "" {
		return defPollInterval
	}
	d, err := time.ParseDuration(c.PollInterval)
	if err != nil {
		return defPollInterval
	}

	return d
}

// Topic returns the announcement topic prefix shared with the
// coordinator, falling back to the default when unset.
func (c Config) Topic() string {
	if c.BaseTopic == "" {
		return defBaseTopic
	}

	return c.BaseTopic
}
