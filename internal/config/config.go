// Package config provides configuration parsing and validation for the
// alert-service.
package config

import (
	"fmt"
)

// Config holds all configuration parameters for the alert-service.
type Config struct {
	HTTPPort     string
	PostgresDSN  string
	ServiceToken string
	JWTSecret    string

	// KafkaBrokers enables the restock.created egress when non-empty.
	KafkaBrokers string
	RestockTopic string

	// RedisAddr enables metrics reporting when non-empty.
	RedisAddr string
}

// Validate checks that all required configuration fields are set and have
// valid values. Returns an error if validation fails, nil otherwise.
func (c *Config) Validate() error {
	if c.HTTPPort == "" {
		return fmt.Errorf("http-port cannot be empty")
	}
	if c.PostgresDSN == "" {
		return fmt.Errorf("postgres-dsn cannot be empty")
	}
	if c.ServiceToken == "" {
		return fmt.Errorf("service-token cannot be empty")
	}
	if c.JWTSecret == "" {
		return fmt.Errorf("jwt-secret cannot be empty")
	}
	if c.KafkaBrokers != "" && c.RestockTopic == "" {
		return fmt.Errorf("restock-topic cannot be empty when kafka-brokers is set")
	}
	return nil
}
