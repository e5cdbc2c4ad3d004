// Package config loads and validates the Insteon core configuration.
//
// Loading order:
//  1. Defaults
//  2. YAML file values
//  3. GRAYLOGIC_* environment variables
//  4. Validate, which reports every problem at once
//
// Secrets (MQTT password, InfluxDB token) should come from the environment
// and the file should be readable by the service user only.
//
// Usage:
//
//	cfg, err := config.Load("configs/insteon.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	loc, _ := cfg.Location()
package config
