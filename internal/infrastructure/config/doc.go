// Package config handles loading and validating the camera bridge configuration.
//
// This package manages:
//   - Loading configuration from YAML files
//   - Overriding with environment variables
//   - Validation of required fields
//
// Camera credentials and the MQTT password should be supplied through
// GRAYLOGIC_CAMERAS_PASSWORD and GRAYLOGIC_MQTT_PASSWORD rather than the file.
//
// Usage:
//
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.Cameras.SlowPoll())
package config
