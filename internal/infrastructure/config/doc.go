// Package config handles loading and validating illuminate-door configuration.
//
// This package manages:
//   - Loading configuration from YAML files (unknown keys are errors)
//   - Loading a .env file next to the config file
//   - Overriding with ILLUMINATE_* environment variables
//   - Validation of every section, reporting all problems at once
//   - Default value handling
//
// Security Considerations:
//   - Tokens and passwords should be set via environment variables or .env
//   - The config file should have restricted permissions (0600)
//
// Usage:
//
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	for _, a := range cfg.Automations {
//	    fmt.Println(a.Sensor, a.RestoreAfter())
//	}
//
// A minimal automation block:
//
//	automations:
//	  - name: front-door
//	    sensor: binary_sensor.front_door
//	    duration: 120
//	    turn_on:
//	      - switch.porch
//	      - entity: light.hall
//	        data:
//	          brightness: 255
//	          rgb_color: [255, 200, 150]
package config
