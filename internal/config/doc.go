// Package config provides configuration management for vocalmetrics.
//
// Configuration is loaded from environment variables using the env package.
// A .env file (or the file named by ENV_FILE) is read first when present;
// variables already set in the environment win. All values have defaults
// suitable for local development.
//
// Example usage:
//
//	cfg, err := config.Load()
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	fmt.Printf("HTTP server will listen on %s\n", cfg.GetHTTPAddr())
package config
