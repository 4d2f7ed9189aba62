package config_test

import (
	"fmt"
	"log"

	"github.com/ajitpratap0/quack/pkg/config"
)

// ExampleNewDefaultConfig demonstrates the shipped defaults.
func ExampleNewDefaultConfig() {
	cfg := config.NewDefaultConfig()

	fmt.Printf("Data dir: %s\n", cfg.DataDir)
	fmt.Printf("Access method: %s\n", cfg.AccessMethod)
	fmt.Printf("Preserve insert order on write: %v\n", cfg.Engine.PreserveInsertOrderOnWrite)

	// Output:
	// Data dir: /opt/quack/
	// Access method: quack
	// Preserve insert order on write: false
}

// ExampleConfig_Validate shows how to validate a configuration before use.
func ExampleConfig_Validate() {
	cfg := config.NewDefaultConfig()
	cfg.DataDir = "/var/lib/quack"
	cfg.Engine.MemoryLimit = "2GB"

	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	fmt.Println("Configuration is valid!")

	// Output:
	// Configuration is valid!
}
