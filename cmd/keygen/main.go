package main

import (
	"fmt"
	"os"

	"github.com/pivotdata/syncgate/internal/license"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: go run cmd/keygen/main.go <license-token>")
		fmt.Println("Generates a SHA-256 hash of the provided license token for use in config.yaml")
		os.Exit(1)
	}

	token := os.Args[1]
	keyHash := license.HashToken(token)

	fmt.Printf("License Token: %s\n", token)
	fmt.Printf("SHA-256 Hash: %s\n", keyHash)
	fmt.Println("\nAdd this to your config.yaml:")
	fmt.Printf("  licenses:\n")
	fmt.Printf("    - key_hash: \"%s\"\n", keyHash)
	fmt.Printf("      tenant_key: \"tenant-name\"\n")
	fmt.Printf("      tier: \"basic\"\n")
}
