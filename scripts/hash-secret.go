package main

import (
	"fmt"
	"os"

	"github.com/balancepro/studio-server/internal/util"
)

// Prints a bcrypt hash of an access code, for TRAINER_SECRET_HASH.
func main() {
	if len(os.Args) < 2 {
		fmt.Fprintf(os.Stderr, "Usage: go run scripts/hash-secret.go <access-code>\n")
		os.Exit(1)
	}

	hash, err := util.HashSecret(os.Args[1])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	fmt.Println(hash)
}
