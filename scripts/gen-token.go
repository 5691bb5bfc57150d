package main

import (
	"fmt"
	"os"

	"github.com/google/uuid"

	"github.com/chatvault/server-go/internal/util"
)

// Generates an API token for a new user and prints the SQL to register it.
// The server stores only the hash; hand the plain token to the client.
func main() {
	name := "dev"
	if len(os.Args) > 1 {
		name = os.Args[1]
	}

	token, err := util.GenerateToken()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	userID := uuid.NewString()

	fmt.Printf("user id:   %s\n", userID)
	fmt.Printf("api token: %s\n", token)
	fmt.Println()
	fmt.Printf("INSERT INTO users (id, display_name, api_token_hash, rate_limit_per_minute)\n")
	fmt.Printf("VALUES ('%s', '%s', '%s', 60);\n", userID, name, util.HashToken(token))
}
