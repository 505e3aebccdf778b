// Command tokengen prints a signed demo JWT for the user API example.
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/tascaenzo/trinacria/examples/userapi/auth"
)

func main() {
	secret := flag.String("secret", "change-me-in-production", "signing secret")
	userID := flag.String("user", "demo-user", "user id claim")
	username := flag.String("username", "demo", "username claim")
	ttl := flag.Duration("ttl", 24*time.Hour, "token lifetime")
	flag.Parse()

	svc := auth.NewTokenService(auth.Config{Secret: *secret, TokenTTL: *ttl})
	token, err := svc.Generate(*userID, *username)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	fmt.Println(token)
}
