// Command admintoken prints a signed admin token for the lending API.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/Freeeeeet/campus_lending/internal/auth"
	"github.com/joho/godotenv"
)

func main() {
	adminID := flag.String("admin", "", "admin id recorded on processed requests")
	ttl := flag.Duration("ttl", 12*time.Hour, "token lifetime")
	flag.Parse()

	godotenv.Load(".env")

	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		log.Fatal("JWT_SECRET is required but not set")
	}
	if *adminID == "" {
		log.Fatal("-admin is required")
	}

	token, err := auth.NewTokenManager(secret).Issue(*adminID, auth.RoleAdmin, *ttl)
	if err != nil {
		log.Fatalf("Failed to issue token: %v", err)
	}

	fmt.Println(token)
}
