package main

import (
	"flag"
	"fmt"
	"log"

	"github.com/smartlearn/smartlearn-backend/internal/config"
	"github.com/smartlearn/smartlearn-backend/internal/service"
)

// Development helper: mints a learner JWT so the API can be exercised
// without the external identity provider.
func main() {
	var userID, name string
	flag.StringVar(&userID, "user", "", "Learner user ID")
	flag.StringVar(&name, "name", "", "Learner display name")
	flag.Parse()

	if userID == "" || name == "" {
		log.Fatal("both -user and -name are required")
	}

	cfg := config.Load()
	identity := service.NewIdentityService(cfg)

	token, err := identity.MintToken(userID, name)
	if err != nil {
		log.Fatalf("mint failed: %v", err)
	}

	fmt.Println(token)
}
