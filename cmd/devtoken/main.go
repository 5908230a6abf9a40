// Command devtoken prints a signed access token for local testing of the
// seat API, e.g. `devtoken -user 42 -role ADMIN`.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/iliyamo/cinema-seat-engine/internal/config"
	"github.com/iliyamo/cinema-seat-engine/internal/middleware"
	"github.com/iliyamo/cinema-seat-engine/internal/utils"
)

func main() {
	userID := flag.Uint64("user", 1, "user id placed in the sub claim")
	role := flag.String("role", middleware.RoleCustomer, "role claim (CUSTOMER or ADMIN)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	tok, err := utils.NewAccessToken(cfg.JWTSecret, *userID, *role, cfg.AccessTTLMin)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to sign token: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(tok.Token)
}
