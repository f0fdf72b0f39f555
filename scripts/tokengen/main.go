// Command tokengen signs a development access token so local requests can
// pass the JWT middleware without a running identity platform.
package main

import (
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/noah-isme/simlab-api/internal/models"
	"github.com/noah-isme/simlab-api/internal/service"
	"github.com/noah-isme/simlab-api/pkg/config"
)

func main() {
	var (
		userID string
		orgID  string
		role   string
		ttl    time.Duration
	)

	flag.StringVar(&userID, "user", "", "User ID for the token subject")
	flag.StringVar(&orgID, "org", "", "Organization ID")
	flag.StringVar(&role, "role", string(models.RoleMember), "Role: ADMIN or MEMBER")
	flag.DurationVar(&ttl, "ttl", 24*time.Hour, "Token lifetime")
	flag.Parse()

	if userID == "" || orgID == "" {
		log.Fatal("both -user and -org are required")
	}
	userRole := models.UserRole(role)
	if userRole != models.RoleAdmin && userRole != models.RoleMember {
		log.Fatalf("unknown role %q", role)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	jwtCfg := cfg.JWT
	jwtCfg.Expiration = ttl

	auth := service.NewAuthService(jwtCfg, nil)
	token, err := auth.IssueToken(userID, orgID, userRole)
	if err != nil {
		log.Fatalf("failed to sign token: %v", err)
	}
	fmt.Println(token)
}
