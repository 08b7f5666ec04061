package main

//go:generate swag init -g internal/auth/http/router.go -d ../../ -o ../../api/auth --parseDependency --instanceName swagger

import (
	"log"

	"github.com/aussiebroadwan/authflow/internal/auth/app"
)

func main() {
	cfg := app.LoadConfig()

	application, err := app.New(cfg)
	if err != nil {
		log.Fatalf("failed to initialize application: %v", err)
	}

	if err := application.Run(); err != nil {
		log.Fatalf("application error: %v", err)
	}
}
