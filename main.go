package main

import (
	"context"
	"os"

	"github.com/joho/godotenv"
	"github.com/klokku/hris/internal/app"
	"github.com/klokku/hris/internal/config"
	log "github.com/sirupsen/logrus"
)

func init() {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Warnf("failed to load .env file: %v", err)
	}

	level := os.Getenv("LOG_LEVEL")
	if level != "" {
		logrusLevel, err := log.ParseLevel(level)
		if err != nil {
			log.Fatal(err)
		}
		log.SetLevel(logrusLevel)
	} else {
		log.SetLevel(log.InfoLevel)
	}
}

func main() {
	cfg, err := config.Load("./config/application.yaml")
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}
	application, err := app.NewApplication(cfg)
	if err != nil {
		log.Fatalf("failed to initialize application: %v", err)
	}
	if err := application.Run(context.Background()); err != nil {
		log.Fatal(err)
	}
}
