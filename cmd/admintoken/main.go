// Command admintoken issues a JWT for the model administration endpoints.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/temcen/gamerec/internal/config"
	"github.com/temcen/gamerec/internal/database"
	"github.com/temcen/gamerec/internal/services"
)

func main() {
	subject := flag.String("subject", "", "token subject, usually an operator name")
	role := flag.String("role", services.RoleOperator, "admin or operator")
	flag.Parse()

	if *subject == "" {
		flag.Usage()
		os.Exit(2)
	}
	if *role != services.RoleAdmin && *role != services.RoleOperator {
		log.Fatalf("Unknown role %q", *role)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger := logrus.New()
	logger.SetLevel(logrus.WarnLevel)

	// The server checks sessions in Redis when it is enabled, so the token
	// must be registered there too.
	var redisClient *redis.Client
	if cfg.Redis.Enabled {
		redisClient, err = database.NewRedisClient(cfg)
		if err != nil {
			log.Fatalf("Failed to connect to Redis: %v", err)
		}
		defer redisClient.Close()
	}

	auth := services.NewAuthService(cfg, logger, redisClient)
	token, err := auth.GenerateToken(*subject, *role)
	if err != nil {
		log.Fatalf("Failed to generate token: %v", err)
	}

	fmt.Println(token)
}
