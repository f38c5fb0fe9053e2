// One-shot schema migration against the configured MySQL database.
package main

import (
	"flag"
	"fmt"
	"log"

	"github.com/challenges/scheduler/internal/orm"
	"github.com/challenges/scheduler/pkg/config"
)

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "configs/config.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// orm.New runs AutoMigrate as part of connecting.
	db, err := orm.New(orm.Config{
		Host:                  cfg.Database.Host,
		Port:                  cfg.Database.Port,
		Database:              cfg.Database.Database,
		User:                  cfg.Database.User,
		Password:              cfg.Database.Password,
		MaxConnections:        cfg.Database.MaxConnections,
		MaxIdleConnections:    cfg.Database.MaxIdleConnections,
		ConnectionMaxLifetime: cfg.Database.ConnectionMaxLifetime,
	})
	if err != nil {
		log.Fatalf("Migration failed: %v", err)
	}
	defer db.Close()

	fmt.Println("Migration completed successfully!")
}
