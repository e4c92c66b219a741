package main

import (
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/chsnow/ride-watch/common/database"
	"github.com/chsnow/ride-watch/internal/monitor/config"
)

// 将 scripts/schema.sql（或命令行指定的文件）应用到配置指向的数据库
func main() {
	schemaFile := "scripts/schema.sql"
	if len(os.Args) > 1 {
		schemaFile = os.Args[1]
	}

	sqlContent, err := os.ReadFile(schemaFile)
	if err != nil {
		log.Fatalf("Failed to read schema file: %v", err)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	db, err := database.NewPostgresDB(&cfg.Database)
	if err != nil {
		log.Fatalf("Cannot connect to database: %v", err)
	}
	defer db.Close()

	fmt.Printf("Connected to database: %s\n\n", cfg.Database.Database)

	// Split SQL by semicolon and execute each statement
	statements := strings.Split(string(sqlContent), ";")
	executed := 0
	for i, stmt := range statements {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" {
			continue
		}

		fmt.Printf("Executing statement %d/%d...\n", i+1, len(statements))
		if _, err := db.Exec(stmt); err != nil {
			log.Fatalf("Failed to execute statement %d: %v\nStatement: %s", i+1, err, stmt[:min(100, len(stmt))])
		}
		executed++
		fmt.Printf("✅ Statement %d executed successfully\n\n", i+1)
	}

	fmt.Printf("✅ Schema applied successfully (%d statements)\n", executed)
}
