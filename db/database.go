package db

import (
	"database/sql"
	"fmt"
	"log"

	"BeatFlow/config"

	_ "github.com/go-sql-driver/mysql" // MySQL driver
)

var DB *sql.DB

// ConnectDB establishes a connection to the database.
func ConnectDB(cfg *config.Config) error {
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?parseTime=true",
		cfg.DBUser, cfg.DBPassword, cfg.DBHost, cfg.DBPort, cfg.DBName)

	var err error
	DB, err = sql.Open("mysql", dsn)
	if err != nil {
		return fmt.Errorf("failed to open database connection: %w", err)
	}

	if err = DB.Ping(); err != nil {
		DB.Close()
		return fmt.Errorf("failed to ping database: %w", err)
	}

	log.Println("Successfully connected to the database.")
	return nil
}

// InitDB initializes the schema for the tables managed with database/sql.
// Projects, purchases and favorites are migrated separately through GORM.
func InitDB() error {
	if err := createUsersTable(); err != nil {
		return err
	}
	if err := createBeatsTable(); err != nil {
		return err
	}

	log.Println("Database initialization completed.")
	return nil
}

func createUsersTable() error {
	query := `
	CREATE TABLE IF NOT EXISTS users (
		id VARCHAR(36) PRIMARY KEY,
		name VARCHAR(100) NOT NULL,
		email VARCHAR(255) NOT NULL UNIQUE,
		password_hash VARCHAR(255) NOT NULL,
		user_type VARCHAR(20) NOT NULL DEFAULT 'user',
		bio TEXT,
		avatar_path VARCHAR(512),
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP
	);
	`
	_, err := DB.Exec(query)
	if err != nil {
		return fmt.Errorf("failed to create users table: %w", err)
	}
	log.Println("Users table initialized successfully (or already exists).")
	return nil
}

func createBeatsTable() error {
	query := `
	CREATE TABLE IF NOT EXISTS beats (
		id VARCHAR(36) PRIMARY KEY,
		producer_id VARCHAR(36) NOT NULL,
		producer_name VARCHAR(100) NOT NULL,
		title VARCHAR(200) NOT NULL,
		genre VARCHAR(50) NOT NULL,
		bpm INT NOT NULL DEFAULT 0,
		price DECIMAL(10,2) NOT NULL DEFAULT 0,
		description TEXT,
		audio_path VARCHAR(512) NOT NULL,
		cover_path VARCHAR(512),
		duration FLOAT NOT NULL DEFAULT 0,
		plays BIGINT NOT NULL DEFAULT 0,
		is_active TINYINT(1) NOT NULL DEFAULT 1,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
		INDEX idx_beats_producer (producer_id),
		INDEX idx_beats_genre (genre),
		INDEX idx_beats_plays (plays)
	);
	`
	_, err := DB.Exec(query)
	if err != nil {
		return fmt.Errorf("failed to create beats table: %w", err)
	}
	log.Println("Beats table initialized successfully (or already exists).")
	return nil
}
