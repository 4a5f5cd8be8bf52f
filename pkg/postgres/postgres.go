package postgres

import (
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/ledgerlabs/stakevault/internal/config"
)

const defaultSSLMode = "disable"

type PostgresConfig struct {
	Host                string
	Port                int
	Username            string
	Password            string
	DbName              string
	CreateDbIfNotExists bool
	SchemaName          string
}

type Postgres struct {
	Db *sql.DB
}

func PostgresConfigFromDbConfig(dbCfg *config.DatabaseConfig) *PostgresConfig {
	return &PostgresConfig{
		Host:       dbCfg.Host,
		Port:       dbCfg.Port,
		Username:   dbCfg.User,
		Password:   dbCfg.Password,
		DbName:     dbCfg.DbName,
		SchemaName: dbCfg.SchemaName,
	}
}

func getPostgresConnectionString(cfg *PostgresConfig) string {
	authString := ""
	if cfg.Username != "" {
		authString = fmt.Sprintf("%s user=%s", authString, cfg.Username)
	}
	if cfg.Password != "" {
		authString = fmt.Sprintf("%s password=%s", authString, cfg.Password)
	}

	baseString := fmt.Sprintf("host=%s %s dbname=%s port=%d sslmode=%s TimeZone=UTC",
		cfg.Host,
		authString,
		cfg.DbName,
		cfg.Port,
		defaultSSLMode,
	)
	if cfg.SchemaName != "" {
		baseString = fmt.Sprintf("%s search_path=%s", baseString, cfg.SchemaName)
	}
	return baseString
}

func getPostgresRootConnection(cfg *PostgresConfig) (*sql.DB, error) {
	rootCfg := *cfg
	rootCfg.DbName = "postgres"
	rootCfg.SchemaName = ""

	postgresDB, err := sql.Open("postgres", getPostgresConnectionString(&rootCfg))
	if err != nil {
		return nil, fmt.Errorf("error connecting to postgres database: %v", err)
	}
	return postgresDB, nil
}

func CreateDatabaseIfNotExists(cfg *PostgresConfig) error {
	postgresDB, err := getPostgresRootConnection(cfg)
	if err != nil {
		return err
	}
	defer postgresDB.Close()

	var exists bool
	query := fmt.Sprintf(`SELECT EXISTS(SELECT datname FROM pg_catalog.pg_database WHERE datname = '%s');`, cfg.DbName)
	if err := postgresDB.QueryRow(query).Scan(&exists); err != nil {
		return fmt.Errorf("error checking if database exists: %v", err)
	}

	if !exists {
		query = fmt.Sprintf("CREATE DATABASE %s", cfg.DbName)
		if _, err := postgresDB.Exec(query); err != nil {
			return fmt.Errorf("error creating database: %v", err)
		}
	}
	return nil
}

func DeleteDatabase(cfg *PostgresConfig, dbName string) error {
	postgresDB, err := getPostgresRootConnection(cfg)
	if err != nil {
		return err
	}
	defer postgresDB.Close()

	query := fmt.Sprintf("DROP DATABASE %s", dbName)
	if _, err := postgresDB.Exec(query); err != nil {
		return fmt.Errorf("error dropping database: %v", err)
	}
	return nil
}

func NewPostgres(cfg *PostgresConfig) (*Postgres, error) {
	if cfg.CreateDbIfNotExists {
		if err := CreateDatabaseIfNotExists(cfg); err != nil {
			return nil, fmt.Errorf("failed to create database if not exists %+v", err)
		}
	}

	db, err := sql.Open("postgres", getPostgresConnectionString(cfg))
	if err != nil {
		return nil, fmt.Errorf("failed to setup database %+v", err)
	}

	return &Postgres{
		Db: db,
	}, nil
}

func NewGormFromPostgresConnection(pgDb *sql.DB) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.New(postgres.Config{
		Conn: pgDb,
	}), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to setup database %+v", err)
	}

	return db, nil
}
