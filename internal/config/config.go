package config

import (
	"context"
	"fmt"
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"gorm.io/gorm"

	"github.com/luxefashion/shop/internal/models"
	"github.com/luxefashion/shop/pkg/db"
)

const (
	DefaultFreeShippingThreshold = 500000
	DefaultShippingFee           = 30000
	DefaultOrdersPerPage         = 10
)

type Config struct {
	DB_HOST       string
	DB_PORT       string
	DB_USER       string
	DB_PASSWORD   string
	DB_NAME       string
	ES_USER       string
	ES_PASSWORD   string
	ES_URL        string
	JWT_SECRET    string
	KAFKA_ADDRESS string
	LOG_LEVEL     string

	FreeShippingThreshold float64
	ShippingFee           float64
	OrdersPerPage         int
}

func LoadConfig() (*Config, error) {
	if err := godotenv.Load(".env"); err != nil {
		log.Printf("Notice: .env file not found: %v. Using system environment variables", err)
	}

	config := &Config{
		DB_HOST:       os.Getenv("DB_HOST"),
		DB_PORT:       os.Getenv("DB_PORT"),
		DB_USER:       os.Getenv("DB_USER"),
		DB_PASSWORD:   os.Getenv("DB_PASSWORD"),
		DB_NAME:       os.Getenv("DB_NAME"),
		ES_USER:       os.Getenv("ES_USER"),
		ES_PASSWORD:   os.Getenv("ES_PASSWORD"),
		ES_URL:        os.Getenv("ES_URL"),
		JWT_SECRET:    os.Getenv("JWT_SECRET"),
		KAFKA_ADDRESS: os.Getenv("KAFKA_ADDRESS"),
		LOG_LEVEL:     os.Getenv("LOG_LEVEL"),

		FreeShippingThreshold: envFloat("FREE_SHIPPING_THRESHOLD", DefaultFreeShippingThreshold),
		ShippingFee:           envFloat("SHIPPING_FEE", DefaultShippingFee),
		OrdersPerPage:         envInt("ORDERS_PER_PAGE", DefaultOrdersPerPage),
	}

	return config, nil
}

func envFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func envInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func (c *Config) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=disable",
		c.DB_USER, c.DB_PASSWORD, c.DB_HOST, c.DB_PORT, c.DB_NAME,
	)
}

func InitDB() (*gorm.DB, error) {
	configuration, _ := LoadConfig()

	conn, err := db.Open(context.Background(), configuration.DSN())
	if err != nil {
		return nil, err
	}
	if err := Migrate(conn); err != nil {
		return nil, err
	}
	return conn, nil
}

func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&models.Product{},
		&models.ProductVariant{},
		&models.Coupon{},
		&models.Cart{},
		&models.CartItem{},
		&models.Order{},
		&models.OrderItem{},
		&models.User{},
	); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}
