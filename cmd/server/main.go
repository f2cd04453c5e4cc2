package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/luxefashion/shop/internal/cartstore"
	"github.com/luxefashion/shop/internal/config"
	"github.com/luxefashion/shop/internal/es"
	"github.com/luxefashion/shop/internal/handlers"
	carth "github.com/luxefashion/shop/internal/handlers/cart"
	ordersh "github.com/luxefashion/shop/internal/handlers/orders"
	"github.com/luxefashion/shop/internal/logging"
	"github.com/luxefashion/shop/internal/metrics"
	"github.com/luxefashion/shop/internal/mykafka"
	"github.com/luxefashion/shop/internal/orders"
	httpserver "github.com/luxefashion/shop/internal/transport/http"
	loggingmw "github.com/luxefashion/shop/pkg/middleware/logging"
)

func main() {
	configuration, err := config.LoadConfig()
	if err != nil {
		log.Fatal(err)
	}

	logger := logging.New(configuration.LOG_LEVEL)
	slog.SetDefault(logger)

	db, err := config.InitDB()
	if err != nil {
		log.Fatalf("database init error: %v", err)
	}

	jwtSecret := []byte(configuration.JWT_SECRET)

	prod, err := mykafka.NewProducer([]string{configuration.KAFKA_ADDRESS})
	if err != nil {
		log.Fatal(err)
	}

	esClient, err := es.NewClient(configuration)
	if err != nil {
		log.Fatal(err)
	}

	cartStore := cartstore.New(db, configuration)
	orderProcessor := orders.New(db, cartStore, configuration)

	e := echo.New()
	e.Pre(middleware.RemoveTrailingSlash())
	e.Use(middleware.Recover(), middleware.RequestID())
	e.Use(loggingmw.RequestLogger(logger))
	e.Use(metrics.NewServerMetrics("api").Middleware())

	deps := httpserver.Deps{
		AuthHandler:    &handlers.AuthHandler{DB: db, JWTSecret: jwtSecret, Producer: prod, Cart: cartStore},
		ProductHandler: &handlers.ProductHandler{DB: db, Producer: prod, ES: esClient, Index: "product"},
		SearchHandler:  &handlers.SearchHandler{ES: esClient, Index: "product"},
		CartHandler:    &carth.CartHandler{Store: cartStore, Producer: prod, JWTSecret: jwtSecret},
		OrderHandler:   &ordersh.OrderHandler{Processor: orderProcessor, Producer: prod, JWTSecret: jwtSecret},
		JWTSecret:      jwtSecret,
	}

	httpserver.Register(e, &deps)

	srv := &http.Server{
		Addr:         ":8080",
		Handler:      e,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("http server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("server shutdown error: %v", err)
	}

	if sqlDB, err := db.DB(); err == nil {
		if err := sqlDB.Close(); err != nil {
			log.Printf("db close error: %v", err)
		}
	} else {
		log.Printf("db() error: %v", err)
	}

	if err := prod.Close(); err != nil {
		log.Printf("kafka close error: %v", err)
	}

	log.Println("shutdown complete")
}
