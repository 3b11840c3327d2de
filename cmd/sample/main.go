// Command sample demonstrates the shatter framework: descriptors declared
// separately from their implementation, composed by extension, and served
// through the HTTP adapter.
//
// Run:
//
//	go run ./cmd/sample
//	go run ./cmd/sample -config config.yaml
//
// Then explore:
//
//	GET  http://localhost:8080/api/health
//	GET  http://localhost:8080/api/users?page=1
//	POST http://localhost:8080/api/users/create
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/shatterdev/shatter"
)

// HealthData is the health endpoint payload.
type HealthData struct {
	Status string `json:"status"`
}

// User is the demo domain object.
type User struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// ListQuery binds pagination from query parameters.
type ListQuery struct {
	shatter.RequestQueryParams

	Page    int `json:"page" default:"1" minimum:"1"`
	PerPage int `json:"per_page" default:"20" minimum:"1" maximum:"100"`
}

// CreateUserBody is the create-user request payload.
type CreateUserBody struct {
	shatter.RequestBody

	Name  string `json:"name" required:"true" minLength:"2"`
	Email string `json:"email" required:"true" pattern:"^[^@]+@[^@]+$"`
}

// AuthHeaders requires an API key header on mutating calls.
type AuthHeaders struct {
	shatter.RequestHeaders

	APIKey string `json:"x_api_key" header:"X-Api-Key" required:"true"`
}

// SampleConfig is the typed config section for the users API.
type SampleConfig struct {
	PageSize int `yaml:"page_size" minimum:"1" maximum:"100"`
}

func main() {
	addr := flag.String("addr", ":8080", "listen address")
	configPath := flag.String("config", "", "optional YAML config file")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	slog.SetDefault(logger)

	pageSize := 20
	if *configPath != "" {
		cfg, err := shatter.LoadConfig(*configPath)
		if err != nil {
			logger.Error("config load failed", "err", err)
			os.Exit(1)
		}
		section, err := shatter.Section[SampleConfig](cfg, "users", false)
		if err != nil {
			logger.Error("config section invalid", "err", err)
			os.Exit(1)
		}
		if section != nil && section.PageSize > 0 {
			pageSize = section.PageSize
		}
	}

	mapping, err := buildAPI(logger, pageSize)
	if err != nil {
		logger.Error("api setup failed", "err", err)
		os.Exit(1)
	}

	handler := shatter.NewHandler(mapping, shatter.WithPrefix("/api"), shatter.WithLogger(logger))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	srv := &http.Server{
		Addr:              *addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", *addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server failed", "err", err)
			os.Exit(1)
		}
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("shutdown failed", "err", err)
		}
	}
}

func buildAPI(logger *slog.Logger, pageSize int) (*shatter.BoundMapping, error) {
	healthSig := shatter.NewSignature(shatter.Returns[HealthData]())
	health := shatter.NewDescriptor("HealthAPI",
		shatter.Route("/health", "Health", healthSig,
			shatter.WithResponses(shatter.JSONOf[HealthData]()),
			shatter.WithDefault(func(ctx *shatter.CallCtx) (*shatter.Response, error) {
				return shatter.JSON(HealthData{Status: "ok"}, http.StatusOK), nil
			}),
		),
	)
	if err := health.Finalize(); err != nil {
		return nil, err
	}

	listSig := shatter.NewSignature(
		shatter.Optional[ListQuery]("query"),
		shatter.Returns[[]User](),
	)
	createSig := shatter.NewSignature(
		shatter.Param[CreateUserBody]("body"),
		shatter.Param[AuthHeaders]("headers"),
		shatter.Returns[User](),
	)

	users := shatter.NewDescriptor("UserAPI",
		shatter.WithMiddleware(
			shatter.RequestIDMiddleware(),
			shatter.RequestLogger(logger),
			shatter.RateLimit(shatter.RateLimitConfig{Rate: 50, Burst: 100}),
		),
		shatter.Route("/users", "ListUsers", listSig,
			shatter.WithResponses(shatter.JSONOf[[]User]()),
		),
		shatter.Route("/users/create", "CreateUser", createSig,
			shatter.WithResponses(shatter.JSONOf[User]()),
		),
		shatter.ExtendRoute("Health", health),
	)
	if err := users.Finalize(); err != nil {
		return nil, err
	}

	store := []User{{ID: 1, Name: "ada"}, {ID: 2, Name: "grace"}}
	nextID := len(store) + 1

	healthImpl := shatter.NewImplementation(health)

	impl := shatter.NewImplementation(users,
		shatter.ProvideFunc("ListUsers", func(ctx *shatter.CallCtx) (*shatter.Response, error) {
			q, _ := shatter.Get[ListQuery](ctx)
			limit := q.PerPage
			if limit <= 0 || limit > pageSize {
				limit = pageSize
			}
			if limit > len(store) {
				limit = len(store)
			}
			return shatter.JSON(store[:limit], http.StatusOK), nil
		}),
		shatter.ProvideFunc("CreateUser", func(ctx *shatter.CallCtx) (*shatter.Response, error) {
			body, ok := shatter.Get[CreateUserBody](ctx)
			if !ok {
				return nil, fmt.Errorf("missing request body")
			}
			u := User{ID: nextID, Name: body.Name}
			nextID++
			store = append(store, u)
			return shatter.JSON(u, http.StatusCreated), nil
		}),
		shatter.ProvideSubAPI("Health", healthImpl),
	)

	return impl.Bind()
}
