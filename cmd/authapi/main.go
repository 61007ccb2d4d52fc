package main

import (
	"context"
	"os"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"

	"github.com/kittipos-dev/user-auth-api/internal/auth"
	"github.com/kittipos-dev/user-auth-api/internal/config"
	"github.com/kittipos-dev/user-auth-api/internal/handler"
	"github.com/kittipos-dev/user-auth-api/internal/mailer"
	"github.com/kittipos-dev/user-auth-api/internal/repository"
	"github.com/kittipos-dev/user-auth-api/internal/usecase"
	"github.com/kittipos-dev/user-auth-api/internal/validation"
)

func main() {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()

	cfg := config.Load(&logger)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to mongodb")
	}
	defer func() {
		if err := client.Disconnect(context.Background()); err != nil {
			logger.Error().Err(err).Msg("failed to disconnect from mongodb")
		}
	}()

	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		logger.Fatal().Err(err).Msg("failed to ping mongodb")
	}
	logger.Info().Msg("connected to mongodb")

	db := client.Database(cfg.MongoDatabase)

	validator, err := validation.NewValidator()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to build validator")
	}

	smtpMailer := mailer.NewMailer(&logger)
	issuer := auth.NewTokenIssuer(cfg.JWTSecret, cfg.SessionTTL)

	userRepo := repository.NewUserMongoRepository(ctx, &logger, db)

	authUsecase := usecase.NewAuthUsecase(userRepo, issuer, smtpMailer)
	otpUsecase := usecase.NewOTPUsecase(userRepo, smtpMailer)

	app := fiber.New()

	app.Use(handler.RequestID())
	app.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.AllowedOrigins,
		AllowHeaders:     "Content-Type, Accept, Authorization",
		AllowMethods:     "GET, POST, PUT, PATCH, DELETE, OPTIONS",
		AllowCredentials: true,
	}))

	authHandler := handler.NewAuthHandler(
		authUsecase,
		otpUsecase,
		issuer,
		validator,
		&logger,
		cfg.IsProduction(),
		cfg.SessionTTL,
	)
	authHandler.RegisterRoutes(app)

	app.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	addr := ":" + cfg.Port
	logger.Info().Str("addr", addr).Msg("listening")
	if err := app.Listen(addr); err != nil {
		logger.Fatal().Err(err).Msg("server stopped")
	}
}
