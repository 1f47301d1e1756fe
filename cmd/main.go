package main

import (
	"context"
	"log/slog"
	"os"
	"strconv"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go-v2/config"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	awsssm "github.com/aws/aws-sdk-go-v2/service/ssm"

	"drivethru-bot/handler"
	"drivethru-bot/internal/dialog"
	"drivethru-bot/internal/integrations/paramstore"
	"drivethru-bot/internal/integrations/recognizer"
	"drivethru-bot/internal/repository"
	"drivethru-bot/internal/usecase"
)

func main() {
	ctx := context.Background()

	// ---- Configuration (read only here) ----
	sessionTable := mustEnv("SESSION_TABLE")
	paramPrefix := mustEnv("PARAM_PREFIX")
	recognizerEndpoint := os.Getenv("RECOGNIZER_ENDPOINT")
	maxTextLen := envInt("MAX_TEXT_LENGTH", 300)

	// ---- AWS SDK config ----
	cfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		slog.Error("failed to load AWS config", "err", err)
		os.Exit(1)
	}

	// ---- Clients ----
	ssmClient, err := paramstore.New(awsssm.NewFromConfig(cfg))
	if err != nil {
		slog.Error("failed to create SSM client", "err", err)
		os.Exit(1)
	}
	dynamoClient := awsdynamodb.NewFromConfig(cfg)
	sessionStore, err := repository.New(dynamoClient, sessionTable)
	if err != nil {
		slog.Error("failed to create session store", "err", err)
		os.Exit(1)
	}

	recognizerOpts := []recognizer.Option{}
	if recognizerEndpoint != "" {
		recognizerOpts = append(recognizerOpts, recognizer.WithEndpoint(recognizerEndpoint))
	}
	recognizerClient, err := recognizer.NewClient(ssmClient, paramPrefix, recognizerOpts...)
	if err != nil {
		slog.Error("failed to create recognizer client", "err", err)
		os.Exit(1)
	}

	// ---- Dialog machine ----
	machine, err := dialog.NewDriveThruMachine(dialog.Config{Recognizer: recognizerClient})
	if err != nil {
		slog.Error("failed to build dialog machine", "err", err)
		os.Exit(1)
	}

	// ---- Handler ----
	turnService, err := usecase.NewTurnService(sessionStore, machine, maxTextLen)
	if err != nil {
		slog.Error("failed to create turn service", "err", err)
		os.Exit(1)
	}

	h, err := handler.NewHandler(turnService)
	if err != nil {
		slog.Error("failed to create handler", "err", err)
		os.Exit(1)
	}

	lambda.Start(h.Handle)
}

func mustEnv(key string) string {
	v := os.Getenv(key)
	if v == "" {
		slog.Error("required environment variable is not set", "key", key)
		os.Exit(1)
	}
	return v
}

func envInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}
