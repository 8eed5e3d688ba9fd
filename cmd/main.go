package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go-v2/config"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	awsssm "github.com/aws/aws-sdk-go-v2/service/ssm"

	"legalmeet-agent/handler"
	"legalmeet-agent/internal/integrations/openai"
	"legalmeet-agent/internal/integrations/paramstore"
	"legalmeet-agent/internal/integrations/whatsapp"
	"legalmeet-agent/internal/store"
	"legalmeet-agent/internal/usecase"
	"legalmeet-agent/internal/webhook"
)

func main() {
	ctx := context.Background()
	logger := slog.Default()

	// ---- Configuration (read only here) ----
	conversationTable := mustEnv("CONVERSATION_TABLE")
	paramPrefix := mustEnv("PARAM_PREFIX")
	phoneNumberID := mustEnv("PHONE_NUMBER_ID")
	verifyToken := envOr("VERIFY_TOKEN", webhook.DefaultVerifyToken)
	appBaseURL := os.Getenv("APP_URL")

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
	convStore, err := store.NewDynamo(awsdynamodb.NewFromConfig(cfg), conversationTable)
	if err != nil {
		slog.Error("failed to create conversation store", "err", err)
		os.Exit(1)
	}
	openaiClient, err := openai.NewClient(ssmClient, paramPrefix+"/openai-api-key")
	if err != nil {
		slog.Error("failed to create OpenAI client", "err", err)
		os.Exit(1)
	}
	whatsappClient, err := whatsapp.NewClient(ssmClient, paramPrefix+"/whatsapp-token", phoneNumberID)
	if err != nil {
		slog.Error("failed to create WhatsApp client", "err", err)
		os.Exit(1)
	}

	// ---- Handler ----
	router, err := usecase.NewRouter(convStore, openaiClient, whatsappClient, openaiClient, whatsappClient, appBaseURL, logger)
	if err != nil {
		slog.Error("failed to create conversation router", "err", err)
		os.Exit(1)
	}

	h, err := handler.NewHandler(router, verifyToken, logger)
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

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
