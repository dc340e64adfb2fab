package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/jonathan/cover-letter-studio/internal/config"
	"github.com/jonathan/cover-letter-studio/internal/gateway"
	"github.com/jonathan/cover-letter-studio/internal/llm"
	"github.com/jonathan/cover-letter-studio/internal/logger"
)

// loadRuntime reads the config and builds the logger every command uses.
func loadRuntime() (*config.Config, *logger.Logger, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}
	log, err := logger.New(cfg.LogMode)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to build logger: %w", err)
	}
	return cfg, log, nil
}

// newLLMClient connects to the configured provider with the letter system
// instruction.
func newLLMClient(ctx context.Context, cfg *config.Config) (llm.Client, error) {
	var llmCfg *llm.Config
	switch llm.ParseProvider(cfg.LLMProvider) {
	case llm.ProviderVertex:
		llmCfg = llm.DefaultVertexConfig(cfg.VertexProject, cfg.VertexRegion)
	default:
		if strings.TrimSpace(cfg.APIKey) == "" {
			return nil, fmt.Errorf("GEMINI_API_KEY is required (or use --offline)")
		}
		llmCfg = llm.DefaultGeminiConfig()
	}
	llmCfg.SystemInstruction = gateway.SystemInstruction()

	client, err := llm.NewClient(ctx, llmCfg, cfg.APIKey)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s client: %w", llmCfg.Provider, err)
	}
	return client, nil
}
