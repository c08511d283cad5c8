package forecast

import (
	"fmt"
	"log/slog"

	"github.com/alanyoungcy/valuebot/internal/config"
	"github.com/alanyoungcy/valuebot/internal/domain"
)

// New builds the forecaster selected by the AI configuration.
func New(cfg config.AIConfig, logger *slog.Logger) (domain.Forecaster, error) {
	switch cfg.Provider {
	case "anthropic":
		return NewAnthropicForecaster(cfg.ApiKey, cfg.Model, cfg.Temperature, logger), nil
	default:
		return nil, fmt.Errorf("forecast: unknown provider %q", cfg.Provider)
	}
}
