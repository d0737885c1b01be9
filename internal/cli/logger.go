package cli

import (
	"go.uber.org/zap"
)

// newLogger builds the process logger: human-readable console output in dev
// mode, JSON in prod.
func newLogger(mode string) (*zap.SugaredLogger, error) {
	var cfg zap.Config
	switch mode {
	case "prod", "production":
		cfg = zap.NewProductionConfig()
	default:
		cfg = zap.NewDevelopmentConfig()
	}
	logger, err := cfg.Build()
	if err != nil {
		return nil, err
	}
	return logger.Sugar(), nil
}
