package logger

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New cria o logger zap do serviço; em "local" usa o formato de desenvolvimento
func New(serviceName string, env string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	if env == "local" {
		cfg = zap.NewDevelopmentConfig()
	}

	// sempre garantir que serviço e env entrem como campos padrão
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	l, err := cfg.Build(
		zap.Fields(
			zap.String("service", serviceName),
			zap.String("env", env),
		),
	)
	if err != nil {
		return nil, err
	}
	return l, nil
}

// Scenario anexa os campos de correlação de um cenário em execução
func Scenario(l *zap.Logger, runID, scenario, anchor string) *zap.Logger {
	return l.With(
		zap.String("run_id", runID),
		zap.String("scenario", scenario),
		zap.String("anchor", anchor),
	)
}
