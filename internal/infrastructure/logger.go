package infrastructure

import "go.uber.org/zap"

// NewLogger builds the process-wide zap logger. Development env gets
// the console encoder, everything else JSON.
func NewLogger(env string) (*zap.Logger, error) {
	if env == "development" || env == "dev" {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}
