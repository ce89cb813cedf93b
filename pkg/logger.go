package pkg

import (
	"os"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var Logger *zap.Logger

// InitLogger initializes the global Logger from the gin mode and the optional LOG_LEVEL env var.
// Binaries call it once in main and inject Logger into every constructor.
func InitLogger() {
	logger, err := NewLogger(gin.Mode(), os.Getenv("LOG_LEVEL"))
	if err != nil {
		panic(err)
	}
	Logger = logger
}

// NewLogger builds a JSON production logger in release mode and a colored console logger otherwise.
func NewLogger(mode, level string) (*zap.Logger, error) {
	var config zap.Config
	if gin.ReleaseMode == mode { // pre. prod, or default
		config = zap.NewProductionConfig()
		config.OutputPaths = []string{"stdout"}
		config.ErrorOutputPaths = []string{"stderr"}
	} else {
		config = zap.NewDevelopmentConfig()
		config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	if level != "" {
		lvl, err := zapcore.ParseLevel(level)
		if err != nil {
			return nil, err
		}
		config.Level = zap.NewAtomicLevelAt(lvl)
	}
	return config.Build(zap.AddStacktrace(zap.DPanicLevel))
}
