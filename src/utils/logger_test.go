package utils

import (
	"testing"

	logger "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
)

func TestSetupLogger(t *testing.T) {
	t.Cleanup(func() {
		logger.SetLevel(logger.InfoLevel)
		logger.SetFormatter(&logger.TextFormatter{})
	})

	cases := []struct {
		level     string
		format    string
		wantLevel logger.Level
		wantJSON  bool
	}{
		{level: "warn", wantLevel: logger.WarnLevel},
		{level: "INFO", format: "json", wantLevel: logger.InfoLevel, wantJSON: true},
		{level: "", wantLevel: logger.DebugLevel},
		{level: "loud", wantLevel: logger.DebugLevel},
	}
	for _, tc := range cases {
		t.Run(tc.level+"/"+tc.format, func(t *testing.T) {
			t.Setenv("LOG_LEVEL", tc.level)
			t.Setenv("LOG_FORMAT", tc.format)
			SetupLogger()
			assert.Equal(t, tc.wantLevel, logger.GetLevel())
			_, isJSON := logger.StandardLogger().Formatter.(*logger.JSONFormatter)
			assert.Equal(t, tc.wantJSON, isJSON)
		})
	}
}
