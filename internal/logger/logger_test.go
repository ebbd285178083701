package logger

import (
	"testing"

	"github.com/google/uuid"
	"github.com/prudhvinik1/reallink/internal/config"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestBuild_Level(t *testing.T) {
	l := Build(config.LoggerConfig{Level: "debug", Encoding: "console"})
	assert.True(t, l.Core().Enabled(zap.DebugLevel))

	l = Build(config.LoggerConfig{Level: "warn"})
	assert.False(t, l.Core().Enabled(zap.InfoLevel))
	assert.True(t, l.Core().Enabled(zap.WarnLevel))
}

func TestBuild_UnknownLevelFallsBackToInfo(t *testing.T) {
	l := Build(config.LoggerConfig{Level: "chatty"})

	assert.False(t, l.Core().Enabled(zap.DebugLevel))
	assert.True(t, l.Core().Enabled(zap.InfoLevel))
}

func TestUserID(t *testing.T) {
	id := uuid.New()
	f := UserID(id)

	assert.Equal(t, "user_id", f.Key)
	assert.Equal(t, id.String(), f.String)
}
