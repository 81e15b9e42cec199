package logging

import (
	"bytes"
	"testing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetupLoggerRejectsUnknownLevel(t *testing.T) {
	require.Error(t, SetupLogger(&LogConfig{Level: "chatty"}))
}

func TestGetLoggerAddsComponentField(t *testing.T) {
	var buf bytes.Buffer
	prev := log.Logger
	log.Logger = zerolog.New(&buf)
	defer func() { log.Logger = prev }()

	lg := GetLogger("revalidation")
	lg.Info().Msg("sweep completed")

	assert.Contains(t, buf.String(), `"component":"revalidation"`)
	assert.Contains(t, buf.String(), "sweep completed")
}

func TestGetSourceLoggerAddsSourceFields(t *testing.T) {
	var buf bytes.Buffer
	prev := log.Logger
	log.Logger = zerolog.New(&buf)
	defer func() { log.Logger = prev }()

	srcLog := GetSourceLogger("6a5ed1a0-1111-2222-3333-444455556666", "Cancer Research News")
	srcLog.Warn().Msg("source disabled")

	assert.Contains(t, buf.String(), `"source_id":"6a5ed1a0-1111-2222-3333-444455556666"`)
	assert.Contains(t, buf.String(), `"source_name":"Cancer Research News"`)
}
