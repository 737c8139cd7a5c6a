package log

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOptions_Validate(t *testing.T) {
	t.Parallel()

	t.Run("Valid", func(t *testing.T) {
		opts := Options{Name: "catalog-ingest"}
		assert.NoError(t, opts.Validate())
	})

	t.Run("MissingName", func(t *testing.T) {
		opts := Options{}
		assert.Error(t, opts.Validate())
	})

	t.Run("NegativeValues", func(t *testing.T) {
		assert.Error(t, (&Options{Name: "app", MaxAge: -1}).Validate())
		assert.Error(t, (&Options{Name: "app", MaxSizeMB: -1}).Validate())
		assert.Error(t, (&Options{Name: "app", MaxBackups: -1}).Validate())
	})

	t.Run("DirIsFile", func(t *testing.T) {
		filePath := filepath.Join(t.TempDir(), "occupied")
		require.NoError(t, os.WriteFile(filePath, []byte("x"), 0644))

		opts := Options{Name: "app", Dir: filePath}
		assert.Error(t, opts.Validate())
	})
}

func TestNewProductionOptions(t *testing.T) {
	t.Parallel()

	opts := NewProductionOptions("catalog-ingest")

	assert.Equal(t, "catalog-ingest", opts.Name)
	assert.Equal(t, InfoLevel, opts.Level)
	assert.True(t, opts.EnableCriticalLog)
	assert.True(t, opts.EnableVerboseLog)
	assert.False(t, opts.EnableConsoleLog)
	assert.NoError(t, opts.Validate())
}

func TestNewDevelopmentOptions(t *testing.T) {
	t.Parallel()

	opts := NewDevelopmentOptions("catalog-ingest")

	assert.Equal(t, TraceLevel, opts.Level)
	assert.True(t, opts.EnableConsoleLog)
	assert.NoError(t, opts.Validate())
}
