package log

import (
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
)

func TestMaskSensitiveData(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"Empty", "", ""},
		{"Short", "abc", "***"},
		{"Medium", "abcdefgh", "abcd***"},
		{"TwelveChars", "abcdefghijkl", "abcd***"},
		{"LongToken", "abcdefghijklmnopqrst", "abcd***qrst"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, MaskSensitiveData(tt.input))
		})
	}
}

func TestWithComponent(t *testing.T) {
	entry := WithComponent("catalog")

	assert.Equal(t, "catalog", entry.Data["component"])
}

func TestWithComponentAndFields(t *testing.T) {
	entry := WithComponentAndFields("ingest", Fields{
		"store_id": 7,
		"records":  120,
	})

	assert.Equal(t, "ingest", entry.Data["component"])
	assert.Equal(t, 7, entry.Data["store_id"])
	assert.Equal(t, 120, entry.Data["records"])
}

func TestWithComponentAndFields_DoesNotMutateInput(t *testing.T) {
	fields := Fields{"key": "value"}
	_ = WithComponentAndFields("api", fields)

	_, exists := fields["component"]
	assert.False(t, exists)
}

func TestSetDebugMode(t *testing.T) {
	originalLevel := logrus.GetLevel()
	defer logrus.SetLevel(originalLevel)

	SetDebugMode(true)
	assert.Equal(t, logrus.TraceLevel, logrus.GetLevel())

	SetDebugMode(false)
	assert.Equal(t, logrus.InfoLevel, logrus.GetLevel())
}
