package gcra

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestEmissionInterval(t *testing.T) {
	assert.Equal(t, 1*time.Second, EmissionInterval(10, 10*time.Second))
	assert.Equal(t, 100*time.Millisecond, EmissionInterval(10, 1*time.Second))
}

func TestEmissionIntervalInvalid(t *testing.T) {
	assert.Equal(t, MaxInterval, EmissionInterval(0, time.Second))
	assert.Equal(t, MaxInterval, EmissionInterval(10, 0))
	assert.Equal(t, MaxInterval, EmissionInterval(-1, time.Second))
}
