package metricsource

import (
	"testing"

	"github.com/shirou/gopsutil/v3/host"
	"github.com/stretchr/testify/assert"
)

func TestCounterDelta(t *testing.T) {
	assert.Equal(t, uint64(5), counterDelta(15, 10))
	assert.Equal(t, uint64(0), counterDelta(10, 10))
	// Counter reset after reboot must not underflow.
	assert.Equal(t, uint64(0), counterDelta(3, 10))
}

func TestClampPercent(t *testing.T) {
	assert.Equal(t, 0.0, clampPercent(-0.3))
	assert.Equal(t, 42.0, clampPercent(42))
	assert.Equal(t, 100.0, clampPercent(100.4))
}

func TestHottestSensor(t *testing.T) {
	none := hottestSensor(nil)
	assert.False(t, none.Available)

	// Dead sensors report zero; they are noise, not data.
	zeroOnly := hottestSensor([]host.TemperatureStat{{SensorKey: "acpitz", Temperature: 0}})
	assert.False(t, zeroOnly.Available)

	r := hottestSensor([]host.TemperatureStat{
		{SensorKey: "acpitz", Temperature: 0},
		{SensorKey: "coretemp_core_0", Temperature: 58},
		{SensorKey: "coretemp_core_1", Temperature: 63.5},
		{SensorKey: "nvme_composite", Temperature: 41},
	})
	assert.True(t, r.Available)
	assert.Equal(t, 63.5, r.Value)
}
