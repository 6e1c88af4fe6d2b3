package metricsource

import (
	"codeberg.org/mutker/perfwatch/internal/errors"
	"codeberg.org/mutker/perfwatch/internal/logger"
	"codeberg.org/mutker/perfwatch/internal/sample"
	"github.com/NVIDIA/go-nvml/pkg/nvml"
)

// gpuReader wraps NVML behind a capability flag. Hosts without an
// NVIDIA driver simply report the GPU metric as unavailable; NVML is
// never retried after a failed probe.
type gpuReader struct {
	supported bool
	device    nvml.Device
}

// nvmlError represents an NVML-specific error
type nvmlError struct {
	ret nvml.Return
}

func (e *nvmlError) Error() string {
	return nvml.ErrorString(e.ret)
}

func isNVMLSuccess(ret nvml.Return) bool {
	return ret == nvml.SUCCESS
}

// newGPUReader probes the driver once. A failed probe is the expected
// outcome on GPU-less hosts and is logged at debug level only.
func newGPUReader() *gpuReader {
	if ret := nvml.Init(); !isNVMLSuccess(ret) {
		logger.Debug().
			Err(errors.New().Wrap(ErrGPUInitFailed, &nvmlError{ret: ret})).
			Msg("NVML unavailable, GPU metric disabled")
		return &gpuReader{}
	}

	count, ret := nvml.DeviceGetCount()
	if !isNVMLSuccess(ret) || count == 0 {
		_ = nvml.Shutdown()
		logger.Debug().Msg("No NVML devices found, GPU metric disabled")
		return &gpuReader{}
	}

	device, ret := nvml.DeviceGetHandleByIndex(0)
	if !isNVMLSuccess(ret) {
		_ = nvml.Shutdown()
		logger.Debug().
			Err(errors.New().Wrap(ErrGPUInitFailed, &nvmlError{ret: ret})).
			Msg("NVML device handle failed, GPU metric disabled")
		return &gpuReader{}
	}

	return &gpuReader{supported: true, device: device}
}

// utilization returns the current GPU utilization percentage.
func (g *gpuReader) utilization() sample.Reading {
	if !g.supported {
		return sample.Unavailable()
	}

	util, ret := g.device.GetUtilizationRates()
	if !isNVMLSuccess(ret) {
		return sample.Unavailable()
	}

	return sample.Avail(float64(util.Gpu))
}

func (g *gpuReader) shutdown() error {
	if !g.supported {
		return nil
	}

	g.supported = false
	if ret := nvml.Shutdown(); !isNVMLSuccess(ret) {
		return errors.New().Wrap(ErrGPUShutdown, &nvmlError{ret: ret})
	}

	return nil
}
