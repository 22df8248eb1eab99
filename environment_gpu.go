//go:build gpuprobe

package configurator

import (
	"runtime"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/go-gl/glfw/v3.3/glfw"
)

// GPUProbe checks for a display and a hardware adapter the renderer could
// use. It opens no window.
type GPUProbe struct{}

func (GPUProbe) Probe() error {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	if err := glfw.Init(); err != nil {
		return newAssetError(KindUnsupportedEnvironment, "", err, "no display")
	}
	defer glfw.Terminate()

	instance := wgpu.CreateInstance(nil)
	defer instance.Release()

	adapter, err := instance.RequestAdapter(&wgpu.RequestAdapterOptions{
		PowerPreference: wgpu.PowerPreferenceHighPerformance,
	})
	if err != nil {
		return newAssetError(KindUnsupportedEnvironment, "", err, "no GPU adapter")
	}
	defer adapter.Release()
	return nil
}

func DefaultProbe() EnvironmentProbe {
	return GPUProbe{}
}
