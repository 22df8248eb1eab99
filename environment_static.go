//go:build !gpuprobe

package configurator

// DefaultProbe passes unconditionally; build with -tags gpuprobe to check
// for a real GPU.
func DefaultProbe() EnvironmentProbe {
	return StaticProbe{}
}
