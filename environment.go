package configurator

// EnvironmentProbe tells whether models can be displayed at all. It runs
// once when the configurator module is installed.
type EnvironmentProbe interface {
	Probe() error
}

// StaticProbe reports a fixed result. The zero value always passes.
type StaticProbe struct {
	Err error
}

func (p StaticProbe) Probe() error {
	return p.Err
}

type ProbeFunc func() error

func (f ProbeFunc) Probe() error {
	return f()
}

// probeEnvironment runs p and classifies any failure.
func probeEnvironment(p EnvironmentProbe, logger Logger) *AssetError {
	if p == nil {
		return nil
	}
	err := p.Probe()
	if err == nil {
		return nil
	}
	ae := AsAssetError(err, KindUnsupportedEnvironment, "")
	if ae.Kind != KindUnsupportedEnvironment {
		ae = &AssetError{Kind: KindUnsupportedEnvironment, Err: err}
	}
	logger.Errorf("Environment probe failed: %v", ae)
	return ae
}
