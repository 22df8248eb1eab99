package configurator

import (
	"math"
)

// Turntable slowly spins the displayed model around Y. The angle goes out
// with each Frame; the renderer applies it.
type Turntable struct {
	Speed float32 // radians per second
	Angle float32
}

type TurntableModule struct {
	Speed float32
}

func (mod TurntableModule) Install(app *App, cmd *Commands) {
	cmd.AddResources(&Turntable{Speed: mod.Speed})
	cmd.UseSystem(System(turntableSystem).InStage(Update).RunAlways())
}

func turntableSystem(t *Time, tt *Turntable, vp *Viewport) {
	tt.Angle = float32(math.Mod(float64(tt.Angle+tt.Speed*float32(t.Dt.Seconds())), 2*math.Pi))
	vp.spin = tt.Angle
}
