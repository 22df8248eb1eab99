package configurator

import (
	"time"
)

type Time struct {
	Time    time.Time
	Dt      time.Duration
	Elapsed time.Duration
}

// TimeModule keeps the Time resource current and, with TargetFPS set,
// sleeps at the end of each frame to hold that rate.
type TimeModule struct {
	TargetFPS int
}

type framePacer struct {
	budget     time.Duration
	frameStart time.Time
}

func (mod TimeModule) Install(app *App, cmd *Commands) {
	now := time.Now()
	cmd.AddResources(&Time{Time: now})
	cmd.UseSystem(System(timeSystem).InStage(Prelude).RunAlways())

	if mod.TargetFPS > 0 {
		cmd.AddResources(&framePacer{
			budget:     time.Second / time.Duration(mod.TargetFPS),
			frameStart: now,
		})
		cmd.UseSystem(System(frameStartSystem).InStage(Prelude).RunAlways())
		cmd.UseSystem(System(framePacingSystem).InStage(Finale).RunAlways())
	}
}

func timeSystem(timeResource *Time) {
	now := time.Now()

	timeResource.Dt = now.Sub(timeResource.Time)
	timeResource.Elapsed += timeResource.Dt
	timeResource.Time = now
}

func frameStartSystem(pacer *framePacer) {
	pacer.frameStart = time.Now()
}

func framePacingSystem(pacer *framePacer) {
	if left := pacer.budget - time.Since(pacer.frameStart); left > 0 {
		time.Sleep(left)
	}
}
