package configurator

type Commands struct {
	app *App
}

// ChangeState schedules a transition; it happens after the current frame.
func (cmd *Commands) ChangeState(newState State) *Commands {
	cmd.app.changeState(newState)
	return cmd
}

func (cmd *Commands) AddResources(resources ...any) *Commands {
	cmd.app.addResources(resources...)
	return cmd
}

func (cmd *Commands) UseSystem(system systemScheduleBuilder) *Commands {
	cmd.app.UseSystem(system)
	return cmd
}

func (cmd *Commands) State() State {
	return cmd.app.state
}

// PendingState returns the state the app will be in after this frame.
func (cmd *Commands) PendingState() State {
	if cmd.app.stateTransitioning {
		return cmd.app.nextState
	}
	return cmd.app.state
}

func (cmd *Commands) Logger() Logger {
	return cmd.app.Logger()
}
