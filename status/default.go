package status

// defaultEntries is the code table of the SMELLIE controller firmware.
var defaultEntries = []Entry{
	{Continue, "5189", "continue to the next stage of a run"},
	{CheckConnection, "10", "controller acknowledged the connection"},
	{StartInitialise, "20", "start the initialisation stage of a run"},
	{SepiaNotConnected, "30", "Sepia laser driver is not powered or not connected"},
	{LaserSwitchNotConnected, "40", "laser switch is not powered or not connected"},
	{SepiaWrongIntensity, "50", "Sepia intensity is not at its safe-state value"},
	{SepiaWrongFrequency, "55", "Sepia frequency is not at its safe-state value"},
	{SepiaWrongPulseMode, "60", "Sepia pulse mode is not at its safe-state value"},
	{LaserSwitchWrongDefault, "65", "laser switch is not at its safe-state channel"},
	{SetupRun, "70", "set up the parameters of a run"},
	{SelfTestFailed, "77", "self-test has failed"},
	{LaserSwitchSetWrong, "79", "laser switch channel is set incorrectly"},
	{FibreSwitchChannelBroken, "84", "fibre switch channel is broken or set incorrectly"},
	{PulseCountTooHigh, "87", "number of pulses is greater than 100,000"},
	{RunFailed, "102", "run has failed"},
	{TriggerFrequencyInvalid, "132", "NI box trigger frequency is not set correctly"},
	{Timeout, "123456", "controller has timed out"},
}

var defaultRegistry = mustRegistry(defaultEntries)

// Default returns the registry holding the controller firmware code table.
func Default() *Registry {
	return defaultRegistry
}

func mustRegistry(entries []Entry) *Registry {
	r, err := NewRegistry(entries)
	if err != nil {
		panic(err)
	}

	return r
}

// Required returns every name declared by this package. A registry used to build the
// canonical stage plan must contain all of them.
func Required() []Name {
	names := make([]Name, 0, len(defaultEntries))
	for _, e := range defaultEntries {
		names = append(names, e.Name)
	}

	return names
}

// Missing returns the required names absent from r.
func Missing(r *Registry) []Name {
	var missing []Name
	for _, name := range Required() {
		if _, ok := r.Code(name); !ok {
			missing = append(missing, name)
		}
	}

	return missing
}
