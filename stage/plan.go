package stage

import (
	"strconv"

	"github.com/arloliu/go-smellie/status"
)

// Stage names of the canonical bring-up and run sequence, in protocol order.
const (
	CheckConnection      = "check-connection"
	Initialise           = "initialise"
	CheckSepiaConnection = "check-sepia-connection"
	CheckLaserSwitch     = "check-laser-switch"
	CheckSafeStates      = "check-safe-states"
	SetLSChannel         = "set-ls-channel"
	SetLaserIntensity    = "set-laser-intensity"
	SetLaserFrequency    = "set-laser-frequency"
	CheckSelfTest        = "check-self-test"
	SetFSChannel         = "set-fs-channel"
	SetPulseCount        = "set-pulse-count"
	SetTriggerFrequency  = "set-trigger-frequency"
	RunCompletion        = "run-completion"
)

// Names returns the stage names of the canonical sequence in protocol order.
func Names() []string {
	return []string{
		CheckConnection,
		Initialise,
		CheckSepiaConnection,
		CheckLaserSwitch,
		CheckSafeStates,
		SetLSChannel,
		SetLaserIntensity,
		SetLaserFrequency,
		CheckSelfTest,
		SetFSChannel,
		SetPulseCount,
		SetTriggerFrequency,
		RunCompletion,
	}
}

// Params holds the run parameters sent to the controller.
//
// Values are sent as ASCII decimal strings. Ceilings enforced by the controller,
// such as the 100,000 pulse limit, are not checked here.
type Params struct {
	// Intensity is the laser intensity in percent.
	Intensity int
	// FrequencyMode selects the Sepia frequency mode, 6 is external rising-edge.
	FrequencyMode int
	// LSChannel is the laser switch channel.
	LSChannel int
	// FSChannel is the fibre switch channel.
	FSChannel int
	// PulseCount is the number of pulses the NI box sends.
	PulseCount int
	// TriggerFrequency is the NI box trigger frequency in Hz.
	TriggerFrequency int
}

// DefaultParams returns the parameters of a standard run.
func DefaultParams() Params {
	return Params{
		Intensity:        100,
		FrequencyMode:    6,
		LSChannel:        1,
		FSChannel:        1,
		PulseCount:       100000,
		TriggerFrequency: 10000,
	}
}

// Plan builds the canonical ordered stage list for params, resolving codes through reg.
//
// reg must contain every name declared in the status package.
func Plan(p Params, reg *status.Registry) []Stage {
	ok := reg.MustCode(status.Continue)
	code := func(name status.Name) status.Code { return reg.MustCode(name) }
	reject := func(kind Kind, name status.Name) Rejection {
		return Rejection{Kind: kind, Reason: reg.Describe(name)}
	}

	return []Stage{
		{
			Name:     CheckConnection,
			Waits:    1,
			Success:  code(status.CheckConnection),
			Fallback: ConnectivityError,
		},
		{
			Name:    Initialise,
			Payload: code(status.StartInitialise).Bytes(),
		},
		{
			Name:    CheckSepiaConnection,
			Waits:   1,
			Success: ok,
			Failures: map[status.Code]Rejection{
				code(status.SepiaNotConnected): reject(DeviceDisconnected, status.SepiaNotConnected),
			},
		},
		{
			Name:    CheckLaserSwitch,
			Waits:   1,
			Success: ok,
			Failures: map[status.Code]Rejection{
				code(status.LaserSwitchNotConnected): reject(DeviceDisconnected, status.LaserSwitchNotConnected),
			},
		},
		{
			Name:    CheckSafeStates,
			Waits:   1,
			Success: ok,
			Failures: map[status.Code]Rejection{
				code(status.SepiaWrongIntensity):     reject(SafeStateViolation, status.SepiaWrongIntensity),
				code(status.SepiaWrongFrequency):     reject(SafeStateViolation, status.SepiaWrongFrequency),
				code(status.SepiaWrongPulseMode):     reject(SafeStateViolation, status.SepiaWrongPulseMode),
				code(status.LaserSwitchWrongDefault): reject(SafeStateViolation, status.LaserSwitchWrongDefault),
			},
			FollowUp: code(status.SetupRun).Bytes(),
		},
		{
			// changing the laser switch channel power-cycles Sepia: the first wait confirms the
			// command, the second confirms Sepia rebooted.
			Name:    SetLSChannel,
			Payload: itoa(p.LSChannel),
			Waits:   2,
			Success: ok,
			Failures: map[status.Code]Rejection{
				code(status.LaserSwitchSetWrong): reject(ConfigurationRejected, status.LaserSwitchSetWrong),
			},
		},
		{
			Name:     SetLaserIntensity,
			Payload:  itoa(p.Intensity),
			Waits:    1,
			Success:  ok,
			FollowUp: itoa(p.FrequencyMode),
		},
		{
			// receives the reply to the frequency mode sent as follow-up of the intensity stage
			Name:    SetLaserFrequency,
			Waits:   1,
			Success: ok,
		},
		{
			Name:    CheckSelfTest,
			Waits:   1,
			Success: ok,
			Failures: map[status.Code]Rejection{
				code(status.SelfTestFailed): reject(ConfigurationRejected, status.SelfTestFailed),
			},
		},
		{
			Name:    SetFSChannel,
			Payload: itoa(p.FSChannel),
			Waits:   1,
			Success: ok,
			Failures: map[status.Code]Rejection{
				code(status.FibreSwitchChannelBroken): reject(ConfigurationRejected, status.FibreSwitchChannelBroken),
			},
		},
		{
			Name:    SetPulseCount,
			Payload: itoa(p.PulseCount),
			Waits:   1,
			Success: ok,
			Failures: map[status.Code]Rejection{
				code(status.PulseCountTooHigh): reject(ConfigurationRejected, status.PulseCountTooHigh),
			},
		},
		{
			Name:    SetTriggerFrequency,
			Payload: itoa(p.TriggerFrequency),
			Waits:   1,
			Success: ok,
			Failures: map[status.Code]Rejection{
				code(status.TriggerFrequencyInvalid): reject(ConfigurationRejected, status.TriggerFrequencyInvalid),
			},
		},
		{
			Name:    RunCompletion,
			Waits:   1,
			Success: ok,
			Failures: map[status.Code]Rejection{
				code(status.RunFailed): reject(ConfigurationRejected, status.RunFailed),
			},
		},
	}
}

// WaitPoints returns the total number of tokens a fully successful run of stages receives.
func WaitPoints(stages []Stage) int {
	n := 0
	for _, s := range stages {
		n += s.Waits
	}

	return n
}

func itoa(v int) []byte {
	return strconv.AppendInt(nil, int64(v), 10)
}
