package status

import (
	"errors"
	"fmt"
	"slices"
)

// Code is a status or command token exchanged with the controller.
// It is compared for equality only.
type Code string

// Bytes returns the wire representation of the code.
func (c Code) Bytes() []byte { return []byte(c) }

// String returns the code itself.
func (c Code) String() string { return string(c) }

// IsEmpty returns if the code holds no token.
func (c Code) IsEmpty() bool { return c == "" }

// Name is the symbolic meaning of a status code.
type Name string

// String returns the name itself.
func (n Name) String() string { return string(n) }

// Symbolic names of every status code used by the controller protocol.
const (
	Continue                 Name = "continue"
	CheckConnection          Name = "check-connection"
	StartInitialise          Name = "start-initialise"
	SepiaNotConnected        Name = "sepia-not-connected"
	LaserSwitchNotConnected  Name = "laser-switch-not-connected"
	SepiaWrongIntensity      Name = "sepia-wrong-intensity"
	SepiaWrongFrequency      Name = "sepia-wrong-frequency"
	SepiaWrongPulseMode      Name = "sepia-wrong-pulse-mode"
	LaserSwitchWrongDefault  Name = "laser-switch-wrong-default"
	SetupRun                 Name = "setup-run"
	SelfTestFailed           Name = "self-test-failed"
	LaserSwitchSetWrong      Name = "laser-switch-set-wrong"
	FibreSwitchChannelBroken Name = "fibre-switch-channel-broken"
	PulseCountTooHigh        Name = "pulse-count-too-high"
	RunFailed                Name = "run-failed"
	TriggerFrequencyInvalid  Name = "trigger-frequency-invalid"
	Timeout                  Name = "timeout"
)

var (
	// ErrDuplicateCode indicates that two registry entries share the same code.
	ErrDuplicateCode = errors.New("duplicate status code")

	// ErrDuplicateName indicates that a name was registered more than once.
	ErrDuplicateName = errors.New("duplicate status name")

	// ErrEmptyEntry indicates that a registry entry has an empty name or code.
	ErrEmptyEntry = errors.New("status entry has empty name or code")
)

// Entry is a single row of a registry table.
type Entry struct {
	Name        Name
	Code        Code
	Description string
}

// Registry is an immutable mapping between status names and codes.
//
// A Registry has no mutators; it is safe for concurrent use.
type Registry struct {
	byName map[Name]Entry
	byCode map[Code]Name
}

// NewRegistry builds a registry from the given entries.
//
// It returns ErrEmptyEntry, ErrDuplicateName or ErrDuplicateCode if the table is malformed.
func NewRegistry(entries []Entry) (*Registry, error) {
	r := &Registry{
		byName: make(map[Name]Entry, len(entries)),
		byCode: make(map[Code]Name, len(entries)),
	}

	for _, e := range entries {
		if e.Name == "" || e.Code.IsEmpty() {
			return nil, ErrEmptyEntry
		}
		if _, ok := r.byName[e.Name]; ok {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateName, e.Name)
		}
		if other, ok := r.byCode[e.Code]; ok {
			return nil, fmt.Errorf("%w: %s used by %s and %s", ErrDuplicateCode, e.Code, other, e.Name)
		}
		r.byName[e.Name] = e
		r.byCode[e.Code] = e.Name
	}

	return r, nil
}

// Code returns the code registered for name.
func (r *Registry) Code(name Name) (Code, bool) {
	e, ok := r.byName[name]
	return e.Code, ok
}

// MustCode returns the code registered for name and panics if it is missing.
//
// It is meant for names that are known to exist, e.g. the constants of this package
// against the Default registry.
func (r *Registry) MustCode(name Name) Code {
	code, ok := r.Code(name)
	if !ok {
		panic("status: name not registered: " + string(name))
	}

	return code
}

// Lookup returns the name registered for code.
func (r *Registry) Lookup(code Code) (Name, bool) {
	name, ok := r.byCode[code]
	return name, ok
}

// Describe returns the human readable meaning of name, or an empty string if name is not registered.
func (r *Registry) Describe(name Name) string {
	return r.byName[name].Description
}

// Names returns all registered names in ascending order.
func (r *Registry) Names() []Name {
	names := make([]Name, 0, len(r.byName))
	for name := range r.byName {
		names = append(names, name)
	}
	slices.Sort(names)

	return names
}

// Entries returns all registry rows ordered by name.
func (r *Registry) Entries() []Entry {
	names := r.Names()
	entries := make([]Entry, 0, len(names))
	for _, name := range names {
		entries = append(entries, r.byName[name])
	}

	return entries
}

// Len returns the number of registered entries.
func (r *Registry) Len() int { return len(r.byName) }
