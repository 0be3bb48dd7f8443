package simulator

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/arloliu/go-smellie/status"
)

// ParseFault parses "stage=code" or "stage#phase=code", e.g. "set-ls-channel#2=timeout".
func ParseFault(s string) (Fault, error) {
	target, code, ok := strings.Cut(strings.TrimSpace(s), "=")
	if !ok || target == "" || code == "" {
		return Fault{}, fmt.Errorf("%w: %q, want stage[#phase]=code", ErrInvalidFault, s)
	}

	f := Fault{Stage: target, Code: status.Name(code)}
	if name, phase, hasPhase := strings.Cut(target, "#"); hasPhase {
		p, err := strconv.Atoi(phase)
		if err != nil || p < 1 {
			return Fault{}, fmt.Errorf("%w: bad phase in %q", ErrInvalidFault, s)
		}
		f.Stage = name
		f.Phase = p
	}

	if !knownStage(f.Stage) {
		return Fault{}, fmt.Errorf("%w: unknown stage %q", ErrInvalidFault, f.Stage)
	}
	if _, ok := status.Default().Code(f.Code); !ok {
		return Fault{}, fmt.Errorf("%w: unknown code %q", ErrInvalidFault, f.Code)
	}

	return f, nil
}
