package camera

import (
	"fmt"
	"math"
	"strings"
)

// Command is an operation requested for one camera.
//
// The set of commands is closed: SetAttribute, SetIRLED, GotoPreset,
// Reboot and Query.
type Command interface {
	// Name is the wire name used in command messages.
	Name() string
	isCommand()
}

// SetAttribute writes one writable attribute.
type SetAttribute struct {
	Attribute string
	Value     float64
}

// SetIRLED sets the infrared illuminator mode.
type SetIRLED struct {
	Mode IRLEDMode
}

// GotoPreset moves a PTZ camera to a stored preset.
type GotoPreset struct {
	Preset int
}

// Reboot restarts the camera.
type Reboot struct{}

// Query forces a full refresh and report of every attribute.
type Query struct{}

// Command wire names.
const (
	CommandSetAttribute = "set_attribute"
	CommandSetIRLED     = "set_ir_led"
	CommandGotoPreset   = "goto_preset"
	CommandReboot       = "reboot"
	CommandQuery        = "query"
)

func (SetAttribute) Name() string { return CommandSetAttribute }
func (SetIRLED) Name() string     { return CommandSetIRLED }
func (GotoPreset) Name() string   { return CommandGotoPreset }
func (Reboot) Name() string       { return CommandReboot }
func (Query) Name() string        { return CommandQuery }

func (SetAttribute) isCommand() {}
func (SetIRLED) isCommand()     {}
func (GotoPreset) isCommand()   {}
func (Reboot) isCommand()       {}
func (Query) isCommand()        {}

// pendingKey identifies a write for retry; a newer write of the same
// target replaces an older pending one.
func pendingKey(cmd Command) string {
	switch c := cmd.(type) {
	case SetAttribute:
		return c.Attribute
	default:
		return cmd.Name()
	}
}

// ParseCommand builds a Command from its wire name and parameters.
//
// Parameters by command:
//   - set_attribute: "attribute" (string), "value" (number)
//   - set_ir_led: "mode" ("auto", "off", "on" or 0-2)
//   - goto_preset: "preset" (number)
func ParseCommand(name string, params map[string]any) (Command, error) {
	switch strings.ToLower(name) {
	case CommandSetAttribute:
		attr, ok := params["attribute"].(string)
		if !ok || attr == "" {
			return nil, fmt.Errorf("%w: set_attribute requires attribute", ErrInvalidValue)
		}
		value, err := numberParam(params, "value")
		if err != nil {
			return nil, err
		}
		return SetAttribute{Attribute: strings.ToUpper(attr), Value: value}, nil

	case CommandSetIRLED:
		mode, err := irModeParam(params["mode"])
		if err != nil {
			return nil, err
		}
		return SetIRLED{Mode: mode}, nil

	case CommandGotoPreset:
		preset, err := numberParam(params, "preset")
		if err != nil {
			return nil, err
		}
		if preset < 0 || preset != math.Trunc(preset) {
			return nil, fmt.Errorf("%w: preset %v", ErrInvalidValue, preset)
		}
		return GotoPreset{Preset: int(preset)}, nil

	case CommandReboot:
		return Reboot{}, nil

	case CommandQuery:
		return Query{}, nil

	default:
		return nil, fmt.Errorf("%w: command %q", ErrUnsupported, name)
	}
}

func numberParam(params map[string]any, key string) (float64, error) {
	switch v := params[key].(type) {
	case float64:
		return v, nil
	case int:
		return float64(v), nil
	case bool:
		return boolValue(v), nil
	default:
		return 0, fmt.Errorf("%w: %s must be a number", ErrInvalidValue, key)
	}
}

func irModeParam(v any) (IRLEDMode, error) {
	switch m := v.(type) {
	case string:
		switch strings.ToLower(m) {
		case "auto":
			return IRLEDAuto, nil
		case "off":
			return IRLEDOff, nil
		case "on":
			return IRLEDOn, nil
		}
	case float64:
		if m >= 0 && m <= 2 && m == math.Trunc(m) {
			return IRLEDMode(m), nil
		}
	}
	return 0, fmt.Errorf("%w: ir led mode %v", ErrInvalidValue, v)
}
