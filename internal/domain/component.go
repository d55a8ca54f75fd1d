package domain

import (
	"errors"
	"fmt"
)

// ErrInvalidComponentType is returned for a component type outside the fixed set.
var ErrInvalidComponentType = errors.New("domain: invalid component type")

// ComponentType names one hardware slot of a build.
type ComponentType string

const (
	ComponentCPU         ComponentType = "cpu"
	ComponentCPUCooler   ComponentType = "cpu_cooler"
	ComponentMotherboard ComponentType = "motherboard"
	ComponentRAM         ComponentType = "ram"
	ComponentStorage     ComponentType = "storage"
	ComponentGPU         ComponentType = "gpu"
	ComponentPSU         ComponentType = "psu"
	ComponentCase        ComponentType = "case"
)

// BuildOrder is the order in which a build resolves component types.
// Compatibility checks only look at types resolved earlier in this list, so
// motherboard follows cpu, ram follows both, and case follows gpu.
var BuildOrder = []ComponentType{
	ComponentCPU,
	ComponentCPUCooler,
	ComponentMotherboard,
	ComponentRAM,
	ComponentStorage,
	ComponentGPU,
	ComponentPSU,
	ComponentCase,
}

// Valid reports whether ct is one of the known component types.
func (ct ComponentType) Valid() bool {
	for _, known := range BuildOrder {
		if ct == known {
			return true
		}
	}
	return false
}

func (ct ComponentType) String() string { return string(ct) }

// ParseComponentType converts s into a ComponentType.
func ParseComponentType(s string) (ComponentType, error) {
	ct := ComponentType(s)
	if !ct.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidComponentType, s)
	}
	return ct, nil
}
