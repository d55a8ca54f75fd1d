package builder

import (
	"pcbuilder/internal/domain"
)

// Verdict is the outcome of a compatibility check.
type Verdict int

const (
	Compatible Verdict = iota
	Incompatible
	// Indeterminate means a comparison could not be evaluated, e.g. a record
	// or a required field is missing. It is treated as incompatible.
	Indeterminate
)

func (v Verdict) String() string {
	switch v {
	case Compatible:
		return "compatible"
	case Incompatible:
		return "incompatible"
	case Indeterminate:
		return "indeterminate"
	}
	return "unknown"
}

// Selection holds the products already resolved within one build.
type Selection map[domain.ComponentType]domain.Product

type compatFunc func(candidate *domain.Product, selected Selection, budget float64) Verdict

var compatChecks = map[domain.ComponentType]compatFunc{
	domain.ComponentCPU:         cpuCompat,
	domain.ComponentMotherboard: motherboardCompat,
	domain.ComponentRAM:         ramCompat,
	domain.ComponentPSU:         psuCompat,
	domain.ComponentCase:        caseCompat,
}

// Check evaluates candidate as a ct against the already selected products.
// Types without a defined predicate are always compatible.
func Check(candidate *domain.Product, ct domain.ComponentType, selected Selection, budget float64) Verdict {
	check, ok := compatChecks[ct]
	if !ok {
		return Compatible
	}
	return check(candidate, selected, budget)
}

// IsCompatible is Check collapsed to a boolean; Indeterminate counts as incompatible.
func IsCompatible(candidate *domain.Product, ct domain.ComponentType, selected Selection, budget float64) bool {
	return Check(candidate, ct, selected, budget) == Compatible
}

func boolVerdict(ok bool) Verdict {
	if ok {
		return Compatible
	}
	return Incompatible
}

func cpuCompat(candidate *domain.Product, selected Selection, _ float64) Verdict {
	mb, ok := selected[domain.ComponentMotherboard]
	if !ok {
		return Compatible
	}
	if candidate.CPU == nil || mb.Motherboard == nil {
		return Indeterminate
	}
	return boolVerdict(candidate.CPU.SocketType == mb.Motherboard.SocketType)
}

func motherboardCompat(candidate *domain.Product, selected Selection, _ float64) Verdict {
	cpu, ok := selected[domain.ComponentCPU]
	if !ok {
		return Compatible
	}
	if candidate.Motherboard == nil || cpu.CPU == nil {
		return Indeterminate
	}
	return boolVerdict(candidate.Motherboard.SocketType == cpu.CPU.SocketType)
}

func ramCompat(candidate *domain.Product, selected Selection, _ float64) Verdict {
	cpu, hasCPU := selected[domain.ComponentCPU]
	mb, hasMB := selected[domain.ComponentMotherboard]
	if !hasCPU && !hasMB {
		return Compatible
	}
	ram := candidate.RAM
	if ram == nil {
		return Indeterminate
	}
	if hasCPU {
		if cpu.CPU == nil {
			return Indeterminate
		}
		if ram.RAMType != cpu.CPU.MemoryType || ram.RAMSpeed > cpu.CPU.MemorySpeed {
			return Incompatible
		}
	}
	if hasMB {
		if mb.Motherboard == nil {
			return Indeterminate
		}
		if ram.TotalMemory > mb.Motherboard.MaxRAMSupport || ram.Quantity > mb.Motherboard.RAMSlots {
			return Incompatible
		}
	}
	return Compatible
}

var caseGPUClearance = map[string]int{
	"Mini ITX":            260,
	"MicroATX Mini Tower": 280,
	"MicroATX Mid Tower":  300,
	"ATX Mini Tower":      300,
	"ATX Mid Tower":       340,
	"ATX Full Tower":      400,
}

const defaultGPUClearance = 250

// GPUClearance returns the longest GPU (mm) a cabinet type is assumed to fit.
func GPUClearance(cabinetType string) int {
	if limit, ok := caseGPUClearance[cabinetType]; ok {
		return limit
	}
	return defaultGPUClearance
}

func caseCompat(candidate *domain.Product, selected Selection, _ float64) Verdict {
	gpu, ok := selected[domain.ComponentGPU]
	if !ok {
		return Compatible
	}
	if candidate.Case == nil {
		return Indeterminate
	}
	// A case without a cabinet type is not checked against the GPU.
	if candidate.Case.CabinetType == "" {
		return Compatible
	}
	if gpu.GPU == nil || gpu.GPU.Length == nil {
		return Indeterminate
	}
	return boolVerdict(*gpu.GPU.Length <= GPUClearance(candidate.Case.CabinetType))
}

// PSUThreshold estimates the required PSU wattage from the budget tier alone.
func PSUThreshold(budget float64) int {
	switch {
	case budget < 500:
		return 500
	case budget < 800:
		return 600
	case budget < 1200:
		return 700
	case budget < 1600:
		return 800
	default:
		return 850
	}
}

func psuCompat(candidate *domain.Product, _ Selection, budget float64) Verdict {
	if candidate.PSU == nil || candidate.PSU.Power == nil {
		return Indeterminate
	}
	return boolVerdict(*candidate.PSU.Power >= PSUThreshold(budget))
}
