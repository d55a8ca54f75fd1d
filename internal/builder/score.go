package builder

import (
	"sort"

	"pcbuilder/internal/domain"
)

type rawValueFunc func(p *domain.Product) float64

// cpu_cooler, motherboard and case have no formula and score 0.
var rawValues = map[domain.ComponentType]rawValueFunc{
	domain.ComponentRAM:     ramValue,
	domain.ComponentCPU:     cpuValue,
	domain.ComponentGPU:     gpuValue,
	domain.ComponentStorage: storageValue,
	domain.ComponentPSU:     psuValue,
}

func ramValue(p *domain.Product) float64 {
	if p.RAM == nil {
		return 0
	}
	return 2*float64(p.RAM.TotalMemory) + 0.1*float64(p.RAM.RAMSpeed)
}

func cpuValue(p *domain.Product) float64 {
	if p.CPU == nil {
		return 0
	}
	v := 1.5*float64(p.CPU.Cores) + float64(p.CPU.Threads)
	if p.CPU.TurboSpeed != nil {
		v += 2 * *p.CPU.TurboSpeed
	}
	return v
}

func gpuValue(p *domain.Product) float64 {
	if p.GPU == nil {
		return 0
	}
	v := 4 * p.GPU.Memory
	if p.GPU.ClockSpeed != nil {
		v += 0.1 * float64(*p.GPU.ClockSpeed)
	}
	return v
}

func storageValue(p *domain.Product) float64 {
	if p.Storage == nil {
		return 0
	}
	var v float64
	if p.Storage.Capacity != nil {
		v += 0.02 * float64(*p.Storage.Capacity)
	}
	if p.Storage.MemType == "SSD" {
		v += 5
	}
	return v
}

func psuValue(p *domain.Product) float64 {
	if p.PSU == nil || p.PSU.Power == nil {
		return 0
	}
	return 0.05 * float64(*p.PSU.Power)
}

// RawValue is the price-independent capability estimate of p as a ct.
func RawValue(p *domain.Product, ct domain.ComponentType) float64 {
	fn, ok := rawValues[ct]
	if !ok {
		return 0
	}
	return fn(p)
}

// EffectivePrice is the price used for scoring: missing or non-positive prices count as 1.
func EffectivePrice(p *domain.Product) float64 {
	if p.Price == nil || *p.Price <= 0 {
		return 1
	}
	return *p.Price
}

// Score ranks candidates of the same component type; scores of different types are not comparable.
func Score(p *domain.Product, ct domain.ComponentType) float64 {
	return RawValue(p, ct) * (1 / EffectivePrice(p))
}

type scored struct {
	product domain.Product
	score   float64
}

// rank orders candidates by descending score. Equal scores keep fetch order.
func rank(candidates []domain.Product, ct domain.ComponentType) []scored {
	out := make([]scored, len(candidates))
	for i := range candidates {
		out[i] = scored{product: candidates[i], score: Score(&candidates[i], ct)}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].score > out[j].score })
	return out
}
