package domain

import (
	"encoding/json"
	"fmt"
)

// Attribute records as normalised from vendor product listings.
// Optional fields are pointers; a nil value means the vendor table had no entry.

type CPUAttributes struct {
	Brand              string   `json:"brand"`
	Model              string   `json:"model"`
	Cores              int      `json:"cores"`
	Threads            int      `json:"threads"`
	SocketType         string   `json:"socket_type"`
	BaseSpeed          float64  `json:"base_speed"`
	TurboSpeed         *float64 `json:"turbo_speed,omitempty"`
	Architecture       string   `json:"architecture"`
	CoreFamily         string   `json:"core_family"`
	IntegratedGraphics *string  `json:"integrated_graphics,omitempty"`
	MemoryType         string   `json:"memory_type"`
	MemorySpeed        int      `json:"memory_speed"`
	Series             string   `json:"series"`
	Generation         string   `json:"generation"`
}

type CPUCoolerAttributes struct {
	Brand          string   `json:"brand"`
	Model          string   `json:"model"`
	FanRPMBase     *int     `json:"fan_rpm_base,omitempty"`
	FanRPMMax      *int     `json:"fan_rpm_max,omitempty"`
	NoiseLevelBase *float64 `json:"noise_level_base,omitempty"`
	NoiseLevelMax  *float64 `json:"noise_level_max,omitempty"`
	Color          string   `json:"color"`
}

type MotherboardAttributes struct {
	Brand         string `json:"brand"`
	Model         string `json:"model"`
	Chipset       string `json:"chipset"`
	FormFactor    string `json:"form_factor"`
	SocketType    string `json:"socket_type"`
	RAMSlots      int    `json:"ram_slots"`
	MaxRAMSupport int    `json:"max_ram_support"` // GB
}

type RAMAttributes struct {
	Brand       string `json:"brand"`
	Model       string `json:"model"`
	TotalMemory int    `json:"total_memory"` // GB
	UnitMemory  int    `json:"unit_memory"`  // GB per module
	Quantity    int    `json:"quantity"`
	RAMType     string `json:"ram_type"`
	RAMSpeed    int    `json:"ram_speed"` // MHz
	CASLatency  string `json:"cas_latency"`
}

type StorageAttributes struct {
	Brand      string `json:"brand"`
	Model      string `json:"model"`
	Capacity   *int   `json:"capacity,omitempty"` // GB
	MemType    string `json:"mem_type"`
	Interface  string `json:"interface"`
	CacheMem   *int   `json:"cache_mem,omitempty"`
	FormFactor string `json:"form_factor"`
}

type GPUAttributes struct {
	Brand        string  `json:"brand"`
	Model        string  `json:"model"`
	Memory       float64 `json:"memory"` // GB
	MemInterface string  `json:"mem_interface"`
	Length       *int    `json:"length,omitempty"` // mm
	Interface    string  `json:"interface"`
	Chipset      string  `json:"chipset"`
	BaseClock    *int    `json:"base_clock,omitempty"`
	ClockSpeed   *int    `json:"clock_speed,omitempty"` // MHz
	FrameSync    string  `json:"frame_sync"`
}

type PSUAttributes struct {
	Brand      string `json:"brand"`
	Model      string `json:"model"`
	Power      *int   `json:"power,omitempty"` // W
	Efficiency string `json:"efficiency"`
	Color      string `json:"color"`
}

type CaseAttributes struct {
	Brand       string `json:"brand"`
	Model       string `json:"model"`
	SidePanel   string `json:"side_panel"`
	CabinetType string `json:"cabinet_type"`
	Color       string `json:"color"`
}

// SetAttributes decodes raw JSON into the record of ct and attaches it to p.
func (p *Product) SetAttributes(ct ComponentType, raw []byte) error {
	var target any
	switch ct {
	case ComponentCPU:
		p.CPU = &CPUAttributes{}
		target = p.CPU
	case ComponentCPUCooler:
		p.CPUCooler = &CPUCoolerAttributes{}
		target = p.CPUCooler
	case ComponentMotherboard:
		p.Motherboard = &MotherboardAttributes{}
		target = p.Motherboard
	case ComponentRAM:
		p.RAM = &RAMAttributes{}
		target = p.RAM
	case ComponentStorage:
		p.Storage = &StorageAttributes{}
		target = p.Storage
	case ComponentGPU:
		p.GPU = &GPUAttributes{}
		target = p.GPU
	case ComponentPSU:
		p.PSU = &PSUAttributes{}
		target = p.PSU
	case ComponentCase:
		p.Case = &CaseAttributes{}
		target = p.Case
	default:
		return fmt.Errorf("%w: %q", ErrInvalidComponentType, ct)
	}
	if err := json.Unmarshal(raw, target); err != nil {
		return fmt.Errorf("domain: decode %s attributes for product %s: %w", ct, p.ASIN, err)
	}
	return nil
}
