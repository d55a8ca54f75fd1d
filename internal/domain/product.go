package domain

import (
	"time"
)

// Category is a catalog category derived from the pricing provider's category tree.
type Category struct {
	ID        int64     `json:"id"`
	KeepaID   int64     `json:"keepa_id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Product is a catalog entry identified by its ASIN.
// It owns at most one attribute record per component type; a product is a
// candidate for a component type only when the matching record is set.
type Product struct {
	ID         int64    `json:"id"`
	ASIN       string   `json:"asin"`
	Title      string   `json:"title"`
	Price      *float64 `json:"price,omitempty"`  // nil when the provider has no current offer
	Rating     *float64 `json:"rating,omitempty"` // nil when unrated
	CategoryID *int64   `json:"category_id,omitempty"`

	CPU         *CPUAttributes         `json:"cpu_attributes,omitempty"`
	CPUCooler   *CPUCoolerAttributes   `json:"cpu_cooler_attributes,omitempty"`
	Motherboard *MotherboardAttributes `json:"motherboard_attributes,omitempty"`
	RAM         *RAMAttributes         `json:"ram_attributes,omitempty"`
	Storage     *StorageAttributes     `json:"storage_attributes,omitempty"`
	GPU         *GPUAttributes         `json:"gpu_attributes,omitempty"`
	PSU         *PSUAttributes         `json:"power_supply_attributes,omitempty"`
	Case        *CaseAttributes        `json:"case_attributes,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// HasAttributes reports whether the product owns the attribute record of ct.
func (p *Product) HasAttributes(ct ComponentType) bool {
	switch ct {
	case ComponentCPU:
		return p.CPU != nil
	case ComponentCPUCooler:
		return p.CPUCooler != nil
	case ComponentMotherboard:
		return p.Motherboard != nil
	case ComponentRAM:
		return p.RAM != nil
	case ComponentStorage:
		return p.Storage != nil
	case ComponentGPU:
		return p.GPU != nil
	case ComponentPSU:
		return p.PSU != nil
	case ComponentCase:
		return p.Case != nil
	}
	return false
}

// ComponentTypes lists the component types the product owns records for, in BuildOrder.
func (p *Product) ComponentTypes() []ComponentType {
	var types []ComponentType
	for _, ct := range BuildOrder {
		if p.HasAttributes(ct) {
			types = append(types, ct)
		}
	}
	return types
}
