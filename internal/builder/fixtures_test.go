package builder

import (
	"context"

	"pcbuilder/internal/domain"
	"pcbuilder/internal/store"
)

// fakeCatalog is an in-memory Catalog. Candidates are returned in insertion order.
type fakeCatalog struct {
	products  []domain.Product
	fetchErr  error
	lookupErr error
	fetched   []domain.ComponentType
}

func newFakeCatalog(products ...domain.Product) *fakeCatalog {
	c := &fakeCatalog{}
	for i := range products {
		c.add(products[i])
	}
	return c
}

func (c *fakeCatalog) add(p domain.Product) {
	p.ID = int64(len(c.products) + 1)
	c.products = append(c.products, p)
}

func (c *fakeCatalog) remove(asin string) {
	for i := range c.products {
		if c.products[i].ASIN == asin {
			c.products = append(c.products[:i], c.products[i+1:]...)
			return
		}
	}
}

func (c *fakeCatalog) FetchCandidates(_ context.Context, ct domain.ComponentType) ([]domain.Product, error) {
	c.fetched = append(c.fetched, ct)
	if c.fetchErr != nil {
		return nil, c.fetchErr
	}
	var out []domain.Product
	for _, p := range c.products {
		if p.HasAttributes(ct) {
			out = append(out, p)
		}
	}
	return out, nil
}

func (c *fakeCatalog) GetProductByASIN(_ context.Context, asin string) (*domain.Product, error) {
	if c.lookupErr != nil {
		return nil, c.lookupErr
	}
	for i := range c.products {
		if c.products[i].ASIN == asin {
			p := c.products[i]
			return &p, nil
		}
	}
	return nil, store.ErrProductNotFound
}

func ptr[T any](v T) *T { return &v }

func cpu(asin string, price float64, socket, memType string, memSpeed, cores, threads int, turbo float64) domain.Product {
	return domain.Product{ASIN: asin, Title: "CPU " + asin, Price: ptr(price), CPU: &domain.CPUAttributes{
		Brand: "AMD", Model: asin, Cores: cores, Threads: threads, SocketType: socket,
		TurboSpeed: ptr(turbo), MemoryType: memType, MemorySpeed: memSpeed,
	}}
}

func motherboard(asin string, price float64, socket string, slots, maxRAM int) domain.Product {
	return domain.Product{ASIN: asin, Title: "Board " + asin, Price: ptr(price), Motherboard: &domain.MotherboardAttributes{
		Brand: "MSI", Model: asin, SocketType: socket, RAMSlots: slots, MaxRAMSupport: maxRAM,
	}}
}

func ram(asin string, price float64, ramType string, speed, total, quantity int) domain.Product {
	return domain.Product{ASIN: asin, Title: "RAM " + asin, Price: ptr(price), RAM: &domain.RAMAttributes{
		Brand: "Corsair", Model: asin, RAMType: ramType, RAMSpeed: speed, TotalMemory: total,
		Quantity: quantity, UnitMemory: total / max(quantity, 1),
	}}
}

func cooler(asin string, price float64) domain.Product {
	return domain.Product{ASIN: asin, Title: "Cooler " + asin, Price: ptr(price), CPUCooler: &domain.CPUCoolerAttributes{Brand: "Noctua", Model: asin}}
}

func storageDrive(asin string, price float64, capacity int, memType string) domain.Product {
	return domain.Product{ASIN: asin, Title: "Drive " + asin, Price: ptr(price), Storage: &domain.StorageAttributes{
		Brand: "Samsung", Model: asin, Capacity: ptr(capacity), MemType: memType,
	}}
}

func gpu(asin string, price float64, memory float64, clock, length int) domain.Product {
	return domain.Product{ASIN: asin, Title: "GPU " + asin, Price: ptr(price), GPU: &domain.GPUAttributes{
		Brand: "ASUS", Model: asin, Memory: memory, ClockSpeed: ptr(clock), Length: ptr(length),
	}}
}

func psu(asin string, price float64, power int) domain.Product {
	return domain.Product{ASIN: asin, Title: "PSU " + asin, Price: ptr(price), PSU: &domain.PSUAttributes{
		Brand: "Seasonic", Model: asin, Power: ptr(power),
	}}
}

func pcCase(asin string, price float64, cabinetType string) domain.Product {
	return domain.Product{ASIN: asin, Title: "Case " + asin, Price: ptr(price), Case: &domain.CaseAttributes{
		Brand: "Fractal", Model: asin, CabinetType: cabinetType,
	}}
}

// fullCatalog has at least one compatible candidate for every component type
// on an AM4/DDR4 platform and a budget of 1200.
func fullCatalog() *fakeCatalog {
	return newFakeCatalog(
		cpu("B07JGCSMJX", 329.99, "AM4", "DDR4", 3200, 8, 16, 4.6),
		cpu("B0815XFSGK", 299.99, "AM4", "DDR4", 3200, 12, 24, 4.6),
		cpu("B0BBJDS62N", 429.00, "AM5", "DDR5", 5200, 16, 32, 5.7),
		motherboard("B089CWDHFZ", 129.99, "AM4", 4, 128),
		motherboard("B0BHC1KX8K", 219.99, "AM5", 4, 192),
		ram("B07RW6Z692", 59.99, "DDR4", 3200, 16, 2),
		ram("B08C4WRYVZ", 34.99, "DDR4", 3200, 8, 1),
		ram("B0BF8FC1B1", 119.99, "DDR5", 6000, 32, 2),
		cooler("B07Y87YHRH", 44.95),
		storageDrive("B08GLX7TNT", 89.99, 1000, "SSD"),
		storageDrive("B07H289S79", 49.99, 2000, "HDD"),
		gpu("B0BSGM4ZR7", 549.99, 12, 2475, 300),
		gpu("B08WPRMVWB", 329.99, 12, 1777, 242),
		psu("B07WDMNXZZ", 99.99, 750),
		psu("B0B4MTQY8X", 69.99, 650),
		psu("B079H5WDK5", 129.99, 850),
		pcCase("B07TXMKGPN", 94.99, "ATX Mid Tower"),
	)
}
