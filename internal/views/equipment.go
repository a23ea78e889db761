package views

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ccugym/gymdash/internal/backend"
	"github.com/ccugym/gymdash/internal/metrics"
	"github.com/ccugym/gymdash/internal/poller"
)

// EquipmentRow is one rendered equipment line
type EquipmentRow struct {
	Name      string `json:"name"`
	Available int    `json:"available"`
	Total     int    `json:"total"`
	Status    string `json:"status"`
	InStock   bool   `json:"in_stock"`
}

// SectionGroup is the equipment of one section, in backend order
type SectionGroup struct {
	Section backend.Section `json:"section"`
	Title   string          `json:"title"`
	Rows    []EquipmentRow  `json:"rows"`
}

// EquipmentSnapshot is what the equipment tab renders
type EquipmentSnapshot struct {
	Sections    []SectionGroup `json:"sections"`
	PeopleInGym int            `json:"people_in_gym"`
	PeopleLabel string         `json:"people_label"`
	Loaded      bool           `json:"loaded"`
}

// EquipmentView projects the backend's equipment list and occupancy. It
// never mutates anything.
type EquipmentView struct {
	backend  Backend
	interval time.Duration
	metrics  *metrics.Metrics
	bus      *Bus

	mu        sync.Mutex
	items     []backend.EquipmentRecord
	people    int
	loaded    bool
	equipment *poller.Fetcher[[]backend.EquipmentRecord]
	occupancy *poller.Fetcher[backend.Occupancy]
}

// NewEquipmentView creates an unmounted view
func NewEquipmentView(b Backend, interval time.Duration, m *metrics.Metrics, bus *Bus) *EquipmentView {
	return &EquipmentView{
		backend:  b,
		interval: interval,
		metrics:  m,
		bus:      bus,
	}
}

// Mount starts both pollers with fresh change-detection state
func (v *EquipmentView) Mount(ctx context.Context) error {
	equipment, err := poller.New(poller.Config[[]backend.EquipmentRecord]{
		Name:     "equipment",
		Interval: v.interval,
		Fetch: func(ctx context.Context) ([]backend.EquipmentRecord, error) {
			return v.backend.Equipment(ctx, "")
		},
		Key:      poller.JSONKey[[]backend.EquipmentRecord],
		OnChange: v.setItems,
		Metrics:  v.metrics,
	})
	if err != nil {
		return err
	}
	occupancy, err := poller.New(poller.Config[backend.Occupancy]{
		Name:     "equipment-occupancy",
		Interval: v.interval,
		Fetch:    v.backend.GymCount,
		Key:      poller.JSONKey[backend.Occupancy],
		OnChange: v.setOccupancy,
		Metrics:  v.metrics,
	})
	if err != nil {
		return err
	}

	v.mu.Lock()
	prevEquipment, prevOccupancy := v.equipment, v.occupancy
	v.equipment, v.occupancy = equipment, occupancy
	v.mu.Unlock()

	stopFetchers(prevEquipment, prevOccupancy)
	equipment.Start(ctx)
	occupancy.Start(ctx)
	return nil
}

// Unmount stops polling
func (v *EquipmentView) Unmount() {
	v.mu.Lock()
	equipment, occupancy := v.equipment, v.occupancy
	v.equipment, v.occupancy = nil, nil
	v.mu.Unlock()

	stopFetchers(equipment, occupancy)
}

func stopFetchers(equipment *poller.Fetcher[[]backend.EquipmentRecord], occupancy *poller.Fetcher[backend.Occupancy]) {
	if equipment != nil {
		equipment.Stop()
	}
	if occupancy != nil {
		occupancy.Stop()
	}
}

func (v *EquipmentView) setItems(items []backend.EquipmentRecord) {
	v.mu.Lock()
	v.items = items
	v.loaded = true
	v.mu.Unlock()
	v.bus.Publish(ViewEquipment)
}

func (v *EquipmentView) setOccupancy(o backend.Occupancy) {
	v.mu.Lock()
	v.people = o.PeopleInGym
	v.mu.Unlock()
	v.bus.Publish(ViewEquipment)
}

// Snapshot groups the current equipment by section
func (v *EquipmentView) Snapshot() EquipmentSnapshot {
	v.mu.Lock()
	defer v.mu.Unlock()

	return EquipmentSnapshot{
		Sections:    GroupBySection(v.items),
		PeopleInGym: v.people,
		PeopleLabel: fmt.Sprintf("People in Gym: %d", v.people),
		Loaded:      v.loaded,
	}
}

// GroupBySection splits records into the known sections, keeping order.
// Records of other sections are not shown.
func GroupBySection(items []backend.EquipmentRecord) []SectionGroup {
	groups := make([]SectionGroup, 0, len(backend.Sections))
	for _, sec := range backend.Sections {
		g := SectionGroup{
			Section: sec,
			Title:   string(sec) + " Equipment",
			Rows:    []EquipmentRow{},
		}
		for _, it := range items {
			if it.Section != sec {
				continue
			}
			g.Rows = append(g.Rows, EquipmentRow{
				Name:      it.Name,
				Available: it.Available,
				Total:     it.Total,
				// available may briefly exceed total while the backend catches up
				Status:  fmt.Sprintf("%d/%d available", it.Available, it.Total),
				InStock: it.Available > 0,
			})
		}
		groups = append(groups, g)
	}
	return groups
}
