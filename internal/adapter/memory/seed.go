package memory

import (
	"fmt"
	"os"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/YelzhanWeb/waiter-orders/internal/domain"
)

// Seed is the floor setup a memory store starts from.
type Seed struct {
	Tables []struct {
		ID     string `yaml:"id"`
		Number string `yaml:"number"`
		Branch string `yaml:"branch"`
		Seats  int    `yaml:"seats"`
	} `yaml:"tables"`
	Stations []struct {
		ID         string   `yaml:"id"`
		Name       string   `yaml:"name"`
		Branch     string   `yaml:"branch"`
		ItemGroups []string `yaml:"item_groups"`
	} `yaml:"stations"`
	Menu []struct {
		Code        string            `yaml:"code"`
		Name        string            `yaml:"name"`
		ItemGroup   string            `yaml:"item_group"`
		Rate        string            `yaml:"rate"`
		HasVariants bool              `yaml:"has_variants"`
		VariantOf   string            `yaml:"variant_of"`
		Attributes  map[string]string `yaml:"attributes"`
		MinQty      int               `yaml:"min_qty"`
		MaxQty      int               `yaml:"max_qty"`
	} `yaml:"menu"`
	Access map[string][]string `yaml:"access"`
}

// LoadSeedFile reads a YAML seed from path into a new store.
func LoadSeedFile(path string) (*Store, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read seed file: %w", err)
	}
	return LoadSeed(data)
}

// LoadSeed builds a store from YAML. Every table starts Available and every
// station active, in file order.
func LoadSeed(data []byte) (*Store, error) {
	var seed Seed
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return nil, fmt.Errorf("failed to parse seed: %w", err)
	}

	s := NewStore()
	for _, t := range seed.Tables {
		if t.ID == "" || t.Branch == "" {
			return nil, fmt.Errorf("seed table %q: id and branch are required", t.Number)
		}
		s.AddTable(&domain.Table{ID: t.ID, Number: t.Number, Branch: t.Branch, Seats: t.Seats, Active: true, Status: domain.TableAvailable})
	}
	for _, st := range seed.Stations {
		groups := make([]domain.StationItemGroup, 0, len(st.ItemGroups))
		for _, g := range st.ItemGroups {
			groups = append(groups, domain.StationItemGroup{ItemGroup: g})
		}
		id := st.ID
		if id == "" {
			id = st.Name
		}
		s.AddStation(&domain.KitchenStation{ID: id, Name: st.Name, Branch: st.Branch, Active: true, ItemGroups: groups})
	}
	for _, m := range seed.Menu {
		rate := decimal.Zero
		if m.Rate != "" {
			r, err := decimal.NewFromString(m.Rate)
			if err != nil {
				return nil, fmt.Errorf("seed item %s: bad rate %q: %w", m.Code, m.Rate, err)
			}
			rate = r
		}
		item := &domain.MenuItem{
			Code:        m.Code,
			Name:        m.Name,
			ItemGroup:   m.ItemGroup,
			Rate:        rate,
			HasVariants: m.HasVariants,
			VariantOf:   m.VariantOf,
			MinQty:      m.MinQty,
			MaxQty:      m.MaxQty,
		}
		for attr, value := range m.Attributes {
			item.Attributes = append(item.Attributes, domain.VariantAttribute{Attribute: attr, Value: value})
		}
		s.AddMenuItem(item)
	}
	for actor, branches := range seed.Access {
		for _, b := range branches {
			s.GrantAccess(actor, b)
		}
	}
	return s, nil
}
