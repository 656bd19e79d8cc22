package driver

import (
	"fmt"
	"sort"
	"sync"
)

// Profile pairs a descriptor with the name it is registered under.
type Profile struct {
	Name        string
	Description string
	Descriptor  Descriptor
}

var (
	registryMu sync.RWMutex
	registry   = map[string]Profile{}
)

func init() {
	builtin := []Profile{
		{"standard-multimeter", "Generic SCPI multimeter", StandardMultimeter()},
		{"standard-power-supply", "Generic single output SCPI supply", StandardPowerSupply()},
		{"hp-mainframe", "HP/Agilent mainframe, (@n) channel lists", HPMainframe()},
		{"hp-mobile-comms", "HP 6631xB mobile communications DC source", HPMobileCommsSource()},
		{"standard-dynamic-load", "Generic SCPI electronic load", StandardDynamicLoad()},
		{"rohde-schwarz", "Rohde & Schwarz HMP, INST:NSEL channel selection", RohdeSchwarz()},
		{"tti", "Aim-TTi CPX/QL/MX, numbered mnemonics", TTI()},
		{"rigol-dp832", "Rigol DP800 series, [n] placeholders", RigolDP832()},
	}
	for _, p := range builtin {
		if err := Register(p); err != nil {
			panic(err)
		}
	}
}

// Register adds a profile. Names are unique; registering an existing name is
// an error so built-in profiles cannot be shadowed.
func Register(p Profile) error {
	if p.Name == "" {
		return fmt.Errorf("driver: profile name is empty")
	}
	if p.Descriptor == nil {
		return fmt.Errorf("driver: profile %q has no descriptor", p.Name)
	}
	if err := p.Descriptor.Validate(); err != nil {
		return fmt.Errorf("driver: profile %q: %w", p.Name, err)
	}

	registryMu.Lock()
	defer registryMu.Unlock()
	if _, exists := registry[p.Name]; exists {
		return fmt.Errorf("driver: profile %q already registered", p.Name)
	}
	registry[p.Name] = p
	return nil
}

// Lookup returns the profile registered under name.
func Lookup(name string) (Profile, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	p, ok := registry[name]
	return p, ok
}

// Profiles returns every registered profile sorted by name.
func Profiles() []Profile {
	registryMu.RLock()
	defer registryMu.RUnlock()
	out := make([]Profile, 0, len(registry))
	for _, p := range registry {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
