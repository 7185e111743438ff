package concepts

import (
	"fmt"

	"github.com/weftworks/weft/internal/kernel"
	"github.com/weftworks/weft/internal/storage"
)

// RegisterDefaults registers the built-in concepts on one kernel, all
// sharing one store. Relations do not collide: each concept prefixes
// its own.
func RegisterDefaults(k *kernel.Kernel, store storage.Store) error {
	register := []func() error{
		func() error { spec, tr := API(); return k.RegisterConcept(spec, tr) },
		func() error { spec, tr := User(store); return k.RegisterConcept(spec, tr) },
		func() error { spec, tr := Password(store); return k.RegisterConcept(spec, tr) },
		func() error { spec, tr := Session(store); return k.RegisterConcept(spec, tr) },
		func() error { spec, tr := Note(store); return k.RegisterConcept(spec, tr) },
	}
	for _, fn := range register {
		if err := fn(); err != nil {
			return fmt.Errorf("register defaults: %w", err)
		}
	}
	return nil
}
