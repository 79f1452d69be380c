package entity

import (
	"errors"
	"sort"
	"sync"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/trezcool/masomo-console/core"
	"github.com/trezcool/masomo-console/core/listing"
)

var ErrUnknownKind = errors.New("unknown entity kind")

type (
	// Column is one exported/displayed column of an entity table.
	Column struct {
		Title string `json:"title" validate:"required"`
		Field string `json:"field" validate:"required,fieldname"`
	}

	// Definition describes how the console lists and summarizes one entity type.
	// Endpoint is relative to the upstream API base URL.
	Definition struct {
		Kind         string              `json:"kind" validate:"required,lowercase,excludesall=/?#"`
		Title        string              `json:"title" validate:"required"`
		Endpoint     string              `json:"endpoint" validate:"required,startswith=/"`
		Aggregation  listing.Config      `json:"aggregation"`
		View         listing.ViewOptions `json:"view"`
		FilterFields []string            `json:"filterFields" validate:"dive,fieldname"`
		DefaultSort  string              `json:"defaultSort,omitempty" validate:"omitempty,ordering"`
		Roles        []string            `json:"roles,omitempty"`
		Columns      []Column            `json:"columns" validate:"min=1,dive"`
	}
)

// IsFilterField reports whether `field` may be used as an equality filter.
func (d Definition) IsFilterField(field string) bool {
	for _, f := range d.FilterFields {
		if f == field {
			return true
		}
	}
	return false
}

// Registry holds the known entity definitions, keyed by kind.
type Registry struct {
	mu   sync.RWMutex
	defs map[string]Definition
}

func NewRegistry() *Registry {
	return &Registry{defs: make(map[string]Definition)}
}

// Register validates and adds (or replaces) a definition.
func (r *Registry) Register(validate *validator.Validate, defs ...Definition) error {
	for _, def := range defs {
		if err := validate.Struct(def); err != nil {
			return err
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for _, def := range defs {
		r.defs[def.Kind] = def
	}
	return nil
}

func (r *Registry) Lookup(kind string) (Definition, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	def, ok := r.defs[kind]
	if !ok {
		return Definition{}, ErrUnknownKind
	}
	return def, nil
}

// Kinds returns the registered kinds, sorted.
func (r *Registry) Kinds() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	kinds := make([]string, 0, len(r.defs))
	for kind := range r.defs {
		kinds = append(kinds, kind)
	}
	sort.Strings(kinds)
	return kinds
}

// All returns the registered definitions, sorted by kind.
func (r *Registry) All() []Definition {
	kinds := r.Kinds()

	r.mu.RLock()
	defer r.mu.RUnlock()
	defs := make([]Definition, 0, len(kinds))
	for _, kind := range kinds {
		if def, ok := r.defs[kind]; ok {
			defs = append(defs, def)
		}
	}
	return defs
}

var (
	entityKindTag  = "entitykind"
	entityKindText = "unknown entity kind"
)

// InitValidators registers the `entitykind` validation tag, which accepts the kinds held by r.
func (r *Registry) InitValidators(validate *validator.Validate, translator ut.Translator) {
	_ = validate.RegisterValidation(entityKindTag, func(fl validator.FieldLevel) bool {
		_, err := r.Lookup(fl.Field().String())
		return err == nil
	})
	core.RegisterCustomTranslation(validate, translator, entityKindTag, entityKindText)
}
