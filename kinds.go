package gatekit

import (
	"encoding/json"
	"sync"
)

// KindRegistry holds all capability kind definitions for the application.
// It is created at startup and should be treated as immutable after
// initialization. Grants and delegations validate their kind and payload
// against it, which makes the persisted payload column a typed store keyed
// by (account, kind).
type KindRegistry struct {
	mu    sync.RWMutex
	kinds map[string]*KindDefinition
}

// KindDefinition defines one capability kind: a type tag plus an optional
// payload validator for the data persisted alongside grants of that kind.
type KindDefinition struct {
	name        string
	description string
	validate    func(payload []byte) error
	registry    *KindRegistry
}

// NewKindRegistry creates a new capability kind registry.
func NewKindRegistry() *KindRegistry {
	return &KindRegistry{
		kinds: make(map[string]*KindDefinition),
	}
}

// Define starts defining a new capability kind.
// Returns a KindDefinition builder for fluent configuration.
//
// Example:
//
//	kinds.Define("mint").
//	    Description("allows minting new assets").
//	    PayloadValidator(validateMintPayload).
//	    Define("withdraw").
//	    Description("allows withdrawing funds")
func (r *KindRegistry) Define(name string) *KindDefinition {
	r.mu.Lock()
	defer r.mu.Unlock()

	kind := &KindDefinition{
		name:     name,
		registry: r,
	}
	r.kinds[name] = kind
	return kind
}

// Get returns the kind definition, or nil if the kind is not defined.
func (r *KindRegistry) Get(name string) *KindDefinition {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.kinds[name]
}

// Kinds returns all defined kind names.
func (r *KindRegistry) Kinds() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.kinds))
	for name := range r.kinds {
		names = append(names, name)
	}
	return names
}

// Validate checks that a kind is defined and that the payload passes the
// kind's validator, if any.
func (r *KindRegistry) Validate(kind string, payload []byte) error {
	r.mu.RLock()
	def, exists := r.kinds[kind]
	r.mu.RUnlock()

	if !exists {
		return NewError(ErrInvalidArgument, "capability kind not defined").WithKind(kind)
	}
	if def.validate != nil {
		if err := def.validate(payload); err != nil {
			return NewError(ErrInvalidArgument, "invalid capability payload: "+err.Error()).WithKind(kind)
		}
	}
	return nil
}

// Description sets a human-readable description for this kind.
func (d *KindDefinition) Description(desc string) *KindDefinition {
	d.description = desc
	return d
}

// PayloadValidator sets the validator run against grant and delegation
// payloads of this kind. The payload is the JSON encoding of the value
// passed to GrantCapability/DelegateCapability.
func (d *KindDefinition) PayloadValidator(fn func(payload []byte) error) *KindDefinition {
	d.validate = fn
	return d
}

// Define continues defining kinds on the registry (fluent API).
func (d *KindDefinition) Define(name string) *KindDefinition {
	return d.registry.Define(name)
}

// Name returns the kind name.
func (d *KindDefinition) Name() string {
	return d.name
}

// GetDescription returns the kind description.
func (d *KindDefinition) GetDescription() string {
	return d.description
}

// EncodePayload encodes a capability payload for persistence. A nil value
// encodes to nil, not to JSON null.
func EncodePayload(v any) ([]byte, error) {
	if v == nil {
		return nil, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, NewError(ErrInvalidArgument, "payload not encodable: "+err.Error())
	}
	return data, nil
}

// DecodePayload decodes a capability record's payload into T.
//
// Example:
//
//	limits, err := gatekit.DecodePayload[WithdrawLimits](rec)
func DecodePayload[T any](rec *CapabilityRecord) (T, error) {
	var v T
	if rec == nil || len(rec.Payload) == 0 {
		return v, NewError(ErrNotFound, "capability record has no payload")
	}
	if err := json.Unmarshal(rec.Payload, &v); err != nil {
		return v, NewError(ErrInvalidArgument, "payload not decodable: "+err.Error()).WithKind(rec.Kind)
	}
	return v, nil
}
