package gatekit

// Checker is a point-in-time snapshot of one identity's standing within an
// account: its active role memberships and, when the identity is itself an
// account, its held capabilities. It is typically created by the Service
// and stored in context for use in handlers.
//
// A Checker does not observe later grants or revocations; rebuild it per
// request.
type Checker struct {
	identity string
	account  string
	roles    map[string]bool
	caps     map[string]*CapabilityRecord
}

// NewChecker creates a Checker from loaded state. Role names map to active
// memberships; caps maps capability kind to the held record.
func NewChecker(identity, account string, roles []string, caps []CapabilityRecord) *Checker {
	c := &Checker{
		identity: identity,
		account:  account,
		roles:    make(map[string]bool, len(roles)),
		caps:     make(map[string]*CapabilityRecord, len(caps)),
	}
	for _, role := range roles {
		c.roles[role] = true
	}
	for i := range caps {
		c.caps[caps[i].Kind] = &caps[i]
	}
	return c
}

// Identity returns the identity this checker is for.
func (c *Checker) Identity() string {
	return c.identity
}

// Account returns the owning account the snapshot was taken against.
func (c *Checker) Account() string {
	return c.account
}

// HasRole checks if the identity holds a role in the account.
//
// Example:
//
//	if checker.HasRole("operator") {
//	    // identity is an operator on this account
//	}
func (c *Checker) HasRole(role string) bool {
	return c.roles[role]
}

// HasAnyRole checks if the identity holds any of the given roles.
func (c *Checker) HasAnyRole(roles ...string) bool {
	for _, role := range roles {
		if c.roles[role] {
			return true
		}
	}
	return false
}

// HasAllRoles checks if the identity holds all of the given roles.
func (c *Checker) HasAllRoles(roles ...string) bool {
	for _, role := range roles {
		if !c.roles[role] {
			return false
		}
	}
	return true
}

// IsAdmin checks if the identity holds the account's root admin role.
func (c *Checker) IsAdmin() bool {
	return c.roles[DefaultAdminRole]
}

// Roles returns the active role names in the snapshot.
func (c *Checker) Roles() []string {
	names := make([]string, 0, len(c.roles))
	for role := range c.roles {
		names = append(names, role)
	}
	return names
}

// HasCapability checks if the identity's account holds a capability kind.
func (c *Checker) HasCapability(kind string) bool {
	_, ok := c.caps[kind]
	return ok
}

// CanDelegate checks if the held capability may be re-delegated. False when
// the capability is absent or was itself received by delegation.
func (c *Checker) CanDelegate(kind string) bool {
	rec, ok := c.caps[kind]
	return ok && rec.CanDelegate
}

// Capability returns the held record for a kind, or nil if absent.
func (c *Checker) Capability(kind string) *CapabilityRecord {
	return c.caps[kind]
}

// DelegationChain returns the provenance chain of a held capability, oldest
// delegator first. Nil when the capability is absent or directly granted.
func (c *Checker) DelegationChain(kind string) []string {
	rec, ok := c.caps[kind]
	if !ok {
		return nil
	}
	return append([]string(nil), rec.DelegationChain...)
}

// IsEmpty returns true if the snapshot holds no roles and no capabilities.
func (c *Checker) IsEmpty() bool {
	return len(c.roles) == 0 && len(c.caps) == 0
}
