package steward

// Config holds configuration for the steward engine.
type Config struct {
	// SuperPrivilegedMode lets holders of manageSystem in the system domain
	// act as admins of the domains in SuperPrivilegedDomains.
	SuperPrivilegedMode bool `json:"super_privileged_mode,omitempty"`

	// SuperPrivilegedDomains lists the domain ids eligible for the override.
	SuperPrivilegedDomains []string `json:"super_privileged_domains,omitempty"`

	// ReservedNames are qualified organization names that may not be used.
	// Matching is case-insensitive.
	ReservedNames []string `json:"reserved_names,omitempty"`

	// AdminUserName is granted every system action at startup and when an
	// account with this name is created.
	AdminUserName string `json:"admin_user_name,omitempty"`

	// SystemExtraActions are added to the built-in system domain actions.
	SystemExtraActions []string `json:"system_extra_actions,omitempty"`

	// LockStripes is the number of stripes guarding grant mutations.
	// Defaults to 16.
	LockStripes int `json:"lock_stripes,omitempty"`

	// PageSize is the page size used when scanning or draining listings.
	// Defaults to 100.
	PageSize int `json:"page_size,omitempty"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		SuperPrivilegedDomains: []string{"organization"},
		LockStripes:            16,
		PageSize:               100,
	}
}

func (c Config) lockStripes() int {
	if c.LockStripes <= 0 {
		return 16
	}
	return c.LockStripes
}

func (c Config) pageSize() int {
	if c.PageSize <= 0 {
		return 100
	}
	return c.PageSize
}
