package permission

// SystemDomainID identifies the instance-less system domain.
const SystemDomainID = "system"

// System domain actions.
const (
	ManageSystem  = "manageSystem"
	ManageUsers   = "manageUsers"
	MonitorSystem = "monitorSystem"
)

// SystemDomain returns the system domain with the built-in actions plus any
// deployment-specific extras.
func SystemDomain(extraActions ...string) *Domain {
	actions := []string{ManageSystem, ManageUsers, MonitorSystem}
	actions = append(actions, extraActions...)
	return NewDomain(SystemDomainID, actions, false)
}
