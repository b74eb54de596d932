package services

import "github.com/arenahub/esports-ops/models"

// Capability — именованный флаг права на одну категорию привилегированных
// действий в рамках турнира.
type Capability string

const (
	CapManageCheckin       Capability = "manage_checkin"
	CapManageMatches       Capability = "manage_matches"
	CapResolveDisputes     Capability = "resolve_disputes"
	CapManageStaff         Capability = "manage_staff"
	CapManageRegistrations Capability = "manage_registrations"
	CapApprovePayments     Capability = "approve_payments"
	CapExportData          Capability = "export_data"
)

// AllCapabilities перечисляет все известные способности.
func AllCapabilities() []Capability {
	return []Capability{
		CapManageCheckin,
		CapManageMatches,
		CapResolveDisputes,
		CapManageStaff,
		CapManageRegistrations,
		CapApprovePayments,
		CapExportData,
	}
}

// CapabilitySet — результат разрешения прав для пары (турнир, актор).
// Флаг all ставится организатору и админу: любой запрос к такому набору
// отвечает true, независимо от содержимого карты.
type CapabilitySet struct {
	all  bool
	caps map[Capability]bool
}

// UniversalCapabilitySet — набор организатора/суперпользователя.
func UniversalCapabilitySet() CapabilitySet {
	return CapabilitySet{all: true}
}

// NewCapabilitySet строит набор из явного списка способностей.
func NewCapabilitySet(caps ...Capability) CapabilitySet {
	set := CapabilitySet{caps: make(map[Capability]bool, len(caps))}
	for _, c := range caps {
		set.caps[c] = true
	}
	return set
}

// capabilitySetFromRole берёт из JSON-карты роли только ключи со значением
// true. Вариант CapabilityRole полиморфной роли.
func capabilitySetFromRole(role *models.StaffRole) CapabilitySet {
	set := CapabilitySet{caps: make(map[Capability]bool, len(role.Capabilities))}
	for name, granted := range role.Capabilities {
		if granted {
			set.caps[Capability(name)] = true
		}
	}
	return set
}

// capabilitySetFromLegacy поднимает плоский список прав старой модели до
// набора способностей. Вариант LegacyRole полиморфной роли.
func capabilitySetFromLegacy(permissions []string) CapabilitySet {
	set := CapabilitySet{caps: make(map[Capability]bool, len(permissions))}
	for _, p := range permissions {
		set.caps[Capability(p)] = true
	}
	return set
}

// IsUniversal сообщает, принадлежит ли набор организатору/суперпользователю.
func (s CapabilitySet) IsUniversal() bool {
	return s.all
}

func (s CapabilitySet) Has(c Capability) bool {
	if s.all {
		return true
	}
	return s.caps[c]
}

func (s CapabilitySet) HasAny(caps ...Capability) bool {
	if s.all {
		return true
	}
	for _, c := range caps {
		if s.caps[c] {
			return true
		}
	}
	return false
}

func (s CapabilitySet) HasAll(caps ...Capability) bool {
	if s.all {
		return true
	}
	for _, c := range caps {
		if !s.caps[c] {
			return false
		}
	}
	return true
}

// List возвращает способности набора; для универсального набора — полный
// список известных (для отображения в админке).
func (s CapabilitySet) List() []Capability {
	if s.all {
		return AllCapabilities()
	}
	result := make([]Capability, 0, len(s.caps))
	for c := range s.caps {
		result = append(result, c)
	}
	return result
}
