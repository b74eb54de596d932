package services

import (
	"testing"

	"github.com/arenahub/esports-ops/models"
)

func TestUniversalCapabilitySet(t *testing.T) {
	set := UniversalCapabilitySet()

	if !set.IsUniversal() {
		t.Error("IsUniversal() = false, want true")
	}
	for _, c := range AllCapabilities() {
		if !set.Has(c) {
			t.Errorf("Has(%s) = false, want true", c)
		}
	}
	if !set.HasAll(AllCapabilities()...) {
		t.Error("HasAll(all) = false, want true")
	}
	if got := len(set.List()); got != len(AllCapabilities()) {
		t.Errorf("List() has %d capabilities, want %d", got, len(AllCapabilities()))
	}
}

func TestCapabilitySet_Explicit(t *testing.T) {
	set := NewCapabilitySet(CapManageCheckin, CapExportData)

	if set.IsUniversal() {
		t.Error("IsUniversal() = true, want false")
	}
	if !set.Has(CapManageCheckin) {
		t.Error("Has(manage_checkin) = false, want true")
	}
	if set.Has(CapManageMatches) {
		t.Error("Has(manage_matches) = true, want false")
	}
	if !set.HasAny(CapManageMatches, CapExportData) {
		t.Error("HasAny(manage_matches, export_data) = false, want true")
	}
	if set.HasAll(CapManageCheckin, CapManageMatches) {
		t.Error("HasAll with missing capability = true, want false")
	}
	if !set.HasAll(CapManageCheckin, CapExportData) {
		t.Error("HasAll with granted capabilities = false, want true")
	}
}

func TestCapabilitySet_Empty(t *testing.T) {
	set := NewCapabilitySet()

	if set.IsUniversal() {
		t.Error("IsUniversal() = true, want false")
	}
	for _, c := range AllCapabilities() {
		if set.Has(c) {
			t.Errorf("Has(%s) = true, want false", c)
		}
	}
	if set.HasAny(AllCapabilities()...) {
		t.Error("HasAny(all) = true, want false")
	}
	if len(set.List()) != 0 {
		t.Errorf("List() = %v, want empty", set.List())
	}
}

func TestCapabilitySetFromRole_IgnoresDeniedEntries(t *testing.T) {
	set := capabilitySetFromRole(&models.StaffRole{
		Name: "referee",
		Capabilities: map[string]bool{
			"manage_checkin": true,
			"manage_matches": false,
		},
	})

	if !set.Has(CapManageCheckin) {
		t.Error("Has(manage_checkin) = false, want true")
	}
	if set.Has(CapManageMatches) {
		t.Error("Has(manage_matches) = true, want false: explicit false must not grant")
	}
}
