package store

import (
	"math"

	"github.com/llehouerou/noticed/internal/notification"
)

// Rule adjusts matching notifications before they are stored.
// Nil predicates match anything; nil effects leave the field alone.
type Rule struct {
	Name string

	App      *string
	Summary  *string
	Body     *string
	Category *string
	Urgency  *uint8

	NoPopup         *bool
	Silent          *bool
	ForceUrgency    *uint8
	ExpireTimeoutMs *int64
	Resident        *bool
	Transient       *bool
}

// Matches reports whether every predicate of r holds for n.
func (r *Rule) Matches(n *notification.Notification) bool {
	if r.App != nil && !containsFold(n.AppName, *r.App) {
		return false
	}
	if r.Summary != nil && !containsFold(n.Summary, *r.Summary) {
		return false
	}
	if r.Body != nil && !containsFold(n.Body, *r.Body) {
		return false
	}
	if r.Category != nil && (n.Category == "" || !containsFold(n.Category, *r.Category)) {
		return false
	}
	if r.Urgency != nil && uint8(n.Urgency) != *r.Urgency {
		return false
	}
	return true
}

// Apply writes the effects of r into n.
func (r *Rule) Apply(n *notification.Notification) {
	if r.NoPopup != nil {
		n.SuppressPopup = *r.NoPopup
	}
	if r.Silent != nil {
		n.SuppressSound = *r.Silent
	}
	if r.ForceUrgency != nil {
		n.Urgency = notification.UrgencyFromLevel(uint32(*r.ForceUrgency))
	}
	if r.ExpireTimeoutMs != nil {
		n.ExpireTimeout = int32(min(max(*r.ExpireTimeoutMs, math.MinInt32), math.MaxInt32))
	}
	if r.Resident != nil {
		n.Resident = *r.Resident
	}
	if r.Transient != nil {
		n.Transient = *r.Transient
	}
}

// applyRules applies every matching rule in order; later rules win per field.
func applyRules(rules []Rule, n *notification.Notification) {
	for i := range rules {
		if rules[i].Matches(n) {
			rules[i].Apply(n)
		}
	}
}

// containsFold is an ASCII case-insensitive substring test.
// An empty needle always matches.
func containsFold(haystack, needle string) bool {
	if needle == "" {
		return true
	}
	if len(needle) > len(haystack) {
		return false
	}
	for i := 0; i+len(needle) <= len(haystack); i++ {
		matched := true
		for j := 0; j < len(needle); j++ {
			if lowerASCII(haystack[i+j]) != lowerASCII(needle[j]) {
				matched = false
				break
			}
		}
		if matched {
			return true
		}
	}
	return false
}

func lowerASCII(b byte) byte {
	if 'A' <= b && b <= 'Z' {
		return b + ('a' - 'A')
	}
	return b
}
