package service

import (
	"sort"

	"github.com/NovWyatt/cloudflare-security-manager-sub000/internal/core/domain"
)

// Diff produces one Change per differing entry across resource settings,
// local config, and firewall rules. Identity, creation time, and
// description are ignored, so two snapshots with equal content yield an
// empty ChangeSet regardless of when or why they were taken. Pure
// function: no I/O, no mutation.
func Diff(a, b *domain.Snapshot) domain.ChangeSet {
	var changes []domain.Change

	changes = append(changes, diffMaps(a.ResourceSettings, b.ResourceSettings, domain.FieldKeySettings)...)
	changes = append(changes, diffMaps(a.LocalConfig, b.LocalConfig, domain.FieldKeyLocal)...)
	changes = append(changes, diffRules(a.FirewallRules, b.FirewallRules)...)

	sort.Slice(changes, func(i, j int) bool {
		return changes[i].Field < changes[j].Field
	})
	return domain.ChangeSet{Changes: changes}
}

func diffMaps(old, new map[string]any, fieldKey func(string) string) []domain.Change {
	var changes []domain.Change

	for k, oldVal := range old {
		newVal, ok := new[k]
		switch {
		case !ok:
			changes = append(changes, domain.Change{
				Kind: domain.ChangeRemoved, Field: fieldKey(k), OldValue: oldVal,
			})
		case !domain.EqualValues(oldVal, newVal):
			changes = append(changes, domain.Change{
				Kind: domain.ChangeModified, Field: fieldKey(k), OldValue: oldVal, NewValue: newVal,
			})
		}
	}
	for k, newVal := range new {
		if _, ok := old[k]; !ok {
			changes = append(changes, domain.Change{
				Kind: domain.ChangeAdded, Field: fieldKey(k), NewValue: newVal,
			})
		}
	}
	return changes
}

// diffRules compares rule lists by (expression, action) identity, so list
// order never produces spurious changes. A rule present on both sides with
// a differing description or priority is a single modified change.
func diffRules(old, new []domain.FirewallRule) []domain.Change {
	oldByID := rulesByIdentity(old)
	newByID := rulesByIdentity(new)

	var changes []domain.Change
	for id, oldRule := range oldByID {
		newRule, ok := newByID[id]
		switch {
		case !ok:
			changes = append(changes, domain.Change{
				Kind: domain.ChangeRemoved, Field: domain.FieldKeyRule(oldRule), OldValue: oldRule,
			})
		case oldRule != newRule:
			changes = append(changes, domain.Change{
				Kind: domain.ChangeModified, Field: domain.FieldKeyRule(oldRule), OldValue: oldRule, NewValue: newRule,
			})
		}
	}
	for id, newRule := range newByID {
		if _, ok := oldByID[id]; !ok {
			changes = append(changes, domain.Change{
				Kind: domain.ChangeAdded, Field: domain.FieldKeyRule(newRule), NewValue: newRule,
			})
		}
	}
	return changes
}

func rulesByIdentity(rules []domain.FirewallRule) map[string]domain.FirewallRule {
	out := make(map[string]domain.FirewallRule, len(rules))
	for _, r := range rules {
		out[r.Identity()] = r
	}
	return out
}
