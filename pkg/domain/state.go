// © 2025 Platform Engineering Labs Inc.
//
// SPDX-License-Identifier: FSL-1.1-ALv2

// Package domain holds the CloudControl resource records and the validated
// value objects used to build requests.
package domain

import "strings"

// State is the provisioning state CloudControl reports for every resource.
type State string

const (
	StateNormal          State = "NORMAL"
	StatePendingAdd      State = "PENDING_ADD"
	StatePendingChange   State = "PENDING_CHANGE"
	StatePendingDelete   State = "PENDING_DELETE"
	StateFailedAdd       State = "FAILED_ADD"
	StateFailedChange    State = "FAILED_CHANGE"
	StateFailedDelete    State = "FAILED_DELETE"
	StateRequiresSupport State = "REQUIRES_SUPPORT"
)

// IsPending reports whether the vendor is still working on the resource.
func (s State) IsPending() bool {
	return strings.HasPrefix(string(s), "PENDING_")
}

// IsFailed reports whether the resource reached a state polling can never leave.
func (s State) IsFailed() bool {
	return strings.HasPrefix(string(s), "FAILED_") || s == StateRequiresSupport
}
