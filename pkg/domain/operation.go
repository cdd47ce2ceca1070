// © 2025 Platform Engineering Labs Inc.
//
// SPDX-License-Identifier: FSL-1.1-ALv2

package domain

// Response codes returned in the operation envelope.
const (
	ResponseCodeOK         = "OK"
	ResponseCodeInProgress = "IN_PROGRESS"
)

// Property is a name/value pair from the info, warning or error lists.
type Property struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Operation is the envelope CloudControl returns for every mutating call.
// The vendor keeps working on the target after the call returns; the info
// list carries the id needed to correlate later polls.
type Operation struct {
	Operation    string     `json:"operation"`
	ResponseCode string     `json:"responseCode"`
	Message      string     `json:"message"`
	Info         []Property `json:"info,omitempty"`
	Warning      []Property `json:"warning,omitempty"`
	Error        []Property `json:"error,omitempty"`
	RequestID    string     `json:"requestId"`
}

// InfoValue returns the value of the named info entry, or "" when absent.
func (o *Operation) InfoValue(name string) string {
	if o == nil {
		return ""
	}
	for _, p := range o.Info {
		if p.Name == name {
			return p.Value
		}
	}
	return ""
}

// Accepted reports whether the vendor accepted the request.
func (o *Operation) Accepted() bool {
	return o != nil && (o.ResponseCode == ResponseCodeOK || o.ResponseCode == ResponseCodeInProgress)
}
