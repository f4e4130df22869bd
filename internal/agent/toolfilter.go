package agent

import "webpilot/internal/domain"

// ToolFilter applies allow/deny rules to the descriptors exposed to the
// model.
type ToolFilter struct {
	allowedTools map[string]bool // if non-empty, only these tools are allowed
	deniedTools  map[string]bool // these tools are always denied
}

// NewToolFilter creates a tool filter from allow/deny lists.
// If allowed is non-empty, only those tools are permitted.
// Denied tools are always blocked regardless of allow list.
func NewToolFilter(allowed, denied []string) *ToolFilter {
	tf := &ToolFilter{
		allowedTools: make(map[string]bool),
		deniedTools:  make(map[string]bool),
	}
	for _, t := range allowed {
		tf.allowedTools[t] = true
	}
	for _, t := range denied {
		tf.deniedTools[t] = true
	}
	return tf
}

// FilterDescriptors returns only the descriptors that pass the filter.
func (tf *ToolFilter) FilterDescriptors(descs []domain.ToolDescriptor) []domain.ToolDescriptor {
	if tf.IsEmpty() {
		return descs
	}

	filtered := make([]domain.ToolDescriptor, 0, len(descs))
	for _, d := range descs {
		if tf.IsAllowed(d.Name) {
			filtered = append(filtered, d)
		}
	}
	return filtered
}

// IsAllowed returns true if the tool name passes the filter.
func (tf *ToolFilter) IsAllowed(name string) bool {
	if tf == nil {
		return true
	}
	// Deny list always wins.
	if tf.deniedTools[name] {
		return false
	}
	// If allow list is set, tool must be in it.
	if len(tf.allowedTools) > 0 {
		return tf.allowedTools[name]
	}
	return true
}

// IsEmpty returns true if the filter has no rules.
func (tf *ToolFilter) IsEmpty() bool {
	return tf == nil || (len(tf.allowedTools) == 0 && len(tf.deniedTools) == 0)
}
