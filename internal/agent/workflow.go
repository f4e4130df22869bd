package agent

import "fmt"

// interactiveTools act on specific elements and normally need a preceding
// page discovery to locate them.
var interactiveTools = map[string]bool{
	"click":     true,
	"type_text": true,
	"submit":    true,
}

// discoveryTools establish what is on the page.
var discoveryTools = map[string]bool{
	"discover_page": true,
	"screenshot":    true,
}

// recentWindow is how many recent calls are inspected when checking whether
// an interactive tool was preceded by discovery.
const recentWindow = 5

// CheckWorkflow inspects the recent call history before an invocation of
// tool and returns a human-readable warning when the sequence looks
// unreliable. An empty string means no concern. Warnings never block the
// call.
func CheckWorkflow(tool string, recent []CallRecord) string {
	if !interactiveTools[tool] {
		return ""
	}
	for _, rec := range recent {
		if discoveryTools[rec.Tool] {
			return ""
		}
	}
	return fmt.Sprintf("%s called without a recent page discovery; element refs may be stale", tool)
}
