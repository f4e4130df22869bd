package agent

import "testing"

func TestExtractToolCalls_PureJSON(t *testing.T) {
	calls := extractToolCallsFromContent(`{"name":"navigate","arguments":{"url":"https://example.com"}}`)
	if len(calls) != 1 {
		t.Fatalf("got %d calls, want 1", len(calls))
	}
	if calls[0].Name != "navigate" {
		t.Fatalf("name = %q", calls[0].Name)
	}
	if calls[0].Arguments["url"] != "https://example.com" {
		t.Fatalf("arguments = %v", calls[0].Arguments)
	}
}

func TestExtractToolCalls_CodeFenced(t *testing.T) {
	content := "```json\n{\"name\":\"click\",\"arguments\":{\"ref\":3}}\n```"
	calls := extractToolCallsFromContent(content)
	if len(calls) != 1 || calls[0].Name != "click" {
		t.Fatalf("calls = %+v", calls)
	}
}

func TestExtractToolCalls_PrefixAndSuffixText(t *testing.T) {
	content := "assistant\n{\"name\":\"discover_page\",\"arguments\":{}}\n\nI'll scan the page now."
	calls := extractToolCallsFromContent(content)
	if len(calls) != 1 || calls[0].Name != "discover_page" {
		t.Fatalf("calls = %+v", calls)
	}
}

func TestExtractToolCalls_ParametersKey(t *testing.T) {
	calls := extractToolCallsFromContent(`{"name":"type_text","parameters":{"ref":2,"text":"hello"}}`)
	if len(calls) != 1 {
		t.Fatalf("got %d calls, want 1", len(calls))
	}
	if calls[0].Arguments["text"] != "hello" {
		t.Fatalf("arguments = %v", calls[0].Arguments)
	}
}

func TestExtractToolCalls_Array(t *testing.T) {
	content := `[{"name":"navigate","arguments":{"url":"a"}},{"name":"discover_page","arguments":{}}]`
	calls := extractToolCallsFromContent(content)
	if len(calls) != 2 {
		t.Fatalf("got %d calls, want 2", len(calls))
	}
	if calls[0].Name != "navigate" || calls[1].Name != "discover_page" {
		t.Fatalf("calls = %+v", calls)
	}
}

func TestExtractToolCalls_PlainProse(t *testing.T) {
	if calls := extractToolCallsFromContent("I navigated to the page and found three links."); calls != nil {
		t.Fatalf("prose produced calls: %+v", calls)
	}
}

func TestExtractToolCalls_InvalidEscapeRecovered(t *testing.T) {
	// \% is not a valid JSON escape; some models emit it anyway.
	calls := extractToolCallsFromContent(`{"name":"type_text","arguments":{"text":"100\% done"}}`)
	if len(calls) != 1 {
		t.Fatalf("got %d calls, want 1", len(calls))
	}
	if calls[0].Arguments["text"] != "100% done" {
		t.Fatalf("text = %q", calls[0].Arguments["text"])
	}
}

func TestNormalizeToolName(t *testing.T) {
	cases := map[string]string{
		"DiscoverPage":  "discover_page",
		"discover-page": "discover_page",
		"type":          "type_text",
		"TypeText":      "type_text",
		"switch-tab":    "switch_tab",
		"go_back":       "back",
		"goto":          "navigate",
		"open":          "navigate",
		"navigate":      "navigate",
		"screenshot":    "screenshot",
	}
	for in, want := range cases {
		if got := normalizeToolName(in); got != want {
			t.Fatalf("normalizeToolName(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestStripRolePrefix(t *testing.T) {
	cases := map[string]string{
		"assistant\nHello":  "Hello",
		"Assistant: Hello":  "Hello",
		"Hello there":       "Hello there",
		"assistant's tools": "assistant's tools",
	}
	for in, want := range cases {
		if got := stripRolePrefix(in); got != want {
			t.Fatalf("stripRolePrefix(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestFindJSONBounds_IgnoresBracesInStrings(t *testing.T) {
	s := `note {"name":"x","arguments":{"v":"a } b"}} tail`
	start, end := findJSONBounds(s)
	if start != 5 {
		t.Fatalf("start = %d, want 5", start)
	}
	if s[end-1] != '}' || end != len(s)-5 {
		t.Fatalf("end = %d", end)
	}
}
