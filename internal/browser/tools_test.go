package browser

import "testing"

func TestTabRefFingerprint(t *testing.T) {
	a := TabRef{TabID: "t1", URL: "https://example.com"}
	b := TabRef{TabID: "t1", URL: "https://example.com/login"}
	c := TabRef{TabID: "t2", URL: "https://example.com"}

	if a.Fingerprint() == b.Fingerprint() {
		t.Fatal("fingerprint unchanged after navigation")
	}
	if a.Fingerprint() == c.Fingerprint() {
		t.Fatal("fingerprint unchanged across tabs")
	}
	if a.Fingerprint() != (TabRef{TabID: "t1", URL: "https://example.com"}).Fingerprint() {
		t.Fatal("fingerprint not stable for an identical ref")
	}
}

func TestRefSelector(t *testing.T) {
	if got := refSelector("7"); got != `[data-wp-ref="7"]` {
		t.Fatalf("refSelector = %q", got)
	}
}

func TestArgString(t *testing.T) {
	args := map[string]any{
		"s": "hello",
		"f": float64(12),
		"i": 3,
		"b": true,
	}
	if got := argString(args, "s"); got != "hello" {
		t.Fatalf("string arg = %q", got)
	}
	// JSON numbers decode as float64; refs arrive that way.
	if got := argString(args, "f"); got != "12" {
		t.Fatalf("float arg = %q", got)
	}
	if got := argString(args, "i"); got != "3" {
		t.Fatalf("int arg = %q", got)
	}
	if got := argString(args, "b"); got != "" {
		t.Fatalf("bool arg = %q, want empty", got)
	}
	if got := argString(args, "missing"); got != "" {
		t.Fatalf("missing arg = %q, want empty", got)
	}
}

func TestToolset_DescriptorsComplete(t *testing.T) {
	tools := Toolset(nil, "")
	want := map[string]bool{
		"navigate": true, "discover_page": true, "click": true, "type_text": true,
		"submit": true, "screenshot": true, "switch_tab": true, "list_tabs": true,
		"new_tab": true, "back": true,
	}
	if len(tools) != len(want) {
		t.Fatalf("toolset has %d tools, want %d", len(tools), len(want))
	}
	for _, tool := range tools {
		desc := tool.Descriptor()
		if !want[desc.Name] {
			t.Fatalf("unexpected tool %q", desc.Name)
		}
		if desc.Description == "" {
			t.Fatalf("tool %q has no description", desc.Name)
		}
		delete(want, desc.Name)
	}
}
