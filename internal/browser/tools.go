package browser

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/chromedp/chromedp"

	"webpilot/internal/domain"
)

// discoverScript tags interactive elements with data-wp-ref attributes and
// returns their inventory. Refs stay valid until the next navigation.
const discoverScript = `
(function() {
	var sel = 'a[href], button, input, select, textarea, [role="button"], [onclick]';
	var nodes = document.querySelectorAll(sel);
	var out = [];
	var n = 0;
	for (var i = 0; i < nodes.length && n < 150; i++) {
		var el = nodes[i];
		var r = el.getBoundingClientRect();
		if (r.width === 0 && r.height === 0) continue;
		n++;
		el.setAttribute('data-wp-ref', String(n));
		var text = (el.innerText || el.value || el.placeholder || '').trim().slice(0, 80);
		out.push({
			ref: n,
			tag: el.tagName.toLowerCase(),
			type: el.getAttribute('type') || '',
			text: text,
			name: el.getAttribute('name') || '',
			href: el.getAttribute('href') || ''
		});
	}
	return {
		title: document.title,
		url: location.href,
		elements: out
	};
})()
`

// elementInfo is one entry of a page discovery result.
type elementInfo struct {
	Ref  int    `json:"ref"`
	Tag  string `json:"tag"`
	Type string `json:"type,omitempty"`
	Text string `json:"text,omitempty"`
	Name string `json:"name,omitempty"`
	Href string `json:"href,omitempty"`
}

type pageInfo struct {
	Title    string        `json:"title"`
	URL      string        `json:"url"`
	Elements []elementInfo `json:"elements"`
}

// tabInfo is one entry of a list_tabs result.
type tabInfo struct {
	Index  int    `json:"index"`
	ID     string `json:"id"`
	URL    string `json:"url"`
	Active bool   `json:"active"`
}

func refSelector(ref string) string {
	return fmt.Sprintf(`[data-wp-ref="%s"]`, ref)
}

// NavigateTool loads a URL in the active tab.
type NavigateTool struct{ Bridge *Bridge }

func (t *NavigateTool) Descriptor() domain.ToolDescriptor {
	return domain.ToolDescriptor{
		Name:        "navigate",
		Description: "Load a URL in the active browser tab",
		Params: []domain.ParamSpec{
			{Name: "url", Type: domain.ParamString, Description: "Absolute URL to open"},
		},
	}
}

func (t *NavigateTool) Execute(ctx context.Context, args map[string]any, ref domain.ContextRef) domain.ToolResult {
	url, _ := args["url"].(string)
	tab := t.Bridge.tabByRef(ref)
	if tab == nil {
		return domain.Failf("no browser tab available")
	}

	end := t.Bridge.beginToolNavigation()
	defer end()

	err := t.Bridge.run(ctx, tab,
		chromedp.Navigate(url),
		chromedp.WaitReady("body"),
	)
	if err != nil {
		return domain.Failf("navigate to %s: %v", url, err)
	}
	tab.setURL(url)
	return domain.Succeed(fmt.Sprintf("Loaded %s", url))
}

// DiscoverPageTool inventories the interactive elements of the current page.
type DiscoverPageTool struct{ Bridge *Bridge }

func (t *DiscoverPageTool) Descriptor() domain.ToolDescriptor {
	return domain.ToolDescriptor{
		Name:        "discover_page",
		Description: "List the page title, URL and interactive elements with refs usable by click and type_text",
	}
}

func (t *DiscoverPageTool) Execute(ctx context.Context, args map[string]any, ref domain.ContextRef) domain.ToolResult {
	tab := t.Bridge.tabByRef(ref)
	if tab == nil {
		return domain.Failf("no browser tab available")
	}

	var info pageInfo
	if err := t.Bridge.run(ctx, tab, chromedp.Evaluate(discoverScript, &info)); err != nil {
		return domain.Failf("discover page: %v", err)
	}
	tab.setURL(info.URL)
	return domain.SucceedWith(info)
}

// ClickTool clicks an element by its discover ref.
type ClickTool struct{ Bridge *Bridge }

func (t *ClickTool) Descriptor() domain.ToolDescriptor {
	return domain.ToolDescriptor{
		Name:        "click",
		Description: "Click an element identified by a ref from discover_page",
		Params: []domain.ParamSpec{
			{Name: "ref", Type: domain.ParamString, Description: "Element ref from the last discover_page"},
		},
	}
}

func (t *ClickTool) Execute(ctx context.Context, args map[string]any, ref domain.ContextRef) domain.ToolResult {
	elRef := argString(args, "ref")
	tab := t.Bridge.tabByRef(ref)
	if tab == nil {
		return domain.Failf("no browser tab available")
	}

	end := t.Bridge.beginToolNavigation()
	defer end()

	sel := refSelector(elRef)
	err := t.Bridge.run(ctx, tab,
		chromedp.WaitVisible(sel, chromedp.ByQuery),
		chromedp.Click(sel, chromedp.ByQuery),
	)
	if err != nil {
		return domain.Failf("click element %s: %v (run discover_page to refresh refs)", elRef, err)
	}
	return domain.Succeed(fmt.Sprintf("Clicked element %s", elRef))
}

// TypeTextTool types into an input or textarea.
type TypeTextTool struct{ Bridge *Bridge }

func (t *TypeTextTool) Descriptor() domain.ToolDescriptor {
	return domain.ToolDescriptor{
		Name:        "type_text",
		Description: "Type text into an input element identified by a ref from discover_page",
		Params: []domain.ParamSpec{
			{Name: "ref", Type: domain.ParamString, Description: "Element ref from the last discover_page"},
			{Name: "text", Type: domain.ParamString, Description: "Text to type"},
			{Name: "clear", Type: domain.ParamBoolean, Description: "Clear the field first", Optional: true},
		},
	}
}

func (t *TypeTextTool) Execute(ctx context.Context, args map[string]any, ref domain.ContextRef) domain.ToolResult {
	elRef := argString(args, "ref")
	text, _ := args["text"].(string)
	clear, _ := args["clear"].(bool)

	tab := t.Bridge.tabByRef(ref)
	if tab == nil {
		return domain.Failf("no browser tab available")
	}

	sel := refSelector(elRef)
	actions := []chromedp.Action{
		chromedp.WaitVisible(sel, chromedp.ByQuery),
		chromedp.Click(sel, chromedp.ByQuery),
	}
	if clear {
		actions = append(actions, chromedp.Clear(sel, chromedp.ByQuery))
	}
	actions = append(actions, chromedp.SendKeys(sel, text, chromedp.ByQuery))

	if err := t.Bridge.run(ctx, tab, actions...); err != nil {
		return domain.Failf("type into element %s: %v", elRef, err)
	}
	return domain.Succeed(fmt.Sprintf("Typed %d characters into element %s", len(text), elRef))
}

// SubmitTool submits the form containing an element, or presses Enter in it.
type SubmitTool struct{ Bridge *Bridge }

func (t *SubmitTool) Descriptor() domain.ToolDescriptor {
	return domain.ToolDescriptor{
		Name:        "submit",
		Description: "Submit the form containing the element, equivalent to pressing Enter in it",
		Params: []domain.ParamSpec{
			{Name: "ref", Type: domain.ParamString, Description: "Element ref from the last discover_page"},
		},
	}
}

func (t *SubmitTool) Execute(ctx context.Context, args map[string]any, ref domain.ContextRef) domain.ToolResult {
	elRef := argString(args, "ref")
	tab := t.Bridge.tabByRef(ref)
	if tab == nil {
		return domain.Failf("no browser tab available")
	}

	end := t.Bridge.beginToolNavigation()
	defer end()

	sel := refSelector(elRef)
	err := t.Bridge.run(ctx, tab,
		chromedp.WaitVisible(sel, chromedp.ByQuery),
		chromedp.SendKeys(sel, "\r", chromedp.ByQuery),
	)
	if err != nil {
		return domain.Failf("submit via element %s: %v", elRef, err)
	}
	return domain.Succeed(fmt.Sprintf("Submitted via element %s", elRef))
}

// ScreenshotTool captures the visible viewport to a PNG file.
type ScreenshotTool struct {
	Bridge *Bridge
	Dir    string // output directory, defaults to the OS temp dir
}

func (t *ScreenshotTool) Descriptor() domain.ToolDescriptor {
	return domain.ToolDescriptor{
		Name:        "screenshot",
		Description: "Capture the visible page to a PNG file and return its path",
	}
}

func (t *ScreenshotTool) Execute(ctx context.Context, args map[string]any, ref domain.ContextRef) domain.ToolResult {
	tab := t.Bridge.tabByRef(ref)
	if tab == nil {
		return domain.Failf("no browser tab available")
	}

	var buf []byte
	if err := t.Bridge.run(ctx, tab, chromedp.CaptureScreenshot(&buf)); err != nil {
		return domain.Failf("capture screenshot: %v", err)
	}

	dir := t.Dir
	if dir == "" {
		dir = os.TempDir()
	}
	path := filepath.Join(dir, fmt.Sprintf("webpilot-%d.png", time.Now().UnixMilli()))
	if err := os.WriteFile(path, buf, 0o644); err != nil {
		return domain.Failf("write screenshot: %v", err)
	}
	return domain.SucceedWith(map[string]any{"path": path, "bytes": len(buf)})
}

// SwitchTabTool changes the active tab.
type SwitchTabTool struct{ Bridge *Bridge }

func (t *SwitchTabTool) Descriptor() domain.ToolDescriptor {
	return domain.ToolDescriptor{
		Name:        "switch_tab",
		Description: "Make another open tab the active one",
		Params: []domain.ParamSpec{
			{Name: "tab", Type: domain.ParamString, Description: "Tab index from list_tabs, or tab id"},
		},
	}
}

func (t *SwitchTabTool) Execute(ctx context.Context, args map[string]any, ref domain.ContextRef) domain.ToolResult {
	id := argString(args, "tab")
	tab, err := t.Bridge.SwitchTo(id)
	if err != nil {
		return domain.Failf("switch tab: %v", err)
	}
	return domain.Succeed(fmt.Sprintf("Switched to tab %s (%s)", id, tab.URL()))
}

// ListTabsTool lists the open tabs.
type ListTabsTool struct{ Bridge *Bridge }

func (t *ListTabsTool) Descriptor() domain.ToolDescriptor {
	return domain.ToolDescriptor{
		Name:        "list_tabs",
		Description: "List open browser tabs with their index, id and URL",
	}
}

func (t *ListTabsTool) Execute(ctx context.Context, args map[string]any, ref domain.ContextRef) domain.ToolResult {
	active := t.Bridge.ActiveTab()
	var out []tabInfo
	for i, tab := range t.Bridge.Tabs() {
		out = append(out, tabInfo{
			Index:  i + 1,
			ID:     tab.ID,
			URL:    tab.URL(),
			Active: active != nil && tab.ID == active.ID,
		})
	}
	return domain.SucceedWith(out)
}

// NewTabTool opens a fresh tab and makes it active.
type NewTabTool struct{ Bridge *Bridge }

func (t *NewTabTool) Descriptor() domain.ToolDescriptor {
	return domain.ToolDescriptor{
		Name:        "new_tab",
		Description: "Open a new empty tab and make it active",
	}
}

func (t *NewTabTool) Execute(ctx context.Context, args map[string]any, ref domain.ContextRef) domain.ToolResult {
	tab, err := t.Bridge.NewTab()
	if err != nil {
		return domain.Failf("open tab: %v", err)
	}
	return domain.Succeed(fmt.Sprintf("Opened tab %s", tab.ID))
}

// BackTool goes back one entry in the active tab's history.
type BackTool struct{ Bridge *Bridge }

func (t *BackTool) Descriptor() domain.ToolDescriptor {
	return domain.ToolDescriptor{
		Name:        "back",
		Description: "Go back one page in the active tab's history",
	}
}

func (t *BackTool) Execute(ctx context.Context, args map[string]any, ref domain.ContextRef) domain.ToolResult {
	tab := t.Bridge.tabByRef(ref)
	if tab == nil {
		return domain.Failf("no browser tab available")
	}

	end := t.Bridge.beginToolNavigation()
	defer end()

	err := t.Bridge.run(ctx, tab,
		chromedp.NavigateBack(),
		chromedp.WaitReady("body"),
	)
	if err != nil {
		return domain.Failf("navigate back: %v", err)
	}
	return domain.Succeed("Went back one page")
}

// argString reads a string argument, accepting numbers for ref-like values.
func argString(args map[string]any, key string) string {
	switch v := args[key].(type) {
	case string:
		return v
	case float64:
		return fmt.Sprintf("%.0f", v)
	case int:
		return fmt.Sprintf("%d", v)
	default:
		return ""
	}
}

// Toolset returns the full browser toolset, ready to register.
func Toolset(b *Bridge, screenshotDir string) []domain.Tool {
	return []domain.Tool{
		&NavigateTool{Bridge: b},
		&DiscoverPageTool{Bridge: b},
		&ClickTool{Bridge: b},
		&TypeTextTool{Bridge: b},
		&SubmitTool{Bridge: b},
		&ScreenshotTool{Bridge: b, Dir: screenshotDir},
		&SwitchTabTool{Bridge: b},
		&ListTabsTool{Bridge: b},
		&NewTabTool{Bridge: b},
		&BackTool{Bridge: b},
	}
}
