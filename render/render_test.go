package render

import (
	"strings"
	"testing"

	"github.com/mikabele/canoe/script"
)

func sampleDoc() *script.Document {
	return &script.Document{
		Name: "greet",
		Doc:  "**asks** for a name",
		Start: &script.Step{
			Kind: "expect",
			When: "event.text == 'hi'",
			Doc:  "wait for *hi*",
			Next: &script.Step{
				Kind: "eval",
				Code: "'hello back'",
			},
		},
	}
}

func TestPageRendersMarkdownDocStrings(t *testing.T) {
	html := Page(sampleDoc())
	if !strings.Contains(html, "<strong>asks</strong>") {
		t.Fatalf("expected the scenario doc to be rendered as markdown, got: %s", html)
	}
	if !strings.Contains(html, "<em>hi</em>") {
		t.Fatalf("expected the step doc to be rendered as markdown, got: %s", html)
	}
	if !strings.Contains(html, "expect") {
		t.Fatal("expected the step kind to appear in the rendered page")
	}
}

func TestExportYAMLRoundTrips(t *testing.T) {
	doc := sampleDoc()
	bs, err := ExportYAML(doc)
	if err != nil {
		t.Fatalf("ExportYAML: %s", err)
	}

	reparsed, err := script.Parse(bs)
	if err != nil {
		t.Fatalf("script.Parse(exported): %s", err)
	}
	if reparsed.Name != doc.Name {
		t.Fatalf("got name %q, want %q", reparsed.Name, doc.Name)
	}
	if reparsed.Start == nil || reparsed.Start.When != doc.Start.When {
		t.Fatalf("got start step %+v", reparsed.Start)
	}
}
