// Package render turns a script.Document into human-readable output:
// an HTML page (tools/spec-html.go's RenderSpecHTML/RenderSpecPage,
// walking steps instead of core.Nodes) and a round-tripped YAML export.
//
// script.Parse decodes documents with the jsccast/yaml fork, which
// decodes YAML maps as map[string]interface{} the way goja wants; that
// fork doesn't marshal, so export back to YAML goes through
// gopkg.in/yaml.v2 instead.
package render

import (
	"bytes"
	"fmt"
	"io"

	md "github.com/russross/blackfriday/v2"
	yamlv2 "gopkg.in/yaml.v2"

	"github.com/mikabele/canoe/script"
)

// Page renders doc as a standalone HTML page.
func Page(doc *script.Document) string {
	var buf bytes.Buffer
	writePage(&buf, doc)
	return buf.String()
}

// WritePage renders doc as a standalone HTML page to out.
func WritePage(out io.Writer, doc *script.Document) error {
	writePage(out, doc)
	return nil
}

func writePage(out io.Writer, doc *script.Document) {
	f := func(format string, args ...interface{}) {
		fmt.Fprintf(out, format+"\n", args...)
	}

	f(`<!DOCTYPE html>`)
	f(`<meta charset="utf-8">`)
	f(`<title>%s</title>`, doc.Name)
	if doc.Doc != "" {
		f(`<div class="scenarioDoc doc">%s</div>`, md.Run([]byte(doc.Doc)))
	}

	f(`<div class="steps"><table>`)
	n := 0
	for st := doc.Start; st != nil; st, n = st.Next, n+1 {
		writeStep(f, n, st)
	}
	f(`</table></div>`)
}

func writeStep(f func(string, ...interface{}), n int, st *script.Step) {
	f(`<tr class="step"><td><span id="step-%d" class="stepKind">%d: %s</span></td><td>`, n, n, st.Kind)

	if st.Doc != "" {
		f(`<div class="stepDoc doc">%s</div>`, md.Run([]byte(st.Doc)))
	}
	if st.When != "" {
		f(`<div class="code"><pre>when: %s</pre></div>`, st.When)
	}
	if st.Code != "" {
		f(`<div class="code"><pre>%s</pre></div>`, st.Code)
	}
	if st.OnMismatch != "" {
		limit := "unbounded"
		if st.Limit != nil {
			limit = fmt.Sprintf("%d", *st.Limit)
		}
		f(`<div class="tolerate">tolerate (limit: %s): <pre>%s</pre></div>`, limit, st.OnMismatch)
	}
	if st.CancelWhen != "" {
		f(`<div class="cancellable">cancel when: <pre>%s</pre></div>`, st.CancelWhen)
	}
	if st.Seconds > 0 {
		f(`<div class="timeLimited">within %gs</div>`, st.Seconds)
	}

	f(`</td></tr>`)
}

// ExportYAML marshals doc back to YAML with gopkg.in/yaml.v2, for
// round-tripping a document that was constructed or edited in memory
// (rather than parsed with script.Parse) back to a persistable form.
func ExportYAML(doc *script.Document) ([]byte, error) {
	bs, err := yamlv2.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("render: export: %w", err)
	}
	return bs, nil
}
