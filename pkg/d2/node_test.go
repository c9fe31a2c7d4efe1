package d2

import (
	"errors"
	"strings"
	"testing"
)

func TestContentHash(t *testing.T) {
	tests := []struct {
		source string
		want   string
	}{
		{"a -> b", "927ba019f3ae2641492c9aac3ca42ec6"},
		{"x -> y", "3b6ff574f4f6b712add4bd52c0168632"},
		{"", "d41d8cd98f00b204e9800998ecf8427e"},
	}
	for _, tt := range tests {
		if got := ContentHash([]byte(tt.source)); got != tt.want {
			t.Errorf("ContentHash(%q) = %s, want %s", tt.source, got, tt.want)
		}
	}
}

func TestDiagramHTMLSuccess(t *testing.T) {
	tests := []struct {
		name string
		svg  string
		want string
	}{
		{
			name: "plain svg",
			svg:  "<svg></svg>",
			want: `<div class="d2-diagram" data-d2-hash="927ba019f3ae2641492c9aac3ca42ec6"><svg></svg></div>`,
		},
		{
			name: "xml declaration dropped",
			svg:  "<?xml version=\"1.0\" encoding=\"utf-8\"?>\n<svg></svg>\n",
			want: `<div class="d2-diagram" data-d2-hash="927ba019f3ae2641492c9aac3ca42ec6"><svg></svg></div>`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := NewDiagram([]byte("a -> b"), []byte(tt.svg))
			if got := string(d.HTML()); got != tt.want {
				t.Errorf("HTML() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDiagramHTMLFailure(t *testing.T) {
	d := NewFailedDiagram([]byte(`a -> b: "x & y"`), errors.New("parse error"))

	if !d.Failed() {
		t.Fatal("Failed() = false")
	}
	got := string(d.HTML())
	want := "<div class=\"d2-error\">\n" +
		"<strong>D2 Diagram Error:</strong> parse error\n" +
		"<details>\n" +
		"<summary>D2 Code</summary>\n" +
		"<pre><code>a -&gt; b: &quot;x &amp; y&quot;</code></pre>\n" +
		"</details>\n" +
		"</div>"
	if got != want {
		t.Errorf("HTML() =\n%s\nwant\n%s", got, want)
	}
}

func TestDiagramKind(t *testing.T) {
	d := NewDiagram([]byte("a"), nil)
	if d.Kind() != KindDiagram {
		t.Errorf("Kind() = %v", d.Kind())
	}
	if !d.IsRaw() {
		t.Error("IsRaw() should be true")
	}
	if strings.TrimSpace(KindDiagram.String()) != "D2Diagram" {
		t.Errorf("KindDiagram = %q", KindDiagram.String())
	}
}
