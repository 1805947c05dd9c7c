package confluence

import "testing"

func TestPlainText(t *testing.T) {
	tests := []struct {
		name  string
		in    string
		opts  TextOptions
		want  string
		trunc bool
	}{
		{
			name: "paragraphs and breaks",
			in:   `<p>Hello <strong>world</strong></p><p>Next<br/>Line</p>`,
			want: "Hello world\n\nNext\nLine",
		},
		{
			name: "list",
			in:   `<ul><li>One</li><li>Two</li></ul>`,
			want: "- One\n- Two",
		},
		{
			name: "nested list",
			in:   `<ul><li>A<ul><li>B</li></ul></li></ul>`,
			want: "- A\n  - B",
		},
		{
			name: "cdata plain text body",
			in: `<ac:plain-text-body><![CDATA[line1
line2]]></ac:plain-text-body>`,
			want: "line1\nline2",
		},
		{
			name: "links",
			in:   `<p><a href="https://ex.com">link</a></p>`,
			opts: TextOptions{Links: true},
			want: "link (https://ex.com)",
		},
		{
			name: "page reference",
			in:   `<p>See <ac:link><ri:page ri:content-title="Runbook"></ri:page></ac:link></p>`,
			want: "See Runbook",
		},
		{
			name: "entities",
			in:   `<p>a&nbsp;&amp;&nbsp;b</p>`,
			want: "a & b",
		},
		{
			name:  "truncation",
			in:    `<p>abcdefghij</p>`,
			opts:  TextOptions{MaxChars: 4},
			want:  "abcd",
			trunc: true,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, trunc, err := PlainText(tc.in, tc.opts)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tc.want {
				t.Fatalf("unexpected output:\nwant:\n%q\ngot:\n%q", tc.want, got)
			}
			if trunc != tc.trunc {
				t.Fatalf("truncated = %v, want %v", trunc, tc.trunc)
			}
		})
	}
}

func TestUnwrapCDATA(t *testing.T) {
	got := unwrapCDATA(`a<![CDATA[b]]>c<![CDATA[d]]>e<![CDATA[unterminated`)
	want := `abcde<![CDATA[unterminated`
	if got != want {
		t.Fatalf("want %q, got %q", want, got)
	}
}
