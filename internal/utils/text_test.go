package utils

import "testing"

func TestStripHTML(t *testing.T) {
	cases := map[string]string{
		"":                                   "",
		"  plain text  ":                     "plain text",
		"<p>Hello <b>world</b></p>":          "Hello world",
		"a &lt;tag&gt; &amp; &quot;q&quot;":  `a <tag> & "q"`,
		"it&#39;s&nbsp;fine":                 "it's fine",
		"&amp;lt;kept&amp;gt;":               "&lt;kept&gt;",
		"<div class=\"x\">\n  body\n</div>":  "body",
	}
	for in, want := range cases {
		if got := StripHTML(in); got != want {
			t.Fatalf("StripHTML(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestTruncateCountsRunes(t *testing.T) {
	s, cut := Truncate("héllo wörld", 5)
	if !cut || s != "héllo" {
		t.Fatalf("unexpected truncate result: %q %v", s, cut)
	}
	s, cut = Truncate("short", 10)
	if cut || s != "short" {
		t.Fatalf("expected no truncation, got %q %v", s, cut)
	}
}

func TestCapitalizeAndPeriod(t *testing.T) {
	if got := EnsurePeriod(CapitalizeFirst("app crashes")); got != "App crashes." {
		t.Fatalf("unexpected sentence: %q", got)
	}
	if got := EnsurePeriod("Done."); got != "Done." {
		t.Fatalf("period added twice: %q", got)
	}
	if got := CapitalizeFirst(""); got != "" {
		t.Fatalf("expected empty, got %q", got)
	}
}
