package parser

import "testing"

func TestCleanHeadline(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"Plain headline":                         "Plain headline",
		"  Spaced \n out\theadline ":             "Spaced out headline",
		"<b>Markets</b> rally &amp; recover":     "Markets rally & recover",
		"Rates &quot;on hold&quot; says bank":    `Rates "on hold" says bank`,
		"<p>Storm <em>warning</em></p>\n<br/>":   "Storm warning",
		"":                                       "",
		"Caf&eacute; owners&nbsp;protest prices": "Café owners protest prices",
	}

	for in, want := range cases {
		if got := CleanHeadline(in); got != want {
			t.Fatalf("CleanHeadline(%q) = %q, want %q", in, got, want)
		}
	}
}
