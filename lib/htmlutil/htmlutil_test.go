package htmlutil

import (
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/require"
)

func TestSanitizeHTML(t *testing.T) {
	cases := []struct {
		raw    string
		expect string
	}{
		{raw: "", expect: ""},
		{raw: "plain text", expect: "plain text"},
		{raw: "<p>Rise:&nbsp;10 3/4&quot;</p>", expect: `Rise: 10 3/4"`},
		{raw: "<p>Line one</p>\n\n<p>Line   two<br>three</p>", expect: "Line one Line two three"},
		{raw: "<ul><li>98% cotton</li><li>2% elastane</li></ul>", expect: "98% cotton 2% elastane"},
		{raw: "Soft&amp;nbsp;stretch", expect: "Soft stretch"},
		{raw: "<div>a<script>var x = 1;</script>b</div>", expect: "ab"},
	}
	for _, test := range cases {
		require.Equal(t, test.expect, SanitizeHTML(test.raw), test.raw)
	}
}

func TestSelectionText(t *testing.T) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(`
		<html><body>
			<div class="spec"><span>Inseam</span>&nbsp;<b>30"</b></div>
			<div class="spec">second</div>
		</body></html>`))
	require.NoError(t, err)

	require.Equal(t, `Inseam 30"`, SelectionText(doc.Find(".spec")))
	require.Equal(t, "", SelectionText(doc.Find(".missing")))
}
