package extractor

import (
	"bytes"
	"io"
	"regexp"
	"strconv"
	"strings"

	"github.com/nao1215/newscrawl/internal/model"
	"golang.org/x/net/html/charset"
	"golang.org/x/text/unicode/norm"
)

// integerRe matches an integer, allowing space-grouped thousands ("1 234").
var integerRe = regexp.MustCompile(`\d+(?:[ \x{00a0}\x{202f}]\d{3})*`)

// NormalizeText collapses whitespace runs to single spaces, trims the
// result and converts it to Unicode NFC.
func NormalizeText(s string) string {
	return norm.NFC.String(strings.Join(strings.Fields(s), " "))
}

// FirstInt returns the first integer in s, or false when there is none.
func FirstInt(s string) (int, bool) {
	m := integerRe.FindString(s)
	if m == "" {
		return 0, false
	}
	digits := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, m)
	n, err := strconv.Atoi(digits)
	if err != nil {
		return 0, false
	}
	return n, true
}

// Decode returns a reader yielding the page body as UTF-8. The encoding is
// taken from the Content-Type header, a <meta> declaration or byte sniffing.
func Decode(page *model.Page) (io.Reader, error) {
	return charset.NewReader(bytes.NewReader(page.Body), page.ContentType)
}
