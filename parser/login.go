package parser

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/PuerkitoBio/goquery"
)

// ErrLoginToken means the login form carried no lt token.
var ErrLoginToken = errors.New("parser: login token not found")

// LoginToken reads the hidden lt field of the CAS login form.
func (p *Parser) LoginToken(body []byte) (string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrLoginToken, err)
	}
	token, ok := doc.FindMatcher(p.sel.LoginToken).First().Attr("value")
	if !ok || token == "" {
		return "", ErrLoginToken
	}
	return token, nil
}
