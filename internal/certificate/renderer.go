package certificate

import (
	"fmt"
	"strings"
)

// TextRenderer renders a plain-text certificate body.
type TextRenderer struct {
	IssuerName string
}

func NewTextRenderer(issuerName string) *TextRenderer {
	return &TextRenderer{IssuerName: issuerName}
}

func (r *TextRenderer) Render(c *Certificate) string {
	var b strings.Builder
	fmt.Fprintf(&b, "CERTIFICATE OF CONFORMITY %s\n", c.Number)
	fmt.Fprintf(&b, "Issued by: %s\n", r.IssuerName)
	fmt.Fprintf(&b, "Product: %s (%s)\n", c.ProductName, c.ProductType)
	fmt.Fprintf(&b, "Valid: %s - %s (%d year(s))\n",
		c.IssuedAt.Format("2006-01-02"), c.ExpiresAt.Format("2006-01-02"), c.ValidityYears)
	return b.String()
}
