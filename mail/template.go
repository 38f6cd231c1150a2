package mail

import (
	"bytes"
	"html/template"
	"net/url"
	"strings"

	"github.com/photoshare/photoauth"
)

const confirmPath = "api/auth/confirmed_email/"

var verifyTemplate = template.Must(template.New("verify").Parse(`<!DOCTYPE html>
<html>
<body>
<p>Hi {{.Username}},</p>
<p>Thanks for signing up. Please confirm your email address:</p>
<p><a href="{{.Link}}">Confirm email</a></p>
<p>If you did not create an account you can ignore this message.</p>
</body>
</html>
`))

// ConfirmLink joins baseURL and the confirmation route for token.
func ConfirmLink(baseURL, token string) string {
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}
	return baseURL + confirmPath + url.PathEscape(token)
}

// Render returns the HTML body for m.
func Render(m photoauth.VerificationMail) ([]byte, error) {
	var buf bytes.Buffer
	err := verifyTemplate.Execute(&buf, struct {
		Username string
		Link     string
	}{
		Username: m.Username,
		Link:     ConfirmLink(m.BaseURL, m.Token),
	})
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
