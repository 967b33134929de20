// Package mail delivers account activation messages.
package mail

import (
	"bytes"
	"html/template"
)

const activationSubject = "Account Activation"

var activationTemplate = template.Must(template.New("activation").Parse(`
<div>
  <b>Please click below link to activate your account</b>
</div>
<div>
  <a href="{{.Link}}">Activate</a>
</div>
`))

// ActivationLink joins the configured activation URL prefix with token.
func ActivationLink(baseURL, token string) string {
	return baseURL + token
}

func renderActivationBody(link string) (string, error) {
	var buf bytes.Buffer
	if err := activationTemplate.Execute(&buf, struct{ Link string }{Link: link}); err != nil {
		return "", err
	}
	return buf.String(), nil
}
