package notify

import (
	"bytes"
	"fmt"
	"html/template"
	"time"
)

type InvitationEmailData struct {
	ProjectTitle string
	InviterName  string
	Link         string
	ExpiresAt    time.Time
}

type AcceptedEmailData struct {
	ProjectTitle string
	InviterName  string
	MemberName   string
	ProjectLink  string
}

var (
	invitationTmpl = template.Must(template.New("invitation").Funcs(funcs).Parse(invitationHTML))
	acceptedTmpl   = template.Must(template.New("accepted").Funcs(funcs).Parse(acceptedHTML))
)

var funcs = template.FuncMap{
	"date": func(t time.Time) string { return t.UTC().Format("Jan 2, 2006 15:04 MST") },
}

// BuildInvitationEmail 返回主题和 HTML 正文
func BuildInvitationEmail(data InvitationEmailData) (string, string, error) {
	var buf bytes.Buffer
	if err := invitationTmpl.Execute(&buf, data); err != nil {
		return "", "", fmt.Errorf("render invitation email: %w", err)
	}
	subject := fmt.Sprintf("%s invited you to join %s", data.InviterName, data.ProjectTitle)
	return subject, buf.String(), nil
}

func BuildAcceptedEmail(data AcceptedEmailData) (string, string, error) {
	var buf bytes.Buffer
	if err := acceptedTmpl.Execute(&buf, data); err != nil {
		return "", "", fmt.Errorf("render accepted email: %w", err)
	}
	subject := fmt.Sprintf("%s joined %s", data.MemberName, data.ProjectTitle)
	return subject, buf.String(), nil
}

const invitationHTML = `<!DOCTYPE html>
<html>
<head><meta charset="UTF-8"></head>
<body style="margin: 0; padding: 0; font-family: Arial, sans-serif; background-color: #f3f4f6;">
  <div style="max-width: 520px; margin: 24px auto; background: #ffffff; border-radius: 8px; padding: 32px;">
    <h2 style="margin: 0 0 16px; color: #4f46e5;">ProjectHub</h2>
    <p style="font-size: 16px; color: #374151;"><strong>{{.InviterName}}</strong> invited you to join <strong>{{.ProjectTitle}}</strong>.</p>
    <p style="text-align: center; margin: 24px 0;">
      <a href="{{.Link}}" style="display: inline-block; padding: 12px 24px; background: #4f46e5; color: #ffffff; text-decoration: none; border-radius: 6px;">View invitation</a>
    </p>
    <p style="font-size: 13px; color: #6b7280;">This invitation expires on {{date .ExpiresAt}}. If you don't have an account yet, you can create one from the invitation page.</p>
  </div>
</body>
</html>`

const acceptedHTML = `<!DOCTYPE html>
<html>
<head><meta charset="UTF-8"></head>
<body style="margin: 0; padding: 0; font-family: Arial, sans-serif; background-color: #f3f4f6;">
  <div style="max-width: 520px; margin: 24px auto; background: #ffffff; border-radius: 8px; padding: 32px;">
    <h2 style="margin: 0 0 16px; color: #4f46e5;">ProjectHub</h2>
    <p style="font-size: 16px; color: #374151;">Hi {{.InviterName}},</p>
    <p style="font-size: 16px; color: #374151;"><strong>{{.MemberName}}</strong> accepted your invitation and is now a member of <strong>{{.ProjectTitle}}</strong>.</p>
    {{if .ProjectLink}}<p><a href="{{.ProjectLink}}" style="color: #4f46e5;">Open the project</a></p>{{end}}
  </div>
</body>
</html>`
