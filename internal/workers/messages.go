package workers

import (
	"bytes"
	"embed"
	"fmt"
	"strings"
	"text/template"
	"time"

	"github.com/benvon/moviebox/internal/queue"
)

//go:embed templates/*.txt
var templatesFS embed.FS

var mailTemplates = map[queue.JobType]*template.Template{
	queue.JobTypeVerificationEmail:  template.Must(template.ParseFS(templatesFS, "templates/verification_email.txt")),
	queue.JobTypePasswordResetEmail: template.Must(template.ParseFS(templatesFS, "templates/password_reset_email.txt")),
}

// Message is a rendered plain-text e-mail
type Message struct {
	To      string
	Subject string
	Body    string
}

type mailData struct {
	Name    string
	Link    string
	Expires string
}

// RenderMessage builds the e-mail for an account mail job
func RenderMessage(job *queue.Job) (Message, error) {
	tmpl, ok := mailTemplates[job.Type]
	if !ok {
		return Message{}, fmt.Errorf("no template for job type %s", job.Type)
	}

	data := mailData{Name: job.DisplayName, Link: job.Link}
	if strings.TrimSpace(data.Name) == "" {
		data.Name = "there"
	}
	if job.NotAfter != nil {
		data.Expires = job.NotAfter.UTC().Format(time.RFC1123)
	}

	var subject, body bytes.Buffer
	if err := tmpl.ExecuteTemplate(&subject, "subject", data); err != nil {
		return Message{}, fmt.Errorf("render subject: %w", err)
	}
	if err := tmpl.ExecuteTemplate(&body, "body", data); err != nil {
		return Message{}, fmt.Errorf("render body: %w", err)
	}

	return Message{
		To:      job.Email,
		Subject: strings.TrimSpace(subject.String()),
		Body:    body.String(),
	}, nil
}
