package notifier

import (
	"bytes"
	"fmt"
	"html/template"
	"net/smtp"
	"strings"
	"time"

	"immoradar/config"
	"immoradar/internal/models"

	"github.com/sirupsen/logrus"
)

// EmailNotifier formats a bounded subset of records into an HTML message and
// delivers it over SMTP. Delivery faults are logged and reported as a boolean;
// they never propagate and never block the scrape pipeline.
type EmailNotifier struct {
	logger *logrus.Logger
	cfg    *config.Config

	// sendMail is swappable for tests
	sendMail func(addr string, auth smtp.Auth, from string, to []string, msg []byte) error
}

func NewEmailNotifier(cfg *config.Config, logger *logrus.Logger) *EmailNotifier {
	if logger == nil {
		logger = logrus.New()
	}
	n := &EmailNotifier{
		logger:   logger,
		cfg:      cfg,
		sendMail: smtp.SendMail,
	}
	if cfg.Email.Password == "" {
		logger.Warn("EMAIL_PASSWORD not configured, alerts will be skipped")
	}
	return n
}

// SendAlert emails the given records with the criteria that produced them.
// At most the configured maximum (20 by default) are included in the body;
// the subject always carries the full count.
func (n *EmailNotifier) SendAlert(properties []models.Property, criteria models.SearchCriteria) bool {
	if len(properties) == 0 {
		n.logger.Info("No properties to notify")
		return false
	}

	subject := fmt.Sprintf("%d nouvelle(s) propriété(s) trouvée(s)", len(properties))
	body, err := buildAlertBody(properties, criteria, n.maxProperties())
	if err != nil {
		n.logger.WithError(err).Error("Failed to build alert email body")
		return false
	}

	return n.deliver(subject, body)
}

// SendDailyReport emails store-wide statistics plus the most recent records.
func (n *EmailNotifier) SendDailyReport(stats models.PropertyStats, recent []models.Property) bool {
	subject := fmt.Sprintf("Rapport quotidien immobilier - %s", time.Now().Format("02/01/2006"))
	body, err := buildReportBody(stats, recent, n.maxProperties())
	if err != nil {
		n.logger.WithError(err).Error("Failed to build report email body")
		return false
	}

	return n.deliver(subject, body)
}

func (n *EmailNotifier) maxProperties() int {
	if n.cfg.Email.MaxProperties > 0 {
		return n.cfg.Email.MaxProperties
	}
	return 20
}

// deliver sends one HTML message. Any transport or auth fault downgrades to
// false at this boundary.
func (n *EmailNotifier) deliver(subject, htmlBody string) bool {
	email := n.cfg.Email
	if email.Password == "" || email.Recipient == "" {
		n.logger.Error("Email credentials not configured, skipping delivery")
		return false
	}

	var msg strings.Builder
	msg.WriteString("From: " + email.From + "\r\n")
	msg.WriteString("To: " + email.Recipient + "\r\n")
	msg.WriteString("Subject: " + subject + "\r\n")
	msg.WriteString("MIME-Version: 1.0\r\n")
	msg.WriteString("Content-Type: text/html; charset=\"UTF-8\"\r\n")
	msg.WriteString("\r\n")
	msg.WriteString(htmlBody)

	addr := fmt.Sprintf("%s:%d", email.SMTPHost, email.SMTPPort)
	auth := smtp.PlainAuth("", email.From, email.Password, email.SMTPHost)

	if err := n.sendMail(addr, auth, email.From, []string{email.Recipient}, []byte(msg.String())); err != nil {
		n.logger.WithError(err).Error("Failed to send email")
		return false
	}

	n.logger.WithFields(logrus.Fields{
		"recipient": email.Recipient,
		"subject":   subject,
	}).Info("Email sent")
	return true
}

var templateFuncs = template.FuncMap{
	"price": func(v float64) string {
		return fmt.Sprintf("%.0f €", v)
	},
	"surface": func(v *float64) string {
		if v == nil {
			return "N/A"
		}
		return fmt.Sprintf("%.0f m²", *v)
	},
	"rating": func(r string) string {
		if r == "" {
			return "N/A"
		}
		return r
	},
}

var alertTemplate = template.Must(template.New("alert").Funcs(templateFuncs).Parse(`
<html>
<body style="font-family: Arial, sans-serif;">
	<h1>Alerte Propriétés Immobilières</h1>
	<p>{{.Total}} nouvelle(s) propriété(s) trouvée(s)</p>
	<div style="background-color:#ecf0f1;padding:10px;">
		<strong>Critères de recherche:</strong><br>
		Budget: {{price .Criteria.PriceMin}} - {{price .Criteria.PriceMax}}<br>
		{{if .Criteria.Zones}}Zones: {{.Zones}}<br>{{end}}
		{{if .Criteria.EnergyRatingMax}}DPE maximum: {{.Criteria.EnergyRatingMax}}{{end}}
	</div>
	{{range .Properties}}
	<div style="border:1px solid #ddd;padding:15px;margin:15px 0;">
		<div style="font-size:18px;font-weight:bold;">{{.Title}}</div>
		<div style="color:#7f8c8d;">{{.Location}}</div>
		<p>
			Prix: <strong>{{price .Price}}</strong><br>
			Surface: {{surface .Surface}}<br>
			DPE: {{rating .EnergyRating}}<br>
			Source: {{.Source}}
		</p>
		<a href="{{.URL}}">Voir l'annonce</a>
	</div>
	{{end}}
	<p style="color:#7f8c8d;font-size:12px;">Email généré automatiquement le {{.Now}}</p>
</body>
</html>
`))

var reportTemplate = template.Must(template.New("report").Funcs(templateFuncs).Parse(`
<html>
<body style="font-family: Arial, sans-serif;">
	<h1>Rapport Quotidien</h1>
	<p>{{.Now}}</p>
	<h2>Statistiques Globales</h2>
	<p>Total de propriétés: <strong>{{.Stats.TotalCount}}</strong></p>
	{{if .Stats.BySource}}
	<h3>Par Source</h3>
	<table border="1" cellpadding="5">
		<tr><th>Source</th><th>Nombre</th></tr>
		{{range $source, $count := .Stats.BySource}}<tr><td>{{$source}}</td><td>{{$count}}</td></tr>{{end}}
	</table>
	{{end}}
	{{if .Stats.ByStatus}}
	<h3>Par Statut</h3>
	<table border="1" cellpadding="5">
		<tr><th>Statut</th><th>Nombre</th></tr>
		{{range $status, $count := .Stats.ByStatus}}<tr><td>{{$status}}</td><td>{{$count}}</td></tr>{{end}}
	</table>
	{{end}}
	{{if gt .Stats.TotalCount 0}}
	<h2>Prix</h2>
	<p>
		Prix moyen: <strong>{{price .Stats.AvgPrice}}</strong><br>
		Prix min: <strong>{{price .Stats.MinPrice}}</strong><br>
		Prix max: <strong>{{price .Stats.MaxPrice}}</strong>
	</p>
	{{end}}
	{{if .Recent}}
	<h2>Annonces Récentes</h2>
	{{range .Recent}}
	<div style="border:1px solid #ddd;padding:10px;margin:10px 0;">
		<strong>{{.Title}}</strong> - {{.Location}} - {{price .Price}}
		(<a href="{{.URL}}">annonce</a>)
	</div>
	{{end}}
	{{end}}
</body>
</html>
`))

func buildAlertBody(properties []models.Property, criteria models.SearchCriteria, maxProperties int) (string, error) {
	shown := properties
	if len(shown) > maxProperties {
		shown = shown[:maxProperties]
	}

	data := struct {
		Total      int
		Properties []models.Property
		Criteria   models.SearchCriteria
		Zones      string
		Now        string
	}{
		Total:      len(properties),
		Properties: shown,
		Criteria:   criteria,
		Zones:      strings.Join(criteria.Zones, ", "),
		Now:        time.Now().Format("02/01/2006 à 15:04"),
	}

	var buf bytes.Buffer
	if err := alertTemplate.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func buildReportBody(stats models.PropertyStats, recent []models.Property, maxProperties int) (string, error) {
	if len(recent) > maxProperties {
		recent = recent[:maxProperties]
	}

	data := struct {
		Stats  models.PropertyStats
		Recent []models.Property
		Now    string
	}{
		Stats:  stats,
		Recent: recent,
		Now:    time.Now().Format("02/01/2006"),
	}

	var buf bytes.Buffer
	if err := reportTemplate.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}
