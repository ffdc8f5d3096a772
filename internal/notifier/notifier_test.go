package notifier

import (
	"errors"
	"fmt"
	"net/smtp"
	"strings"
	"testing"

	"immoradar/config"
	"immoradar/internal/models"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type capturedMail struct {
	addr string
	from string
	to   []string
	msg  string
}

func newTestNotifier(t *testing.T, sent *[]capturedMail, sendErr error) *EmailNotifier {
	t.Helper()
	cfg := &config.Config{}
	cfg.Email.SMTPHost = "smtp.example.com"
	cfg.Email.SMTPPort = 587
	cfg.Email.From = "alerts@example.com"
	cfg.Email.Recipient = "me@example.com"
	cfg.Email.Password = "secret"
	cfg.Email.MaxProperties = 20

	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)

	n := NewEmailNotifier(cfg, logger)
	n.sendMail = func(addr string, auth smtp.Auth, from string, to []string, msg []byte) error {
		if sendErr != nil {
			return sendErr
		}
		*sent = append(*sent, capturedMail{addr: addr, from: from, to: to, msg: string(msg)})
		return nil
	}
	return n
}

func alertProperties(n int) []models.Property {
	properties := make([]models.Property, n)
	for i := 0; i < n; i++ {
		surface := 70.0
		properties[i] = models.Property{
			ID:           fmt.Sprintf("p%d", i),
			Source:       "synthetic",
			URL:          fmt.Sprintf("https://example.com/%d", i),
			Title:        fmt.Sprintf("Appartement %d", i),
			Location:     "Paris 15",
			Price:        200000 + float64(i),
			Surface:      &surface,
			EnergyRating: "C",
		}
	}
	return properties
}

func TestSendAlert(t *testing.T) {
	var sent []capturedMail
	n := newTestNotifier(t, &sent, nil)

	criteria := models.SearchCriteria{
		PriceMin:        200000,
		PriceMax:        500000,
		EnergyRatingMax: "D",
		Zones:           []string{"Paris", "Val-de-Marne"},
	}

	ok := n.SendAlert(alertProperties(3), criteria)
	require.True(t, ok)
	require.Len(t, sent, 1)

	mail := sent[0]
	assert.Equal(t, "smtp.example.com:587", mail.addr)
	assert.Equal(t, "alerts@example.com", mail.from)
	assert.Equal(t, []string{"me@example.com"}, mail.to)

	assert.Contains(t, mail.msg, "Subject: 3 nouvelle(s)")
	assert.Contains(t, mail.msg, "Content-Type: text/html")
	assert.Contains(t, mail.msg, "Appartement 0")
	assert.Contains(t, mail.msg, "https://example.com/2")
	assert.Contains(t, mail.msg, "Paris, Val-de-Marne")
	assert.Contains(t, mail.msg, "DPE maximum: D")
}

func TestSendAlert_EmptyBatch(t *testing.T) {
	var sent []capturedMail
	n := newTestNotifier(t, &sent, nil)

	ok := n.SendAlert(nil, models.SearchCriteria{})
	assert.False(t, ok)
	assert.Empty(t, sent)
}

func TestSendAlert_BodyCappedSubjectNot(t *testing.T) {
	var sent []capturedMail
	n := newTestNotifier(t, &sent, nil)

	ok := n.SendAlert(alertProperties(25), models.SearchCriteria{})
	require.True(t, ok)
	require.Len(t, sent, 1)

	msg := sent[0].msg
	// Subject reports the full count; the body stops at the configured cap
	assert.Contains(t, msg, "Subject: 25 nouvelle(s)")
	assert.Contains(t, msg, "Appartement 19")
	assert.NotContains(t, msg, "Appartement 20")
}

func TestSendAlert_DeliveryFault(t *testing.T) {
	var sent []capturedMail
	n := newTestNotifier(t, &sent, errors.New("connection refused"))

	ok := n.SendAlert(alertProperties(1), models.SearchCriteria{})
	assert.False(t, ok)
}

func TestSendAlert_MissingCredentials(t *testing.T) {
	var sent []capturedMail
	n := newTestNotifier(t, &sent, nil)
	n.cfg.Email.Password = ""

	ok := n.SendAlert(alertProperties(1), models.SearchCriteria{})
	assert.False(t, ok)
	assert.Empty(t, sent)
}

func TestSendDailyReport(t *testing.T) {
	var sent []capturedMail
	n := newTestNotifier(t, &sent, nil)

	stats := models.PropertyStats{
		TotalCount: 12,
		BySource:   map[string]int{"synthetic": 8, "opendata": 4},
		ByStatus:   map[string]int{models.StatusAvailable: 10, models.StatusContacted: 2},
		AvgPrice:   310000,
		MinPrice:   180000,
		MaxPrice:   480000,
	}

	ok := n.SendDailyReport(stats, alertProperties(2))
	require.True(t, ok)
	require.Len(t, sent, 1)

	msg := sent[0].msg
	assert.True(t, strings.Contains(msg, "Rapport quotidien"))
	assert.Contains(t, msg, "<strong>12</strong>")
	assert.Contains(t, msg, "synthetic")
	assert.Contains(t, msg, "310000")
	assert.Contains(t, msg, "Appartement 1")
}
