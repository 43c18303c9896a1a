package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"sparkleclean/internal/config"
	"sparkleclean/internal/models"

	"github.com/rs/zerolog"
)

// Drafter calls the external generative service that turns a booking-detail
// document into a structured notification. The service is opaque: this client
// only serializes the input shape and validates the returned document shape.
type Drafter struct {
	endpoint string
	apiKey   string
	model    string
	client   *http.Client
	logger   *zerolog.Logger
}

func NewDrafter(cfg config.NotifyConfig, logger *zerolog.Logger) *Drafter {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = time.Duration(models.NotifyTimeoutSeconds) * time.Second
	}
	return &Drafter{
		endpoint: cfg.Endpoint,
		apiKey:   cfg.APIKey,
		model:    cfg.Model,
		client:   &http.Client{Timeout: timeout},
		logger:   logger,
	}
}

// bookingDetail is the input document shape the collaborator expects.
type bookingDetail struct {
	Name    string `json:"name"`
	Address string `json:"address"`
	Phone   string `json:"phone"`
	Service string `json:"service"`
	Date    string `json:"date"`
	Time    string `json:"time"`
	Notes   string `json:"notes,omitempty"`
}

type draftRequest struct {
	Model   string        `json:"model"`
	Kind    string        `json:"kind"`
	Booking bookingDetail `json:"booking"`
}

func detailFromBooking(booking *models.Booking, serviceTitle string) bookingDetail {
	return bookingDetail{
		Name:    booking.Name,
		Address: booking.Address,
		Phone:   booking.Phone,
		Service: serviceTitle,
		Date:    booking.Date,
		Time:    booking.Time,
		Notes:   booking.Notes,
	}
}

func (d *Drafter) draft(ctx context.Context, kind string, detail bookingDetail, out any) error {
	body, err := json.Marshal(draftRequest{Model: d.model, Kind: kind, Booking: detail})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if d.apiKey != "" {
		req.Header.Set("X-API-Key", d.apiKey)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("drafting request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("drafting service returned status %d", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode drafting response: %w", err)
	}
	return nil
}

// DraftNotification produces the structured owner notification for a new
// booking.
func (d *Drafter) DraftNotification(ctx context.Context, booking *models.Booking, serviceTitle string) (*models.NotificationDocument, error) {
	var doc models.NotificationDocument
	if err := d.draft(ctx, "notification", detailFromBooking(booking, serviceTitle), &doc); err != nil {
		return nil, err
	}
	if err := validateNotification(&doc); err != nil {
		return nil, err
	}
	return &doc, nil
}

// DraftSmsExplanation produces the step-by-step SMS setup guide document.
func (d *Drafter) DraftSmsExplanation(ctx context.Context, booking *models.Booking, serviceTitle string) (*models.SmsExplanation, error) {
	var doc models.SmsExplanation
	if err := d.draft(ctx, "sms_explanation", detailFromBooking(booking, serviceTitle), &doc); err != nil {
		return nil, err
	}
	if err := validateExplanation(&doc); err != nil {
		return nil, err
	}
	return &doc, nil
}

func validateNotification(doc *models.NotificationDocument) error {
	switch {
	case doc.Subject == "":
		return fmt.Errorf("notification document missing subject")
	case doc.Summary == "":
		return fmt.Errorf("notification document missing summary")
	case doc.SuggestedAction == "":
		return fmt.Errorf("notification document missing suggestedAction")
	case doc.Details.Name == "":
		return fmt.Errorf("notification document missing details.name")
	}
	return nil
}

func validateExplanation(doc *models.SmsExplanation) error {
	switch {
	case doc.Title == "":
		return fmt.Errorf("explanation document missing title")
	case len(doc.Steps) == 0:
		return fmt.Errorf("explanation document has no steps")
	case doc.CodeSnippet.Code == "":
		return fmt.Errorf("explanation document missing code snippet")
	case doc.Conclusion == "":
		return fmt.Errorf("explanation document missing conclusion")
	}
	for _, step := range doc.Steps {
		if step.StepTitle == "" || step.StepDescription == "" {
			return fmt.Errorf("explanation document has an incomplete step")
		}
	}
	return nil
}
