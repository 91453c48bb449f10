package whatsapp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
	"github.com/skip2/go-qrcode"
	"go.mau.fi/whatsmeow"
	"go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/store/sqlstore"
	"go.mau.fi/whatsmeow/types/events"

	"wedding-rsvp/internal/phone"
)

// ErrNotPaired means no device has been linked yet; run the pair command first
var ErrNotPaired = errors.New("whatsapp device is not paired")

type Config struct {
	DataDir string
}

// Service sends RSVP confirmations from a linked WhatsApp device
type Service struct {
	client *whatsmeow.Client
	cfg    Config
	log    zerolog.Logger
}

// NewService opens the device store and creates the client
func NewService(ctx context.Context, cfg Config, logger zerolog.Logger) (*Service, error) {
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	// nil logger: sqlstore falls back to a no-op logger
	dsn := fmt.Sprintf("file:%s?_foreign_keys=on", filepath.Join(cfg.DataDir, "whatsmeow.db"))
	container, err := sqlstore.New(ctx, "sqlite3", dsn, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create device store: %w", err)
	}

	deviceStore, err := container.GetFirstDevice(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get device: %w", err)
	}

	service := &Service{
		client: whatsmeow.NewClient(deviceStore, nil),
		cfg:    cfg,
		log:    logger.With().Str("component", "whatsapp").Logger(),
	}
	service.client.AddEventHandler(service.eventHandler)

	return service, nil
}

// IsPaired reports whether a device is linked
func (s *Service) IsPaired() bool {
	return s.client.Store.ID != nil
}

// Pair links a new device by rendering login QR codes to out until the login completes
func (s *Service) Pair(ctx context.Context, out io.Writer) error {
	if s.IsPaired() {
		fmt.Fprintln(out, "Device already paired.")
		return s.Connect()
	}

	qrChan, err := s.client.GetQRChannel(ctx)
	if err != nil {
		return fmt.Errorf("failed to get QR channel: %w", err)
	}
	if err := s.client.Connect(); err != nil {
		return fmt.Errorf("failed to connect: %w", err)
	}

	for evt := range qrChan {
		switch evt.Event {
		case "code":
			q, err := qrcode.New(evt.Code, qrcode.Medium)
			if err != nil {
				fmt.Fprintf(out, "QR Code: %s\n", evt.Code)
				continue
			}
			fmt.Fprintln(out, "\n"+q.ToSmallString(false))
			fmt.Fprintln(out, "📱 Scan the QR code above with WhatsApp:")
			fmt.Fprintln(out, "   Settings > Linked Devices > Link a Device")
		case "success":
			fmt.Fprintln(out, "✅ Device paired")
			return nil
		default:
			s.log.Info().Str("event", evt.Event).Msg("Login event")
			if evt.Error != nil {
				return fmt.Errorf("pairing failed: %w", evt.Error)
			}
		}
	}
	if !s.IsPaired() {
		return errors.New("pairing timed out")
	}
	return nil
}

// Connect connects a paired device
func (s *Service) Connect() error {
	if !s.IsPaired() {
		return ErrNotPaired
	}
	if s.client.IsConnected() {
		return nil
	}
	if err := s.client.Connect(); err != nil {
		return fmt.Errorf("failed to connect: %w", err)
	}
	return nil
}

// Disconnect disconnects from WhatsApp
func (s *Service) Disconnect() {
	s.client.Disconnect()
}

// SendConfirmation sends the RSVP summary to a guest's number
func (s *Service) SendConfirmation(ctx context.Context, phoneNumber, message string) error {
	if err := s.Connect(); err != nil {
		return err
	}

	digits := phone.Normalize(phoneNumber)
	if digits == "" {
		return fmt.Errorf("invalid phone number %q", phoneNumber)
	}

	// Verify the number is on WhatsApp and use the JID it resolves to
	resp, err := s.client.IsOnWhatsApp(ctx, []string{"+" + digits})
	if err != nil {
		return fmt.Errorf("failed to verify number on WhatsApp: %w", err)
	}
	if len(resp) == 0 || !resp[0].IsIn {
		return fmt.Errorf("number %s is not registered on WhatsApp", phone.Redact(digits))
	}
	jid := resp[0].JID

	s.log.Debug().Str("phone", phone.Redact(digits)).Msg("Sending confirmation")

	sent, err := s.client.SendMessage(ctx, jid, &waE2E.Message{
		Conversation: &message,
	})
	if err != nil {
		return fmt.Errorf("failed to send message: %w", err)
	}

	s.log.Info().Str("message_id", sent.ID).Str("phone", phone.Redact(digits)).Msg("Confirmation sent")
	return nil
}

// eventHandler handles connection events
func (s *Service) eventHandler(evt any) {
	switch evt.(type) {
	case *events.Connected:
		s.log.Info().Msg("Connected to WhatsApp")
	case *events.Disconnected:
		s.log.Info().Msg("Disconnected from WhatsApp")
	case *events.LoggedOut:
		s.log.Warn().Msg("Logged out from WhatsApp")
	}
}

// Details are the wedding facts repeated in every confirmation
type Details struct {
	WeddingDate     string
	WeddingLocation string
	BrideName       string
	GroomName       string
}

// ConfirmationText formats the message sent after an RSVP
func ConfirmationText(d Details, attending, declined []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "🎉 *RSVP received*\n\nThank you for responding to the wedding of *%s* & *%s*.\n\n", d.BrideName, d.GroomName)

	if len(attending) > 0 {
		fmt.Fprintf(&b, "✅ Attending: %s\n", strings.Join(attending, ", "))
	}
	if len(declined) > 0 {
		fmt.Fprintf(&b, "❌ Not attending: %s\n", strings.Join(declined, ", "))
	}

	if len(attending) > 0 {
		fmt.Fprintf(&b, "\n📅 Date: %s\n📍 Location: %s\n\nWe can't wait to celebrate with you! 💕", d.WeddingDate, d.WeddingLocation)
	} else {
		b.WriteString("\nWe're sorry you can't make it. Thank you for letting us know. 💙")
	}
	return b.String()
}
