package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Gimbo67/evokeessence-crypto-exchange-sub000/internal/abuse"
	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"
)

// SESAlertService emails repeat-offender ban alerts to the security team
// using AWS SES
type SESAlertService struct {
	sesClient   *ses.Client
	fromAddress string
	toAddress   string
	logger      *slog.Logger
}

// NewSESAlertService creates a new SES-backed alert sender
func NewSESAlertService(region, fromAddress, toAddress string, logger *slog.Logger) (*SESAlertService, error) {
	cfg, err := awsconfig.LoadDefaultConfig(context.Background(), awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return &SESAlertService{
		sesClient:   ses.NewFromConfig(cfg),
		fromAddress: fromAddress,
		toAddress:   toAddress,
		logger:      logger,
	}, nil
}

// SendBanAlert emails a repeat-offender notification
func (s *SESAlertService) SendBanAlert(ctx context.Context, alert abuse.BanAlert) error {
	subject := fmt.Sprintf("Repeat offender banned: %s (offense #%d)", alert.IP, alert.OffenseCount)

	textBody := fmt.Sprintf(`A repeat offender has been banned by the login abuse defense.

IP address:    %s
Offense count: %d
Ban duration:  %s

The IP can be reviewed and unbanned from the admin dashboard.
`, alert.IP, alert.OffenseCount, alert.Duration)

	input := &ses.SendEmailInput{
		Source: aws.String(s.fromAddress),
		Destination: &types.Destination{
			ToAddresses: []string{s.toAddress},
		},
		Message: &types.Message{
			Subject: &types.Content{
				Data: aws.String(subject),
			},
			Body: &types.Body{
				Text: &types.Content{
					Data: aws.String(textBody),
				},
			},
		},
	}

	result, err := s.sesClient.SendEmail(ctx, input)
	if err != nil {
		return fmt.Errorf("failed to send ban alert email: %w", err)
	}

	s.logger.Info("ban alert email sent",
		slog.String("ip", alert.IP),
		slog.String("message_id", aws.ToString(result.MessageId)))
	return nil
}
