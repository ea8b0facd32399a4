// Package ses provides email notification services via AWS SES
package ses

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"sort"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"

	appConfig "case-disposition-engine/internal/config"
	"case-disposition-engine/internal/models"
	"case-disposition-engine/internal/utils"
)

// EmailAPI is the subset of the SES client used by the service.
type EmailAPI interface {
	SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error)
}

// Service handles SES email operations
type Service struct {
	client    EmailAPI
	fromEmail string
}

// EmailParams represents parameters for sending an email
type EmailParams struct {
	To       string
	Subject  string
	HTMLBody string
	TextBody string
	ReplyTo  string
	CC       []string
}

// AssignmentNotificationParams contains data for one organization's assignment email
type AssignmentNotificationParams struct {
	OrganizationID    string
	OrganizationName  string
	OrganizationEmail string
	PlanID            string
	TotalCases        int
	TotalAmount       float64
	Packages          []PackageInfo
	ReportKey         string
}

// PackageInfo describes the cases one package contributed to an organization
type PackageInfo struct {
	BatchID     string
	CaseCount   int
	TotalAmount float64
	MatchScore  int
}

// SendEmailResult contains the result of sending an email
type SendEmailResult struct {
	MessageID string
	SentAt    time.Time
}

// NewService creates a new SES service
func NewService(ctx context.Context, appCfg *appConfig.Config) (*Service, error) {
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(appCfg.AWSRegion))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return NewWithClient(ses.NewFromConfig(cfg), appCfg.SESSenderEmail), nil
}

// NewWithClient creates a service around an existing client.
func NewWithClient(client EmailAPI, fromEmail string) *Service {
	return &Service{client: client, fromEmail: fromEmail}
}

// SendEmail sends a basic email
func (s *Service) SendEmail(ctx context.Context, params EmailParams) (*SendEmailResult, error) {
	input := &ses.SendEmailInput{
		Source: aws.String(s.fromEmail),
		Destination: &types.Destination{
			ToAddresses: []string{params.To},
		},
		Message: &types.Message{
			Subject: &types.Content{
				Data:    aws.String(params.Subject),
				Charset: aws.String("UTF-8"),
			},
			Body: &types.Body{},
		},
	}

	if params.HTMLBody != "" {
		input.Message.Body.Html = &types.Content{
			Data:    aws.String(params.HTMLBody),
			Charset: aws.String("UTF-8"),
		}
	}

	if params.TextBody != "" {
		input.Message.Body.Text = &types.Content{
			Data:    aws.String(params.TextBody),
			Charset: aws.String("UTF-8"),
		}
	}

	if len(params.CC) > 0 {
		input.Destination.CcAddresses = params.CC
	}

	if params.ReplyTo != "" {
		input.ReplyToAddresses = []string{params.ReplyTo}
	}

	result, err := s.client.SendEmail(ctx, input)
	if err != nil {
		utils.Component("ses").Error("Failed to send email",
			utils.String("to", params.To),
			utils.String("subject", params.Subject),
			utils.Error(err),
		)
		return nil, fmt.Errorf("failed to send email: %w", err)
	}

	messageID := aws.ToString(result.MessageId)
	utils.Component("ses").Info("Email sent successfully",
		utils.String("to", params.To),
		utils.String("subject", params.Subject),
		utils.String("messageId", messageID),
	)

	return &SendEmailResult{
		MessageID: messageID,
		SentAt:    time.Now(),
	}, nil
}

// SendAssignmentNotification tells one organization which cases it received
func (s *Service) SendAssignmentNotification(ctx context.Context, params AssignmentNotificationParams) (*SendEmailResult, error) {
	htmlBody, err := renderAssignmentHTML(params)
	if err != nil {
		return nil, fmt.Errorf("failed to render email template: %w", err)
	}

	subject := fmt.Sprintf("%d new cases assigned to %s (plan %s)", params.TotalCases, params.OrganizationName, params.PlanID)

	return s.SendEmail(ctx, EmailParams{
		To:       params.OrganizationEmail,
		Subject:  subject,
		HTMLBody: htmlBody,
		TextBody: RenderAssignmentText(params),
	})
}

// SendAssignmentNotifications notifies every organization of a confirmed plan.
// A failed send does not stop the remaining ones.
func (s *Service) SendAssignmentNotifications(ctx context.Context, notifications []AssignmentNotificationParams) ([]SendEmailResult, []error) {
	results := make([]SendEmailResult, 0, len(notifications))
	errs := make([]error, 0)

	for _, notif := range notifications {
		result, err := s.SendAssignmentNotification(ctx, notif)
		if err != nil {
			utils.Component("ses").Warn("Assignment notification failed",
				utils.OrgID(notif.OrganizationID),
				utils.PlanID(notif.PlanID),
			)
			errs = append(errs, fmt.Errorf("failed to send to %s: %w", notif.OrganizationEmail, err))
			continue
		}
		results = append(results, *result)
	}

	utils.Component("ses").Info("Assignment notifications sent",
		utils.Int("total", len(notifications)),
		utils.Int("success", len(results)),
		utils.Int("failed", len(errs)),
	)

	return results, errs
}

// BuildAssignmentNotificationParams groups a plan's assignments per organization.
// Organizations without a contact email are skipped. Output is ordered by organization id.
func BuildAssignmentNotificationParams(plan *models.AssignmentPlan, orgs map[string]*models.Organization, reportKey string) []AssignmentNotificationParams {
	byOrg := make(map[string]*AssignmentNotificationParams)

	for _, a := range plan.Assignments {
		org, ok := orgs[a.OrganizationID]
		if !ok || org.ContactEmail == "" {
			continue
		}

		params, ok := byOrg[a.OrganizationID]
		if !ok {
			params = &AssignmentNotificationParams{
				OrganizationID:    org.ID,
				OrganizationName:  org.Name,
				OrganizationEmail: org.ContactEmail,
				PlanID:            plan.ID,
				ReportKey:         reportKey,
			}
			byOrg[a.OrganizationID] = params
		}

		params.TotalCases += a.CaseCount
		params.TotalAmount += a.TotalAmount
		params.Packages = append(params.Packages, PackageInfo{
			BatchID:     a.BatchID,
			CaseCount:   a.CaseCount,
			TotalAmount: a.TotalAmount,
			MatchScore:  a.MatchScore,
		})
	}

	out := make([]AssignmentNotificationParams, 0, len(byOrg))
	for _, p := range byOrg {
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].OrganizationID < out[j].OrganizationID })

	return out
}

var assignmentTemplate = template.Must(template.New("assignment_notification").Parse(`
<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <style>
        body { font-family: Arial, sans-serif; line-height: 1.6; color: #333; max-width: 600px; margin: 0 auto; padding: 20px; }
        .header { background: #1f4e79; color: white; padding: 24px; border-radius: 8px 8px 0 0; }
        .content { background: #f7f7f7; padding: 24px; border-radius: 0 0 8px 8px; }
        table { width: 100%; border-collapse: collapse; }
        th, td { text-align: left; padding: 8px; border-bottom: 1px solid #ddd; }
        .footer { text-align: center; margin-top: 24px; color: #999; font-size: 12px; }
    </style>
</head>
<body>
    <div class="header">
        <h1>New case assignment</h1>
        <p>{{.OrganizationName}}, {{.TotalCases}} cases were assigned to you in plan {{.PlanID}}</p>
    </div>
    <div class="content">
        <table>
            <tr><th>Package</th><th>Cases</th><th>Amount</th><th>Match score</th></tr>
            {{range .Packages}}
            <tr><td>{{.BatchID}}</td><td>{{.CaseCount}}</td><td>{{printf "%.2f" .TotalAmount}}</td><td>{{.MatchScore}}</td></tr>
            {{end}}
        </table>
        <p>Total amount: {{printf "%.2f" .TotalAmount}}</p>
        {{if .ReportKey}}<p>Plan report: {{.ReportKey}}</p>{{end}}
    </div>
    <div class="footer">
        <p>This email was sent by the case disposition engine.</p>
    </div>
</body>
</html>`))

func renderAssignmentHTML(params AssignmentNotificationParams) (string, error) {
	var buf bytes.Buffer
	if err := assignmentTemplate.Execute(&buf, params); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// RenderAssignmentText renders the plain text version of an assignment email
func RenderAssignmentText(params AssignmentNotificationParams) string {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "Hello %s,\n\n", params.OrganizationName)
	fmt.Fprintf(&buf, "%d cases were assigned to you in plan %s.\n\n", params.TotalCases, params.PlanID)

	for i, p := range params.Packages {
		fmt.Fprintf(&buf, "%d. Package %s: %d cases, amount %.2f, match score %d\n",
			i+1, p.BatchID, p.CaseCount, p.TotalAmount, p.MatchScore)
	}

	fmt.Fprintf(&buf, "\nTotal amount: %.2f\n", params.TotalAmount)
	if params.ReportKey != "" {
		fmt.Fprintf(&buf, "Plan report: %s\n", params.ReportKey)
	}

	buf.WriteString("\nCase Disposition Team\n")

	return buf.String()
}
