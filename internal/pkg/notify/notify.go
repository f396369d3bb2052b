package notify

import "fmt"

// TemplateKind names an outbound notification template. Rendering and
// delivery live behind the Dispatcher; the core only picks the kind and
// supplies data.
type TemplateKind string

const (
	TemplateCredentials        TemplateKind = "credentials"
	TemplateProvisioningFailed TemplateKind = "provisioning_failed"
	TemplateLowBalance         TemplateKind = "low_balance"
	TemplatePlanChanged        TemplateKind = "plan_changed"
)

// Dispatcher delivers a templated notification to one recipient.
type Dispatcher interface {
	Send(recipient string, kind TemplateKind, data map[string]interface{}) error
}

// subjects for the SMTP fallback renderer; real template rendering is owned
// by the notification service, not the core.
var subjects = map[TemplateKind]string{
	TemplateCredentials:        "Your streaming account is ready",
	TemplateProvisioningFailed: "Provisioning failed - action required",
	TemplateLowBalance:         "Reseller credit balance is low",
	TemplatePlanChanged:        "Your plan change is complete",
}

func subjectFor(kind TemplateKind) string {
	if s, ok := subjects[kind]; ok {
		return s
	}
	return fmt.Sprintf("Notification: %s", kind)
}
