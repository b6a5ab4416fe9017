// Package workflow notifies the external scraping workflow that a zip request
// was submitted. The backend never waits on the workflow: triggers are fired
// after the request is persisted and their failures are logged by the caller.
package workflow

import (
	"context"
	"fmt"
	"time"

	"github.com/tbourn/leadops-backend/internal/config"
)

// Driver names accepted by WORKFLOW_DRIVER.
const (
	DriverNone    = "none"
	DriverWebhook = "webhook"
	DriverAMQP    = "amqp"
)

// ZipRequestedEvent is the payload delivered to the workflow.
type ZipRequestedEvent struct {
	ZipRequestID string    `json:"zipRequestId"`
	ZipCode      string    `json:"zipCode"`
	CategoryID   *string   `json:"categoryId,omitempty"`
	CategoryName *string   `json:"categoryName,omitempty"`
	RequestedAt  time.Time `json:"requestedAt"`
}

// Trigger starts the external workflow for a zip request.
type Trigger interface {
	ZipRequested(ctx context.Context, ev ZipRequestedEvent) error
	// Name identifies the driver in logs and metrics.
	Name() string
}

// Noop discards events.
type Noop struct{}

func (Noop) ZipRequested(context.Context, ZipRequestedEvent) error { return nil }
func (Noop) Name() string                                          { return DriverNone }

// dialAMQP is swapped in tests.
var dialAMQP = func(url string) (*AMQPTrigger, error) { return DialAMQP(url) }

// New builds the trigger selected by cfg.Driver. The caller owns the result
// and must Close it when it implements io.Closer.
func New(cfg config.WorkflowConfig) (Trigger, error) {
	switch cfg.Driver {
	case "", DriverNone:
		return Noop{}, nil
	case DriverWebhook:
		return NewWebhook(cfg.WebhookURL, cfg.WebhookSecret), nil
	case DriverAMQP:
		t, err := dialAMQP(cfg.AMQPURL)
		if err != nil {
			return nil, err
		}
		return t, nil
	default:
		return nil, fmt.Errorf("unknown workflow driver %q", cfg.Driver)
	}
}
