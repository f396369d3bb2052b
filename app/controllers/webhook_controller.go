package controllers

import (
	"context"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/streamvault/streamvault/app/models"
	"github.com/streamvault/streamvault/internal/pkg/database"
	"github.com/streamvault/streamvault/internal/pkg/gateway"
	"github.com/streamvault/streamvault/internal/pkg/ingest"
	"github.com/streamvault/streamvault/internal/pkg/jobqueue"
)

const webhookTimeout = 15 * time.Second

// HandleGatewayWebhook accepts POST /webhooks/:gateway for all supported
// payment gateways. Providers retry on 5xx, so only signature failures and
// malformed payloads get a 4xx; everything recoverable is a 500.
func HandleGatewayWebhook(c *fiber.Ctx) error {
	normalizer, err := gateway.ForGateway(c.Params("gateway"))
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"success": false, "message": "unknown gateway"})
	}

	rawBody := append([]byte(nil), c.BodyRaw()...)
	ev, err := normalizer.Normalize(rawBody, flattenHeaders(c))
	if err != nil {
		if errors.Is(err, gateway.ErrInvalidSignature) {
			log.Warnf("[Webhook] %s delivery rejected: %v", normalizer.Provider(), err)
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"success": false, "message": "invalid signature"})
		}
		log.Warnf("[Webhook] %s payload rejected: %v", normalizer.Provider(), err)
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"success": false, "message": "invalid payload"})
	}

	if ev.EventKind != gateway.EventKindPaymentSucceeded {
		log.Infof("[Webhook] %s event %q ignored", ev.Gateway, ev.RawEventType)
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"success": true, "message": "event ignored"})
	}

	ctx, cancel := context.WithTimeout(context.Background(), webhookTimeout)
	defer cancel()

	svc := ingest.NewServiceFromDB(database.GetDB())
	res, err := svc.Ingest(ctx, ev)
	if err != nil {
		// Plan catalog gaps fail loudly so the provider redelivers after the
		// catalog is fixed.
		log.Errorf("[Webhook] Ingesting %s reference %s failed: %v", ev.Gateway, ev.Reference, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"success": false, "message": "ingestion failed"})
	}

	if res.Duplicate {
		log.Infof("[Webhook] Duplicate %s delivery for reference %s (order %d)", ev.Gateway, ev.Reference, res.OrderID)
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"success": true, "message": "duplicate delivery", "duplicate": true})
	}

	enqueueProvisioning(res)
	return c.Status(fiber.StatusOK).JSON(fiber.Map{"success": true, "message": "accepted"})
}

// enqueueProvisioning queues exactly one provisioning job for a fresh order:
// extend when the payment renews an already-provisioned subscription, create
// otherwise. Queue failures are logged, not surfaced: the order row is the
// durable fact and a redelivery would be deduplicated without a second job.
func enqueueProvisioning(res *ingest.Result) {
	manager := jobqueue.GetManager()
	if manager == nil {
		log.Errorf("[Webhook] Job queue not running; order %d stays pending", res.OrderID)
		return
	}
	queue := manager.GetQueue()

	if res.IsRenewal {
		sub, err := models.FindSubscriptionByID(database.GetDB(), res.SubscriptionID)
		if err == nil && sub.ServiceAccountID != nil {
			orderID := res.OrderID
			_, err := queue.EnqueueProvisionExtend(jobqueue.ProvisionExtendJobPayload{
				SubscriptionID:   res.SubscriptionID,
				ServiceAccountID: *sub.ServiceAccountID,
				PlanID:           res.PlanID,
				OrderID:          &orderID,
			})
			if err != nil {
				log.Errorf("[Webhook] Could not enqueue extend for order %d: %v", res.OrderID, err)
			}
			return
		}
		// Renewal of a subscription that never got an account falls through
		// to a create.
	}

	_, err := queue.EnqueueProvisionCreate(jobqueue.ProvisionCreateJobPayload{
		OrderID:        res.OrderID,
		SubscriptionID: res.SubscriptionID,
		UserID:         res.UserID,
		PlanID:         res.PlanID,
	})
	if err != nil {
		log.Errorf("[Webhook] Could not enqueue create for order %d: %v", res.OrderID, err)
	}
}

// HandleHealthz reports process liveness.
func HandleHealthz(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(fiber.Map{"status": "ok"})
}

func flattenHeaders(c *fiber.Ctx) map[string]string {
	headers := make(map[string]string)
	for key, values := range c.GetReqHeaders() {
		if len(values) > 0 {
			headers[key] = values[0]
		}
	}
	return headers
}
