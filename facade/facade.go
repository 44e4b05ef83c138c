// Package facade implements the public tracking surface (C7): thin
// wrappers that assemble a properties map for a known event shape and
// hand off to the validator/enricher (C4) and the consumer (C5). No
// routing or business logic lives here.
package facade

import (
	"context"
	"log/slog"

	"github.com/ingestsdk/go-sdk/consumer"
	"github.com/ingestsdk/go-sdk/event"
)

// Client is the SDK's entry point: one per app_id/bundle_id, wired to a
// validator and a consumer at construction time.
type Client struct {
	validator *event.Validator
	consumer  consumer.Consumer
	logger    *slog.Logger
}

// New builds a Client around an already-configured validator and consumer.
func New(validator *event.Validator, c consumer.Consumer, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{validator: validator, consumer: c, logger: logger.With(slog.String("component", "facade"))}
}

// Track records a custom or preset track event.
func (c *Client) Track(dtID, acid, eventName string, properties map[string]interface{}) error {
	return c.send(dtID, acid, eventName, event.SendTrack, properties)
}

// TrackBatch records multiple events in one call, encoding them as a
// single batch via event.EncodeBatch before handing off to the consumer.
func (c *Client) TrackBatch(dtID, acid string, events map[string]map[string]interface{}) error {
	records := make([]*event.Record, 0, len(events))
	for name, props := range events {
		rec, err := c.validator.Build(event.Input{
			DtID: dtID, Acid: acid, EventName: name, SendType: event.SendTrack, Properties: props,
		})
		if err != nil {
			return err
		}
		records = append(records, rec)
	}

	encoded, err := event.EncodeBatch(records)
	if err != nil {
		return err
	}
	c.consumer.Add(encoded)
	return nil
}

// UserSet overwrites the named user properties unconditionally.
func (c *Client) UserSet(dtID, acid string, properties map[string]interface{}) error {
	return c.send(dtID, acid, "#user_set", event.SendUser, properties)
}

// UserSetOnce sets user properties only if they are not already present.
func (c *Client) UserSetOnce(dtID, acid string, properties map[string]interface{}) error {
	return c.send(dtID, acid, "#user_set_once", event.SendUser, properties)
}

// UserAdd numerically increments the named user properties; every value
// must be numeric (enforced by the validator).
func (c *Client) UserAdd(dtID, acid string, properties map[string]interface{}) error {
	return c.send(dtID, acid, "#user_add", event.SendUser, properties)
}

// UserAppend appends to the named list-valued user properties, allowing
// duplicates; every value must be a list (enforced by the validator).
func (c *Client) UserAppend(dtID, acid string, properties map[string]interface{}) error {
	return c.send(dtID, acid, "#user_append", event.SendUser, properties)
}

// UserUniqAppend appends to the named list-valued user properties,
// deduplicating; every value must be a list (enforced by the validator).
func (c *Client) UserUniqAppend(dtID, acid string, properties map[string]interface{}) error {
	return c.send(dtID, acid, "#user_uniq_append", event.SendUser, properties)
}

// UserDelete deletes the user profile identified by dtID/acid.
func (c *Client) UserDelete(dtID, acid string) error {
	return c.send(dtID, acid, "#user_delete", event.SendUser, map[string]interface{}{})
}

// AdReport records one of the preset ad lifecycle events (#ad_show,
// #ad_click, #ad_conversion, ...); properties must match the preset
// schema for adName, enforced by the validator.
func (c *Client) AdReport(dtID, acid, adName string, properties map[string]interface{}) error {
	return c.send(dtID, acid, adName, event.SendTrack, properties)
}

func (c *Client) send(dtID, acid, eventName string, sendType event.SendType, properties map[string]interface{}) error {
	rec, err := c.validator.Build(event.Input{
		DtID: dtID, Acid: acid, EventName: eventName, SendType: sendType, Properties: properties,
	})
	if err != nil {
		c.logger.Warn("event rejected by validator", slog.String("event_name", eventName), slog.String("error", err.Error()))
		return err
	}

	encoded, err := event.Serialize(rec)
	if err != nil {
		c.logger.Warn("event serialization failed", slog.String("event_name", eventName), slog.String("error", err.Error()))
		return err
	}

	c.consumer.Add([]string{encoded})
	return nil
}

// Flush requests a best-effort upload of whatever is queued.
func (c *Client) Flush() {
	c.consumer.Flush()
}

// Close drains the consumer and releases its resources, bounded by ctx.
func (c *Client) Close(ctx context.Context) {
	c.consumer.Close(ctx)
}
