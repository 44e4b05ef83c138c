// Package event implements the validator/enricher (C4): it accepts the
// caller's event fields, separates meta keys from properties, injects
// defaults, validates names and value types against the preset-event
// schema, and serializes to the canonical wire form.
package event

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"regexp"
	"time"

	"github.com/ingestsdk/go-sdk/pkg/logging"
)

// SendType is the caller's declared event category.
type SendType string

const (
	SendTrack SendType = "track"
	SendUser  SendType = "user"
)

// nameRegex matches the canonical-record name rule: a leading
// letter/#/$ followed by up to 63 word characters.
var nameRegex = regexp.MustCompile(`^[#$a-zA-Z][a-zA-Z0-9_]{0,63}$`)

// zeroDtID is the 40-character sentinel used when no visitor id is known.
const zeroDtID = "0000000000000000000000000000000000000000" // 40 zeros

// metaKeys are the caller-property keys that get moved to the top level
// of the canonical record rather than left nested under properties.
var metaKeys = []string{
	"#app_id", "#bundle_id", "#android_id", "#gaid", "#dt_id", "#acid",
	"#event_time", "#event_syn",
}

// Input is what a façade call (Track, UserSet, ...) assembles before
// handing off to the validator.
type Input struct {
	DtID       string
	Acid       string
	EventName  string
	SendType   SendType
	Properties map[string]interface{}
	Meta       map[string]interface{}
}

// Record is the canonical post-validation record.
type Record struct {
	AppID      string                 `json:"#app_id"`
	BundleID   string                 `json:"#bundle_id"`
	EventName  string                 `json:"#event_name"`
	EventType  string                 `json:"#event_type"`
	EventTime  int64                  `json:"#event_time"`
	EventSyn   string                 `json:"#event_syn"`
	DtID       string                 `json:"#dt_id"`
	Acid       string                 `json:"#acid,omitempty"`
	AndroidID  string                 `json:"#android_id,omitempty"`
	Gaid       string                 `json:"#gaid,omitempty"`
	Debug      string                 `json:"debug,omitempty"`
	Properties map[string]interface{} `json:"properties"`
}

// Validator turns caller Input into canonical Records, injecting the
// app-wide identity fields and (optionally) the debug marker.
type Validator struct {
	AppID    string
	BundleID string
	Debug    bool
	Now      func() time.Time // overridable for tests
}

// NewValidator builds a Validator with real clock and randomness.
func NewValidator(appID, bundleID string, debug bool) *Validator {
	return &Validator{AppID: appID, BundleID: bundleID, Debug: debug, Now: time.Now}
}

// Build produces a canonical Record from Input.
func (v *Validator) Build(in Input) (*Record, error) {
	if in.DtID == "" && in.Acid == "" {
		return nil, logging.ErrMetaInvalid("dt_id/acid", "at least one of dt_id or acid is required")
	}
	if !nameRegex.MatchString(in.EventName) {
		return nil, logging.ErrMetaInvalid("event_name", fmt.Sprintf("event_name %q is not a valid name", in.EventName))
	}

	props := deepCopyMap(in.Properties)
	top := make(map[string]interface{})

	moveMeta(props, top)
	moveMeta(deepCopyMap(in.Meta), top) // lift from the caller's meta map without mutating it

	eventTime, err := resolveEventTime(top, v.Now)
	if err != nil {
		return nil, err
	}

	eventSyn, _ := top["#event_syn"].(string)
	if eventSyn == "" {
		eventSyn, err = randomSyn(16)
		if err != nil {
			return nil, logging.NewError(logging.ErrCodeInternal, "failed to generate event_syn").WithCause(err)
		}
	}

	// A non-empty string meta value lifted into top overrides the default.
	override := func(key, fallback string) string {
		if s, _ := top[key].(string); s != "" {
			return s
		}
		return fallback
	}

	dtID := override("#dt_id", in.DtID)
	if dtID == "" {
		dtID = zeroDtID
	}

	androidID, _ := top["#android_id"].(string)
	gaid, _ := top["#gaid"].(string)

	rec := &Record{
		AppID:      override("#app_id", v.AppID),
		BundleID:   override("#bundle_id", v.BundleID),
		EventName:  in.EventName,
		EventType:  string(in.SendType),
		EventTime:  eventTime,
		EventSyn:   eventSyn,
		DtID:       dtID,
		Acid:       override("#acid", in.Acid),
		AndroidID:  androidID,
		Gaid:       gaid,
		Properties: props,
	}
	if v.Debug {
		rec.Debug = "true"
	}

	if err := validateProperties(rec.EventName, string(in.SendType), props); err != nil {
		return nil, err
	}

	return rec, nil
}

func resolveEventTime(top map[string]interface{}, now func() time.Time) (int64, error) {
	if raw, ok := top["#event_time"]; ok {
		var ms int64
		switch v := raw.(type) {
		case int64:
			ms = v
		case int:
			ms = int64(v)
		case float64:
			ms = int64(v)
		default:
			return 0, logging.ErrMetaInvalid("#event_time", "event_time must be a 13-digit integer")
		}
		if ms < 1e12 || ms >= 1e13 {
			return 0, logging.ErrMetaInvalid("#event_time", "event_time must be a 13-digit integer")
		}
		return ms, nil
	}
	return now().UnixMilli(), nil
}

func moveMeta(source, target map[string]interface{}) {
	if source == nil {
		return
	}
	for _, key := range metaKeys {
		if v, ok := source[key]; ok {
			target[key] = v
			delete(source, key)
		}
	}
}

func deepCopyMap(m map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func randomSyn(n int) (string, error) {
	const alphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	buf := make([]byte, n)
	for i := range buf {
		idx, err := rand.Int(rand.Reader, big.NewInt(int64(len(alphabet))))
		if err != nil {
			return "", err
		}
		buf[i] = alphabet[idx.Int64()]
	}
	return string(buf), nil
}
