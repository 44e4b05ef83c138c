package event

import (
	"bytes"
	"encoding/json"
	"math"
	"time"

	"github.com/ingestsdk/go-sdk/pkg/logging"
)

const (
	dateLayout     = "2006-01-02"
	dateTimeLayout = "2006-01-02 15:04:05.000"
)

// Serialize renders a Record to compact JSON, encoding any time.Time
// property as a date or datetime string rather than RFC3339, and
// rejecting NaN/Inf float values the way the original SDK's json
// encoder does.
func Serialize(rec *Record) (string, error) {
	encoded, err := encodeValue(toPlainMap(rec))
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := json.Compact(&buf, encoded); err != nil {
		return "", logging.NewError(logging.ErrCodeInternal, "failed to compact serialized event").WithCause(err)
	}
	return buf.String(), nil
}

// EncodeBatch mirrors the original SDK's batch serialization helper:
// each event is encoded independently and the results collected as a
// list of strings.
func EncodeBatch(records []*Record) ([]string, error) {
	out := make([]string, 0, len(records))
	for _, rec := range records {
		s, err := Serialize(rec)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

func toPlainMap(rec *Record) map[string]interface{} {
	m := map[string]interface{}{
		"#app_id":     rec.AppID,
		"#bundle_id":  rec.BundleID,
		"#event_name": rec.EventName,
		"#event_type": rec.EventType,
		"#event_time": rec.EventTime,
		"#event_syn":  rec.EventSyn,
		"#dt_id":      rec.DtID,
		"properties":  rec.Properties,
	}
	if rec.Acid != "" {
		m["#acid"] = rec.Acid
	}
	if rec.AndroidID != "" {
		m["#android_id"] = rec.AndroidID
	}
	if rec.Gaid != "" {
		m["#gaid"] = rec.Gaid
	}
	if rec.Debug != "" {
		m["debug"] = rec.Debug
	}
	return m
}

// encodeValue walks a decoded property tree and produces json.Marshal-
// ready output, intercepting time.Time (date-or-datetime formatting) and
// float64 (NaN/Inf rejection) before they reach encoding/json.
func encodeValue(v interface{}) (json.RawMessage, error) {
	switch val := v.(type) {
	case nil:
		return json.RawMessage("null"), nil
	case time.Time:
		return encodeTime(val)
	case float64:
		if math.IsNaN(val) || math.IsInf(val, 0) {
			return nil, logging.NewError(logging.ErrCodeIllegalData, "property value is NaN or Inf, which is not JSON-representable")
		}
		return json.Marshal(val)
	case map[string]interface{}:
		return encodeMap(val)
	case []interface{}:
		return encodeSlice(val)
	default:
		return json.Marshal(val)
	}
}

func encodeTime(t time.Time) (json.RawMessage, error) {
	var s string
	if t.Hour() == 0 && t.Minute() == 0 && t.Second() == 0 && t.Nanosecond() == 0 {
		s = t.Format(dateLayout)
	} else {
		s = t.Format(dateTimeLayout)
	}
	return json.Marshal(s)
}

func encodeMap(m map[string]interface{}) (json.RawMessage, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	first := true
	for k, v := range m {
		encoded, err := encodeValue(v)
		if err != nil {
			return nil, err
		}
		if !first {
			buf.WriteByte(',')
		}
		first = false
		keyJSON, _ := json.Marshal(k)
		buf.Write(keyJSON)
		buf.WriteByte(':')
		buf.Write(encoded)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func encodeSlice(s []interface{}) (json.RawMessage, error) {
	var buf bytes.Buffer
	buf.WriteByte('[')
	for i, v := range s {
		encoded, err := encodeValue(v)
		if err != nil {
			return nil, err
		}
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.Write(encoded)
	}
	buf.WriteByte(']')
	return buf.Bytes(), nil
}
