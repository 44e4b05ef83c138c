package event

import "math"

// propKind is the declared type of a preset property value, mirroring
// the original Python SDK's (name, type) tuples in extra_verify.py.
type propKind int

const (
	kindString propKind = iota
	kindInt
	kindFloat
	kindBool
)

type presetProp struct {
	name string
	kind propKind
}

func (p propKind) matches(v interface{}) bool {
	switch p {
	case kindString:
		_, ok := v.(string)
		return ok
	case kindBool:
		_, ok := v.(bool)
		return ok
	case kindInt:
		switch n := v.(type) {
		case int, int64, int32:
			return true
		case float64:
			return n == math.Trunc(n) // JSON numbers decode as float64; accept whole-number floats
		}
		return false
	case kindFloat:
		switch v.(type) {
		case float64, float32, int, int64:
			return true
		}
		return false
	}
	return false
}

var presetPropsCommon = []presetProp{
	{"$uid", kindString}, {"#dt_id", kindString}, {"#acid", kindString},
	{"#event_syn", kindString}, {"#session_id", kindString},
	{"#device_manufacturer", kindString}, {"#event_name", kindString},
	{"#is_foreground", kindBool}, {"#android_id", kindString}, {"#gaid", kindString},
	{"#mcc", kindString}, {"#mnc", kindString}, {"#os_country_code", kindString},
	{"#os_lang_code", kindString}, {"#event_time", kindInt}, {"#bundle_id", kindString},
	{"#app_version_code", kindInt}, {"#app_version_name", kindString},
	{"#sdk_type", kindString}, {"#sdk_version_name", kindString}, {"#os", kindString},
	{"#os_version_name", kindString}, {"#os_version_code", kindInt},
	{"#device_brand", kindString}, {"#device_model", kindString}, {"#build_device", kindString},
	{"#screen_height", kindInt}, {"#screen_width", kindInt}, {"#memory_used", kindString},
	{"#storage_used", kindString}, {"#network_type", kindString}, {"#simulator", kindBool},
	{"#fps", kindInt}, {"$ip", kindString}, {"$country_code", kindString},
	{"$server_time", kindInt},
}

var presetPropsAd = []presetProp{
	{"#ad_seq", kindString}, {"#ad_id", kindString}, {"#ad_type_code", kindString},
	{"#ad_platform_code", kindString}, {"#ad_entrance", kindString}, {"#ad_result", kindBool},
	{"#ad_duration", kindInt}, {"#ad_location", kindString}, {"#errorCode", kindInt},
	{"#errorMessage", kindString}, {"#ad_value", kindString}, {"#ad_currency", kindString},
	{"#ad_precision", kindString}, {"#ad_country_code", kindString},
	// #ad_mediation_code is always stored as the numeric code, correcting
	// a prior string-typed enum bug in the field.
	{"#ad_mediation_code", kindInt},
	{"#ad_mediation_id", kindString}, {"#ad_conversion_source", kindString},
	{"#ad_click_gap", kindString}, {"#ad_return_gap", kindString},
	{"#error_code", kindString}, {"#error_message", kindString},
	{"#load_result", kindString}, {"#load_duration", kindString},
}

var presetPropsIAS = []presetProp{
	{"#ias_seq", kindString}, {"#ias_original_order", kindString}, {"#ias_order", kindString},
	{"#ias_sku", kindString}, {"#ias_price", kindFloat}, {"#ias_currency", kindString},
	{"$ias_price_exchange", kindFloat},
}

var presetEvents = map[string][]presetProp{
	"#app_install": {
		{"#referrer_url", kindString}, {"#referrer_click_time", kindInt}, {"#app_install_time", kindInt},
		{"#instant_experience_launched", kindBool}, {"#failed_reason", kindString}, {"#cnl", kindString},
	},
	"#session_start": {
		{"#is_first_time", kindBool}, {"#resume_from_background", kindBool}, {"#start_reason", kindString},
	},
	"$app_install": {
		{"$network_id", kindString}, {"$network_name", kindString}, {"$tracker_id", kindString},
		{"$tracker_name", kindString}, {"$channel_id", kindString}, {"$channel_sub_id", kindString},
		{"$channel_ssub_id", kindString}, {"$channel_name", kindString}, {"$channel_sub_name", kindString},
		{"$channel_ssub_name", kindString}, {"$channel_platform_id", kindInt},
		{"$channel_platform_name", kindString}, {"$attribution_source", kindString},
		{"$fraud_network_id", kindString}, {"$original_tracker_id", kindString},
		{"$original_tracker_name", kindString}, {"$original_network_id", kindString},
		{"$original_network_name", kindString},
	},
	"#session_end":     {{"#session_duration", kindInt}},
	"#ad_load_begin":   presetPropsAd,
	"#ad_load_end":     presetPropsAd,
	"#ad_to_show":      presetPropsAd,
	"#ad_show":         presetPropsAd,
	"#ad_show_failed":  presetPropsAd,
	"#ad_close":        presetPropsAd,
	"#ad_click":        presetPropsAd,
	"#ad_left_app":     presetPropsAd,
	"#ad_return_app":   presetPropsAd,
	"#ad_rewarded":     presetPropsAd,
	"#ad_conversion":   append(append([]presetProp{}, presetPropsAd...), presetProp{"$earnings", kindFloat}),
	"#ad_paid":         presetPropsAd,
	"#iap_purchase_success": {
		{"#iap_order", kindString}, {"#iap_sku", kindString}, {"#iap_price", kindFloat},
		{"#iap_currency", kindString}, {"$iap_price_exchange", kindFloat},
	},
	"#ias_subscribe_success": presetPropsIAS,
	"#ias_subscribe_notify": append(append([]presetProp{}, presetPropsIAS...),
		presetProp{"$original_ios_notification_type", kindString}),
}

// findPresetProp looks up a property's declared type for a preset event,
// falling back to the shared common-properties table.
func findPresetProp(eventName, propName string) (presetProp, bool) {
	for _, p := range presetEvents[eventName] {
		if p.name == propName {
			return p, true
		}
	}
	for _, p := range presetPropsCommon {
		if p.name == propName {
			return p, true
		}
	}
	return presetProp{}, false
}

func isPresetEvent(eventName string) bool {
	_, ok := presetEvents[eventName]
	return ok
}
