package event

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestValidator() *Validator {
	v := NewValidator("app-1", "com.example.bundle", false)
	v.Now = func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) }
	return v
}

func TestBuildRequiresDtIDOrAcid(t *testing.T) {
	v := newTestValidator()
	_, err := v.Build(Input{EventName: "purchase", SendType: SendTrack})
	require.Error(t, err)
}

func TestBuildRejectsInvalidName(t *testing.T) {
	v := newTestValidator()
	_, err := v.Build(Input{DtID: "abc", EventName: "1bad-name", SendType: SendTrack})
	require.Error(t, err)
}

func TestBuildInjectsZeroDtIDWhenMissing(t *testing.T) {
	v := newTestValidator()
	rec, err := v.Build(Input{Acid: "acid-1", EventName: "purchase", SendType: SendTrack})
	require.NoError(t, err)
	assert.Equal(t, zeroDtID, rec.DtID)
	assert.Len(t, zeroDtID, 40)
}

func TestBuildGeneratesEventSynWhenAbsent(t *testing.T) {
	v := newTestValidator()
	rec, err := v.Build(Input{DtID: "visitor-1", EventName: "purchase", SendType: SendTrack})
	require.NoError(t, err)
	assert.Len(t, rec.EventSyn, 16)
}

func TestBuildDefaultsEventTime(t *testing.T) {
	v := newTestValidator()
	rec, err := v.Build(Input{DtID: "visitor-1", EventName: "purchase", SendType: SendTrack})
	require.NoError(t, err)
	assert.NotZero(t, rec.EventTime)
}

func TestBuildHonorsExplicitEventTime(t *testing.T) {
	v := newTestValidator()
	rec, err := v.Build(Input{
		DtID: "visitor-1", EventName: "purchase", SendType: SendTrack,
		Properties: map[string]interface{}{"#event_time": int64(1700000000000)},
	})
	require.NoError(t, err)
	assert.EqualValues(t, 1700000000000, rec.EventTime)
}

func TestBuildMovesMetaKeysFromProperties(t *testing.T) {
	v := newTestValidator()
	rec, err := v.Build(Input{
		DtID: "visitor-1", EventName: "purchase", SendType: SendTrack,
		Properties: map[string]interface{}{
			"#acid":    "acid-from-props",
			"price":    9.99,
			"currency": "USD",
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "acid-from-props", rec.Acid)
	_, stillPresent := rec.Properties["#acid"]
	assert.False(t, stillPresent)
	assert.Equal(t, 9.99, rec.Properties["price"])
}

func TestBuildMovesMetaKeysFromMetaMap(t *testing.T) {
	v := newTestValidator()
	rec, err := v.Build(Input{
		DtID: "visitor-1", EventName: "purchase", SendType: SendTrack,
		Properties: map[string]interface{}{"price": 1.0},
		Meta:       map[string]interface{}{"#acid": "acid-from-meta"},
	})
	require.NoError(t, err)
	assert.Equal(t, "acid-from-meta", rec.Acid)
}

func TestBuildDoesNotMutateCallerProperties(t *testing.T) {
	v := newTestValidator()
	props := map[string]interface{}{"#acid": "acid-1", "price": 1.0}
	_, err := v.Build(Input{DtID: "visitor-1", EventName: "purchase", SendType: SendTrack, Properties: props})
	require.NoError(t, err)
	_, stillThere := props["#acid"]
	assert.True(t, stillThere, "Build must not mutate the caller's property map")
}

func TestBuildSetsDebugMarker(t *testing.T) {
	v := NewValidator("app-1", "bundle-1", true)
	v.Now = func() time.Time { return time.Now() }
	rec, err := v.Build(Input{DtID: "visitor-1", EventName: "purchase", SendType: SendTrack})
	require.NoError(t, err)
	assert.Equal(t, "true", rec.Debug)
}

func TestBuildValidatesPresetEventProperties(t *testing.T) {
	v := newTestValidator()
	_, err := v.Build(Input{
		DtID: "visitor-1", EventName: "#session_start", SendType: SendTrack,
		Properties: map[string]interface{}{"#is_first_time": true},
	})
	require.NoError(t, err)
}

func TestBuildRejectsUnknownPresetProperty(t *testing.T) {
	v := newTestValidator()
	_, err := v.Build(Input{
		DtID: "visitor-1", EventName: "#session_start", SendType: SendTrack,
		Properties: map[string]interface{}{"not_a_real_prop": true},
	})
	require.Error(t, err)
}

func TestBuildRejectsWrongTypeForPresetProperty(t *testing.T) {
	v := newTestValidator()
	_, err := v.Build(Input{
		DtID: "visitor-1", EventName: "#session_start", SendType: SendTrack,
		Properties: map[string]interface{}{"#is_first_time": "yes"},
	})
	require.Error(t, err)
}

func TestBuildAdMediationCodeIsAlwaysNumeric(t *testing.T) {
	v := newTestValidator()
	_, err := v.Build(Input{
		DtID: "visitor-1", EventName: "#ad_show", SendType: SendTrack,
		Properties: map[string]interface{}{"#ad_mediation_code": float64(12)},
	})
	require.NoError(t, err)

	_, err = v.Build(Input{
		DtID: "visitor-1", EventName: "#ad_show", SendType: SendTrack,
		Properties: map[string]interface{}{"#ad_mediation_code": "12"},
	})
	assert.Error(t, err, "#ad_mediation_code must be numeric, not the original SDK's string enum")
}

func TestBuildUserAddRequiresNumericValues(t *testing.T) {
	v := newTestValidator()
	_, err := v.Build(Input{
		DtID: "visitor-1", EventName: "#user_add", SendType: SendUser,
		Properties: map[string]interface{}{"coins": "not-a-number"},
	})
	require.Error(t, err)

	_, err = v.Build(Input{
		DtID: "visitor-1", EventName: "#user_add", SendType: SendUser,
		Properties: map[string]interface{}{"coins": 5},
	})
	require.NoError(t, err)
}

func TestBuildUserAppendRequiresListValues(t *testing.T) {
	v := newTestValidator()
	_, err := v.Build(Input{
		DtID: "visitor-1", EventName: "#user_append", SendType: SendUser,
		Properties: map[string]interface{}{"tags": "not-a-list"},
	})
	require.Error(t, err)

	_, err = v.Build(Input{
		DtID: "visitor-1", EventName: "#user_append", SendType: SendUser,
		Properties: map[string]interface{}{"tags": []interface{}{"a", "b"}},
	})
	require.NoError(t, err)
}

func TestBuildGenericEventRejectsInvalidPropertyName(t *testing.T) {
	v := newTestValidator()
	_, err := v.Build(Input{
		DtID: "visitor-1", EventName: "level_complete", SendType: SendTrack,
		Properties: map[string]interface{}{"1bad": "value"},
	})
	require.Error(t, err)
}

func TestBuildGenericEventRejectsUnsupportedValueType(t *testing.T) {
	v := newTestValidator()
	type custom struct{}
	_, err := v.Build(Input{
		DtID: "visitor-1", EventName: "level_complete", SendType: SendTrack,
		Properties: map[string]interface{}{"thing": custom{}},
	})
	require.Error(t, err)
}
