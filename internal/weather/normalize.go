package weather

import (
	"fmt"
	"iter"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"

	"github.com/i474232898/weather-etl/internal/logger"
)

// timestampKeys lists the entry fields a forecast time is read from, in priority order.
var timestampKeys = []string{"timestamp", "timestamp_utc", "datetime", "ob_time", "ts"}

// timestampLayouts are tried in order for string timestamps. Layouts without a
// zone are interpreted as UTC.
var timestampLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02:15", // Weatherbit "datetime"
}

// Outcome is the result of normalizing one forecast entry: either a record or a *FieldError.
type Outcome struct {
	Index  int
	Record WeatherRecord
	Err    error
}

// NormalizeOptions carries the per-run values stamped onto every record.
type NormalizeOptions struct {
	Provider string
	RunID    string
	Now      func() time.Time
}

// Batch is a validated payload whose entries are normalized lazily.
type Batch struct {
	City string

	country   string
	stateCode string
	lat       *float64
	lon       *float64

	entries  []any
	opts     NormalizeOptions
	consumed bool
}

// Normalize validates the top-level payload shape. A payload without a city
// label or a data array fails with *SchemaError and nothing is emitted.
func Normalize(p Payload, opts NormalizeOptions) (*Batch, error) {
	if p == nil {
		return nil, &SchemaError{Field: "data", Reason: "is missing (empty payload)"}
	}

	city, err := payloadCity(p)
	if err != nil {
		return nil, err
	}

	rawData, ok := p["data"]
	if !ok || rawData == nil {
		return nil, &SchemaError{Field: "data", Reason: "is missing"}
	}
	entries, ok := rawData.([]any)
	if !ok {
		return nil, &SchemaError{Field: "data", Reason: fmt.Sprintf("is %T, not an array", rawData)}
	}

	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Provider == "" {
		opts.Provider = ProviderWeatherbit
	}

	b := &Batch{
		City:    city,
		entries: entries,
		opts:    opts,
	}
	b.country, _ = p["country_code"].(string)
	b.stateCode, _ = p["state_code"].(string)
	b.lat = numberField(p, "lat", func(v any) {
		logger.Warnf("payload (city=%q): lat %v is not numeric; stored as null", city, v)
	})
	b.lon = numberField(p, "lon", func(v any) {
		logger.Warnf("payload (city=%q): lon %v is not numeric; stored as null", city, v)
	})
	return b, nil
}

func payloadCity(p Payload) (string, error) {
	for _, key := range []string{"city", "city_name"} {
		v, ok := p[key]
		if !ok || v == nil {
			continue
		}
		s, ok := v.(string)
		if !ok {
			return "", &SchemaError{Field: key, Reason: fmt.Sprintf("is %T, not a string", v)}
		}
		if s = strings.TrimSpace(s); s != "" {
			return s, nil
		}
	}
	return "", &SchemaError{Field: "city", Reason: "is missing"}
}

// Len is the number of raw entries in the payload, including ones that will fail.
func (b *Batch) Len() int {
	return len(b.entries)
}

// Outcomes yields one Outcome per entry. The sequence is single-pass: ranging
// over it a second time yields nothing.
func (b *Batch) Outcomes() iter.Seq[Outcome] {
	return func(yield func(Outcome) bool) {
		if b.consumed {
			return
		}
		b.consumed = true
		for i, raw := range b.entries {
			if !yield(b.normalizeEntry(i, raw)) {
				return
			}
		}
	}
}

func (b *Batch) normalizeEntry(i int, raw any) Outcome {
	entry, ok := raw.(map[string]any)
	if !ok {
		return Outcome{Index: i, Err: &FieldError{
			City: b.City, Index: i, Field: "entry", Reason: fmt.Sprintf("is %T, not an object", raw),
		}}
	}

	dt, rawTS, key, err := entryTimestamp(entry)
	if err != nil {
		return Outcome{Index: i, Err: &FieldError{
			City: b.City, Index: i, RawTimestamp: rawTS, Field: key, Reason: err.Error(),
		}}
	}
	// BSON dates hold milliseconds; keep dt and the id in step with what is stored.
	dt = dt.Truncate(time.Millisecond)

	warn := func(field string) func(any) {
		return func(v any) {
			logger.Warnf("entry %d (city=%q ts=%q): %s %v is not numeric; stored as null", i, b.City, rawTS, field, v)
		}
	}
	num := func(field string) *float64 {
		return numberField(entry, field, warn(field))
	}

	rec := WeatherRecord{
		ID:           RecordID(b.City, dt),
		City:         b.City,
		DT:           dt,
		RawTimestamp: rawTS,

		TempC:    num("temp"),
		RH:       num("rh"),
		PrecipMM: num("precip"),
		PopPct:   num("pop"),

		Provider:  b.opts.Provider,
		Country:   b.country,
		StateCode: b.stateCode,
		Lat:       b.lat,
		Lon:       b.lon,

		FeelsLikeC: num("app_temp"),
		DewptC:     num("dewpt"),
		WindMS:     num("wind_spd"),
		WindGustMS: num("wind_gust_spd"),
		WindDirDeg: num("wind_dir"),
		SnowMM:     num("snow"),
		CloudsPct:  num("clouds"),
		PresMB:     num("pres"),
		SlpMB:      num("slp"),
		VisKM:      num("vis"),
		UVIndex:    num("uv"),

		SnowDepthMM:  num("snow_depth"),
		CloudsLowPct: num("clouds_low"),
		CloudsMidPct: num("clouds_mid"),
		CloudsHiPct:  num("clouds_hi"),
		DHIWm2:       num("dhi"),
		DNIWm2:       num("dni"),
		GHIWm2:       num("ghi"),
		SolarRadWm2:  num("solar_rad"),
		OzoneDobson:  num("ozone"),

		RunID: b.opts.RunID,
	}

	var text struct {
		WindCdir     string `mapstructure:"wind_cdir"`
		WindCdirFull string `mapstructure:"wind_cdir_full"`
		Pod          string `mapstructure:"pod"`
	}
	if err := mapstructure.WeakDecode(pick(entry, "wind_cdir", "wind_cdir_full", "pod"), &text); err != nil {
		logger.Warnf("entry %d (city=%q ts=%q): %v", i, b.City, rawTS, err)
	}
	rec.WindCdir, rec.WindCdirFull, rec.Pod = text.WindCdir, text.WindCdirFull, text.Pod

	if wx, ok := entry["weather"].(map[string]any); ok {
		var cond struct {
			Description string `mapstructure:"description"`
			Icon        string `mapstructure:"icon"`
			Code        *int   `mapstructure:"code"`
		}
		if err := mapstructure.WeakDecode(wx, &cond); err != nil {
			logger.Warnf("entry %d (city=%q ts=%q): weather: %v", i, b.City, rawTS, err)
		}
		rec.Conditions, rec.WeatherIcon, rec.WeatherCode = cond.Description, cond.Icon, cond.Code
	}

	warnOutOfRange(i, rec)

	now := b.opts.Now().UTC().Truncate(time.Millisecond)
	rec.IngestedAt = now
	rec.UpdatedAt = now

	return Outcome{Index: i, Record: rec}
}

// entryTimestamp returns the parsed time, the raw source text and the key it came from.
func entryTimestamp(entry map[string]any) (time.Time, string, string, error) {
	for _, key := range timestampKeys {
		v, ok := entry[key]
		if !ok || v == nil {
			continue
		}
		switch tv := v.(type) {
		case string:
			s := strings.TrimSpace(tv)
			if s == "" {
				continue
			}
			if key == "ts" {
				secs, err := strconv.ParseInt(s, 10, 64)
				if err != nil {
					return time.Time{}, s, key, fmt.Errorf("is not unix seconds")
				}
				return time.Unix(secs, 0).UTC(), s, key, nil
			}
			for _, layout := range timestampLayouts {
				if t, err := time.Parse(layout, s); err == nil {
					return t.UTC(), s, key, nil
				}
			}
			return time.Time{}, s, key, fmt.Errorf("has unrecognized time format")
		case float64:
			raw := strconv.FormatFloat(tv, 'f', -1, 64)
			if math.IsNaN(tv) || math.IsInf(tv, 0) {
				return time.Time{}, raw, key, fmt.Errorf("is not a finite number")
			}
			return time.Unix(int64(tv), 0).UTC(), raw, key, nil
		default:
			return time.Time{}, fmt.Sprint(v), key, fmt.Errorf("is %T, not a time", v)
		}
	}
	return time.Time{}, "", "timestamp", fmt.Errorf("is missing")
}

// numberField coerces m[key] to a float. Absent, empty and null values give nil.
// Values that are present but not numeric also give nil and are reported via onMalformed.
func numberField(m map[string]any, key string, onMalformed func(any)) *float64 {
	v, ok := m[key]
	if !ok || v == nil {
		return nil
	}
	switch tv := v.(type) {
	case bool, map[string]any, []any:
		onMalformed(v)
		return nil
	case string:
		if strings.TrimSpace(tv) == "" {
			return nil
		}
		v = strings.TrimSpace(tv)
	}

	var f float64
	if err := mapstructure.WeakDecode(v, &f); err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		onMalformed(v)
		return nil
	}
	return &f
}

func pick(m map[string]any, keys ...string) map[string]any {
	out := make(map[string]any, len(keys))
	for _, k := range keys {
		if v, ok := m[k]; ok && v != nil {
			out[k] = v
		}
	}
	return out
}

// warnOutOfRange logs bounded fields that fall outside their range. The values
// are kept as-is; range validation belongs to downstream analytics.
func warnOutOfRange(i int, rec WeatherRecord) {
	check := func(name string, v *float64, lo, hi float64) {
		if v != nil && (*v < lo || *v > hi) {
			logger.Warnf("entry %d (city=%q ts=%q): %s=%v outside [%v, %v]; kept as-is",
				i, rec.City, rec.RawTimestamp, name, *v, lo, hi)
		}
	}
	check("rh", rec.RH, 0, 100)
	check("pop_pct", rec.PopPct, 0, 100)
	check("precip_mm", rec.PrecipMM, 0, math.MaxFloat64)
	check("clouds_low_pct", rec.CloudsLowPct, 0, 100)
	check("clouds_mid_pct", rec.CloudsMidPct, 0, 100)
	check("clouds_hi_pct", rec.CloudsHiPct, 0, 100)
}
