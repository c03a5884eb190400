package weather

import (
	"time"
)

// ProviderWeatherbit is stamped on every record produced by the Weatherbit fetcher.
const ProviderWeatherbit = "weatherbit"

// WeatherRecord is the normalized staging document for one city and forecast hour.
// ID is derived from City and DT, so re-ingesting the same hour overwrites in place.
type WeatherRecord struct {
	ID   string    `bson:"_id" json:"id"`
	City string    `bson:"city" json:"city"`
	DT   time.Time `bson:"dt" json:"dt"` // always UTC

	TempC    *float64 `bson:"temp_c" json:"temp_c"`
	RH       *float64 `bson:"rh" json:"rh"`
	PrecipMM *float64 `bson:"precip_mm" json:"precip_mm"`
	PopPct   *float64 `bson:"pop_pct" json:"pop_pct"`

	Provider  string   `bson:"provider" json:"provider"`
	Country   string   `bson:"country,omitempty" json:"country,omitempty"`
	StateCode string   `bson:"state_code,omitempty" json:"state_code,omitempty"`
	Lat       *float64 `bson:"lat,omitempty" json:"lat,omitempty"`
	Lon       *float64 `bson:"lon,omitempty" json:"lon,omitempty"`

	FeelsLikeC   *float64 `bson:"feels_like_c,omitempty" json:"feels_like_c,omitempty"`
	DewptC       *float64 `bson:"dewpt_c,omitempty" json:"dewpt_c,omitempty"`
	WindMS       *float64 `bson:"wind_ms,omitempty" json:"wind_ms,omitempty"`
	WindGustMS   *float64 `bson:"wind_gust_ms,omitempty" json:"wind_gust_ms,omitempty"`
	WindDirDeg   *float64 `bson:"wind_dir_deg,omitempty" json:"wind_dir_deg,omitempty"`
	WindCdir     string   `bson:"wind_cdir,omitempty" json:"wind_cdir,omitempty"`
	WindCdirFull string   `bson:"wind_cdir_full,omitempty" json:"wind_cdir_full,omitempty"`
	SnowMM       *float64 `bson:"snow_mm,omitempty" json:"snow_mm,omitempty"`
	SnowDepthMM  *float64 `bson:"snow_depth_mm,omitempty" json:"snow_depth_mm,omitempty"`
	CloudsPct    *float64 `bson:"clouds_pct,omitempty" json:"clouds_pct,omitempty"`
	CloudsLowPct *float64 `bson:"clouds_low_pct,omitempty" json:"clouds_low_pct,omitempty"`
	CloudsMidPct *float64 `bson:"clouds_mid_pct,omitempty" json:"clouds_mid_pct,omitempty"`
	CloudsHiPct  *float64 `bson:"clouds_hi_pct,omitempty" json:"clouds_hi_pct,omitempty"`
	PresMB       *float64 `bson:"pres_mb,omitempty" json:"pres_mb,omitempty"`
	SlpMB        *float64 `bson:"slp_mb,omitempty" json:"slp_mb,omitempty"`
	VisKM        *float64 `bson:"vis_km,omitempty" json:"vis_km,omitempty"`
	UVIndex      *float64 `bson:"uv_index,omitempty" json:"uv_index,omitempty"`
	DHIWm2       *float64 `bson:"dhi_wm2,omitempty" json:"dhi_wm2,omitempty"`
	DNIWm2       *float64 `bson:"dni_wm2,omitempty" json:"dni_wm2,omitempty"`
	GHIWm2       *float64 `bson:"ghi_wm2,omitempty" json:"ghi_wm2,omitempty"`
	SolarRadWm2  *float64 `bson:"solar_rad_wm2,omitempty" json:"solar_rad_wm2,omitempty"`
	OzoneDobson  *float64 `bson:"ozone_dobson,omitempty" json:"ozone_dobson,omitempty"`
	Conditions   string   `bson:"conditions,omitempty" json:"conditions,omitempty"`
	WeatherCode  *int     `bson:"weather_code,omitempty" json:"weather_code,omitempty"`
	WeatherIcon  string   `bson:"weather_icon,omitempty" json:"weather_icon,omitempty"`
	Pod          string   `bson:"pod,omitempty" json:"pod,omitempty"`

	// RawTimestamp is the source value DT was parsed from. Kept for log context only.
	RawTimestamp string `bson:"-" json:"-"`

	RunID      string    `bson:"run_id,omitempty" json:"run_id,omitempty"`
	IngestedAt time.Time `bson:"ingested_at" json:"ingested_at"`
	UpdatedAt  time.Time `bson:"updated_at" json:"updated_at"`
}

// RecordID returns the deterministic identifier for a (city, dt) pair.
// dt is kept to the millisecond, the precision of a stored BSON date, so
// distinct stored pairs never collide. Whole-second times format as plain RFC3339.
func RecordID(city string, dt time.Time) string {
	return city + "|" + dt.UTC().Truncate(time.Millisecond).Format(time.RFC3339Nano)
}

// Payload is the decoded JSON body returned by a forecast endpoint.
type Payload map[string]any

// WriteOp describes what a single upsert did to the staging store.
type WriteOp int

const (
	WriteNoop WriteOp = iota
	WriteInserted
	WriteModified
)

func (o WriteOp) String() string {
	switch o {
	case WriteInserted:
		return "insert"
	case WriteModified:
		return "update"
	default:
		return "noop"
	}
}
