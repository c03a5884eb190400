// Package warehouse runs the read-only validation and reporting queries
// against the replicated weather table.
package warehouse

import (
	"context"
	"errors"
	"fmt"
	"regexp"

	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/i474232898/weather-etl/internal/logger"
)

var identifier = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// ErrInvalidTable is returned for table names that are not plain identifiers.
var ErrInvalidTable = errors.New("invalid warehouse table name")

// CityStat is one row of the per-city rollup.
type CityStat struct {
	City          string   `gorm:"column:city" json:"city"`
	Records       int64    `gorm:"column:records" json:"records"`
	AvgTempC      *float64 `gorm:"column:avg_temp_c" json:"avg_temp_c"`
	MinTempC      *float64 `gorm:"column:min_temp_c" json:"min_temp_c"`
	MaxTempC      *float64 `gorm:"column:max_temp_c" json:"max_temp_c"`
	TotalPrecipMM *float64 `gorm:"column:total_precip_mm" json:"total_precip_mm"`
	LastUpdatedAt string   `gorm:"column:last_updated_at" json:"last_updated_at"`
}

// HotHour is a forecast hour ranked by temperature within its city.
type HotHour struct {
	City  string  `gorm:"column:city" json:"city"`
	DT    string  `gorm:"column:dt" json:"dt"`
	TempC float64 `gorm:"column:temp_c" json:"temp_c"`
	Rank  int     `gorm:"column:rnk" json:"rank"`
}

// DuplicateID is an id that occurs more than once in the table.
type DuplicateID struct {
	ID    string `gorm:"column:id" json:"id"`
	Count int64  `gorm:"column:n" json:"count"`
}

// Summary is the dedup check: a clean table has no duplicate ids.
type Summary struct {
	Rows         int64         `json:"rows"`
	DuplicateIDs []DuplicateID `json:"duplicate_ids"`
}

// Warehouse queries one table. It never writes.
type Warehouse struct {
	db    *gorm.DB
	table string
}

// Dialector maps a driver name to its gorm dialector.
func Dialector(driver, dsn string) (gorm.Dialector, error) {
	switch driver {
	case "sqlite":
		return sqlite.Open(dsn), nil
	case "postgres":
		return postgres.Open(dsn), nil
	case "mysql":
		return mysql.Open(dsn), nil
	default:
		return nil, fmt.Errorf("unsupported warehouse driver %q", driver)
	}
}

// Open connects to the warehouse.
func Open(driver, dsn, table string) (*Warehouse, error) {
	dialector, err := Dialector(driver, dsn)
	if err != nil {
		return nil, err
	}
	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open warehouse connection: %w", err)
	}
	logger.Infof("connected to %s warehouse, table %s", driver, table)
	return New(db, table)
}

// New wraps an open connection.
func New(db *gorm.DB, table string) (*Warehouse, error) {
	if !identifier.MatchString(table) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidTable, table)
	}
	return &Warehouse{db: db, table: table}, nil
}

func (w *Warehouse) Close() error {
	sqlDB, err := w.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Count returns the number of rows in the table.
func (w *Warehouse) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := w.db.WithContext(ctx).Table(w.table).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("count %s: %w", w.table, err)
	}
	return n, nil
}

// DuplicateIDs lists ids present more than once, most duplicated first.
func (w *Warehouse) DuplicateIDs(ctx context.Context) ([]DuplicateID, error) {
	var out []DuplicateID
	err := w.db.WithContext(ctx).
		Table(w.table).
		Select("id, COUNT(*) AS n").
		Group("id").
		Having("COUNT(*) > ?", 1).
		Order("n DESC, id").
		Scan(&out).Error
	if err != nil {
		return nil, fmt.Errorf("duplicate ids in %s: %w", w.table, err)
	}
	return out, nil
}

// Summarize runs Count and DuplicateIDs.
func (w *Warehouse) Summarize(ctx context.Context) (Summary, error) {
	rows, err := w.Count(ctx)
	if err != nil {
		return Summary{}, err
	}
	dups, err := w.DuplicateIDs(ctx)
	if err != nil {
		return Summary{}, err
	}
	if dups == nil {
		dups = []DuplicateID{}
	}
	return Summary{Rows: rows, DuplicateIDs: dups}, nil
}

// CityStats groups the table by city.
func (w *Warehouse) CityStats(ctx context.Context) ([]CityStat, error) {
	var out []CityStat
	err := w.db.WithContext(ctx).
		Table(w.table).
		Select(`city,
			COUNT(*) AS records,
			AVG(temp_c) AS avg_temp_c,
			MIN(temp_c) AS min_temp_c,
			MAX(temp_c) AS max_temp_c,
			SUM(precip_mm) AS total_precip_mm,
			MAX(updated_at) AS last_updated_at`).
		Group("city").
		Order("city").
		Scan(&out).Error
	if err != nil {
		return nil, fmt.Errorf("city stats for %s: %w", w.table, err)
	}
	return out, nil
}

// HottestHours returns, per city, the limit hours with the highest
// temperature. Ties are broken by the earlier hour; rows without a
// temperature are ignored.
func (w *Warehouse) HottestHours(ctx context.Context, limit int) ([]HotHour, error) {
	if limit < 1 {
		return nil, fmt.Errorf("limit must be positive, got %d", limit)
	}
	db := w.db.WithContext(ctx)

	ranked := db.Table(w.table).
		Select("city, dt, temp_c, ROW_NUMBER() OVER (PARTITION BY city ORDER BY temp_c DESC, dt) AS rnk").
		Where("temp_c IS NOT NULL")

	var out []HotHour
	err := db.Table("(?) AS ranked", ranked).
		Select("city, dt, temp_c, rnk").
		Where("rnk <= ?", limit).
		Order("city, rnk").
		Scan(&out).Error
	if err != nil {
		return nil, fmt.Errorf("hottest hours in %s: %w", w.table, err)
	}
	return out, nil
}
