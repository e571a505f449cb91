package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/nadavgil/water-metering-collector/internal/db"
)

// Repository archives normalized readings and account snapshots
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new repository
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// UpsertAccount stores the per-cycle account snapshot, replacing the prior
// row for the same account number
func (r *Repository) UpsertAccount(ctx context.Context, account *db.AccountSnapshot) error {
	query := `
		INSERT INTO accounts (
			account_number, email, first_name, last_name,
			municipal_id, municipal_name, municipal_phone, municipal_email,
			vacations, alerts, messages, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (account_number) DO UPDATE SET
			email = EXCLUDED.email,
			first_name = EXCLUDED.first_name,
			last_name = EXCLUDED.last_name,
			municipal_id = EXCLUDED.municipal_id,
			municipal_name = EXCLUDED.municipal_name,
			municipal_phone = EXCLUDED.municipal_phone,
			municipal_email = EXCLUDED.municipal_email,
			vacations = EXCLUDED.vacations,
			alerts = EXCLUDED.alerts,
			messages = EXCLUDED.messages,
			updated_at = EXCLUDED.updated_at
	`

	_, err := r.pool.Exec(ctx, query,
		account.AccountNumber,
		account.Email,
		account.FirstName,
		account.LastName,
		account.MunicipalID,
		account.MunicipalName,
		account.MunicipalPhone,
		account.MunicipalEmail,
		account.Vacations,
		account.Alerts,
		account.Messages,
		account.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert account snapshot: %w", err)
	}

	return nil
}

// InsertMeterReading archives one normalized reading. A re-collected
// (meter, reading date) pair replaces the prior row instead of duplicating it
func (r *Repository) InsertMeterReading(ctx context.Context, reading *db.NormalizedReading) error {
	if reading.ID == uuid.Nil {
		reading.ID = uuid.New()
	}
	if reading.CollectedAt.IsZero() {
		reading.CollectedAt = time.Now()
	}

	query := `
		INSERT INTO meter_readings (
			id, account_number, meter_id, serial_number, reading_date,
			last_read, today_consumption, yesterday_consumption,
			monthly_consumption, consumption_forecast,
			validation_status, anomaly_reason, collected_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (meter_id, reading_date) DO UPDATE SET
			last_read = EXCLUDED.last_read,
			today_consumption = EXCLUDED.today_consumption,
			yesterday_consumption = EXCLUDED.yesterday_consumption,
			monthly_consumption = EXCLUDED.monthly_consumption,
			consumption_forecast = EXCLUDED.consumption_forecast,
			validation_status = EXCLUDED.validation_status,
			anomaly_reason = EXCLUDED.anomaly_reason,
			collected_at = EXCLUDED.collected_at
	`

	_, err := r.pool.Exec(ctx, query,
		reading.ID,
		reading.AccountNumber,
		reading.MeterID,
		reading.SerialNumber,
		reading.ReadingDate,
		reading.LastRead,
		reading.TodayConsumption,
		reading.YesterdayConsumption,
		reading.MonthlyConsumption,
		reading.ConsumptionForecast,
		reading.ValidationStatus,
		reading.AnomalyReason,
		reading.CollectedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert meter reading: %w", err)
	}

	return nil
}

// RecentDailyConsumption returns the most recent archived daily consumption
// values for a meter, newest first, for spike detection
func (r *Repository) RecentDailyConsumption(ctx context.Context, meterID string, limit int) ([]float64, error) {
	query := `
		SELECT today_consumption
		FROM meter_readings
		WHERE meter_id = $1 AND today_consumption IS NOT NULL
		ORDER BY reading_date DESC
		LIMIT $2
	`

	rows, err := r.pool.Query(ctx, query, meterID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query recent consumption: %w", err)
	}
	defer rows.Close()

	var values []float64
	for rows.Next() {
		var value float64
		if err := rows.Scan(&value); err != nil {
			return nil, fmt.Errorf("failed to scan consumption value: %w", err)
		}
		values = append(values, value)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read consumption rows: %w", err)
	}

	return values, nil
}
