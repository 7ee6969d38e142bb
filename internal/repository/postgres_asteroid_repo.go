package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/neowatch/internal/model"
)

// PostgresAsteroidRepo はPostgreSQLを使用した天体リポジトリ。
type PostgresAsteroidRepo struct {
	db *sql.DB
}

// NewPostgresAsteroidRepo はPostgresAsteroidRepoを生成する。
func NewPostgresAsteroidRepo(db *sql.DB) *PostgresAsteroidRepo {
	return &PostgresAsteroidRepo{db: db}
}

// Upsert は天体と接近イベントを冪等にUPSERTする。
// 天体行と接近イベント行は同一トランザクションで更新する。
func (r *PostgresAsteroidRepo) Upsert(ctx context.Context, asteroid *model.Asteroid) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("トランザクションの開始に失敗しました: %w", err)
	}
	defer tx.Rollback()

	var orbitalData interface{}
	if len(asteroid.OrbitalData) > 0 {
		orbitalData = []byte(asteroid.OrbitalData)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO asteroids (neo_id, name, nasa_jpl_url, absolute_magnitude,
		                        diameter_min_km, diameter_max_km, diameter_min_m, diameter_max_m,
		                        is_hazardous, is_sentry, risk_score, risk_level,
		                        orbital_data, last_fetched, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, now(), now())
		 ON CONFLICT (neo_id) DO UPDATE SET
		    name = EXCLUDED.name,
		    nasa_jpl_url = EXCLUDED.nasa_jpl_url,
		    absolute_magnitude = EXCLUDED.absolute_magnitude,
		    diameter_min_km = EXCLUDED.diameter_min_km,
		    diameter_max_km = EXCLUDED.diameter_max_km,
		    diameter_min_m = EXCLUDED.diameter_min_m,
		    diameter_max_m = EXCLUDED.diameter_max_m,
		    is_hazardous = EXCLUDED.is_hazardous,
		    is_sentry = EXCLUDED.is_sentry,
		    risk_score = EXCLUDED.risk_score,
		    risk_level = EXCLUDED.risk_level,
		    orbital_data = COALESCE(EXCLUDED.orbital_data, asteroids.orbital_data),
		    last_fetched = EXCLUDED.last_fetched,
		    updated_at = now()`,
		asteroid.NeoID, asteroid.Name, asteroid.NasaJplURL, asteroid.AbsoluteMagnitude,
		asteroid.DiameterMinKm, asteroid.DiameterMaxKm, asteroid.DiameterMinM, asteroid.DiameterMaxM,
		asteroid.IsHazardous, asteroid.IsSentry, asteroid.RiskScore, string(asteroid.RiskLevel),
		orbitalData, asteroid.LastFetched,
	)
	if err != nil {
		return fmt.Errorf("天体のUPSERTに失敗しました: %w", err)
	}

	for _, approach := range asteroid.CloseApproaches {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO close_approaches (id, neo_id, approach_date, approach_datetime, epoch_ms,
			                               velocity_kmh, velocity_kms,
			                               miss_distance_km, miss_distance_au, miss_distance_lunar,
			                               orbiting_body)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
			 ON CONFLICT (neo_id, epoch_ms) DO UPDATE SET
			    approach_date = EXCLUDED.approach_date,
			    approach_datetime = EXCLUDED.approach_datetime,
			    velocity_kmh = EXCLUDED.velocity_kmh,
			    velocity_kms = EXCLUDED.velocity_kms,
			    miss_distance_km = EXCLUDED.miss_distance_km,
			    miss_distance_au = EXCLUDED.miss_distance_au,
			    miss_distance_lunar = EXCLUDED.miss_distance_lunar,
			    orbiting_body = EXCLUDED.orbiting_body`,
			uuid.New().String(), asteroid.NeoID, approach.Date, nullString(approach.DateTime),
			approach.EpochMs, approach.VelocityKmh, approach.VelocityKms,
			approach.MissDistanceKm, approach.MissDistanceAu, approach.MissDistanceLunar,
			approach.OrbitingBody,
		)
		if err != nil {
			return fmt.Errorf("接近イベントのUPSERTに失敗しました: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("トランザクションのコミットに失敗しました: %w", err)
	}
	return nil
}

// FindByNeoID は指定NEO IDの天体を接近イベント付きで取得する。見つからない場合はnilを返す。
func (r *PostgresAsteroidRepo) FindByNeoID(ctx context.Context, neoID string) (*model.Asteroid, error) {
	asteroid, err := r.scanAsteroid(r.db.QueryRowContext(ctx,
		`SELECT neo_id, name, nasa_jpl_url, absolute_magnitude,
		        diameter_min_km, diameter_max_km, diameter_min_m, diameter_max_m,
		        is_hazardous, is_sentry, risk_score, risk_level, orbital_data, last_fetched
		 FROM asteroids WHERE neo_id = $1`,
		neoID,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("天体の取得に失敗しました: %w", err)
	}

	approaches, err := r.loadApproaches(ctx, []string{asteroid.NeoID})
	if err != nil {
		return nil, err
	}
	asteroid.CloseApproaches = approaches[asteroid.NeoID]

	return asteroid, nil
}

// ListWithApproachInRange は指定日付範囲に接近イベントを持つ新鮮な天体を取得する。
func (r *PostgresAsteroidRepo) ListWithApproachInRange(ctx context.Context, startDate, endDate string, freshAfter time.Time) ([]model.Asteroid, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT neo_id, name, nasa_jpl_url, absolute_magnitude,
		        diameter_min_km, diameter_max_km, diameter_min_m, diameter_max_m,
		        is_hazardous, is_sentry, risk_score, risk_level, orbital_data, last_fetched
		 FROM asteroids a
		 WHERE a.last_fetched >= $3
		   AND EXISTS (
		       SELECT 1 FROM close_approaches ca
		       WHERE ca.neo_id = a.neo_id
		         AND ca.approach_date >= $1 AND ca.approach_date <= $2
		   )
		 ORDER BY a.neo_id`,
		startDate, endDate, freshAfter,
	)
	if err != nil {
		return nil, fmt.Errorf("期間内天体の一覧取得に失敗しました: %w", err)
	}
	defer rows.Close()

	asteroids, neoIDs, err := r.collectAsteroids(rows)
	if err != nil {
		return nil, err
	}

	return r.attachApproaches(ctx, asteroids, neoIDs)
}

// ListTopRisk はリスクスコア降順で天体を取得する。
func (r *PostgresAsteroidRepo) ListTopRisk(ctx context.Context, limit int) ([]model.Asteroid, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT neo_id, name, nasa_jpl_url, absolute_magnitude,
		        diameter_min_km, diameter_max_km, diameter_min_m, diameter_max_m,
		        is_hazardous, is_sentry, risk_score, risk_level, orbital_data, last_fetched
		 FROM asteroids
		 ORDER BY risk_score DESC, neo_id ASC
		 LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("高リスク天体の一覧取得に失敗しました: %w", err)
	}
	defer rows.Close()

	asteroids, neoIDs, err := r.collectAsteroids(rows)
	if err != nil {
		return nil, err
	}

	return r.attachApproaches(ctx, asteroids, neoIDs)
}

// DeleteStale はlast_fetchedがbeforeより古い天体を削除する。
func (r *PostgresAsteroidRepo) DeleteStale(ctx context.Context, before time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM asteroids WHERE last_fetched < $1`,
		before,
	)
	if err != nil {
		return 0, fmt.Errorf("古い天体の削除に失敗しました: %w", err)
	}
	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("削除件数の取得に失敗しました: %w", err)
	}
	return deleted, nil
}

// rowScanner はQueryRowContextとrows.Scanの共通インターフェース。
type rowScanner interface {
	Scan(dest ...interface{}) error
}

// scanAsteroid は天体行を1件読み取る。
func (r *PostgresAsteroidRepo) scanAsteroid(row rowScanner) (*model.Asteroid, error) {
	asteroid := &model.Asteroid{}
	var nasaJplURL, riskLevel sql.NullString
	var orbitalData []byte

	err := row.Scan(
		&asteroid.NeoID, &asteroid.Name, &nasaJplURL, &asteroid.AbsoluteMagnitude,
		&asteroid.DiameterMinKm, &asteroid.DiameterMaxKm, &asteroid.DiameterMinM, &asteroid.DiameterMaxM,
		&asteroid.IsHazardous, &asteroid.IsSentry, &asteroid.RiskScore, &riskLevel,
		&orbitalData, &asteroid.LastFetched,
	)
	if err != nil {
		return nil, err
	}

	asteroid.ID = asteroid.NeoID
	asteroid.NasaJplURL = nullStringValue(nasaJplURL)
	asteroid.RiskLevel = model.RiskLevel(nullStringValue(riskLevel))
	if len(orbitalData) > 0 {
		asteroid.OrbitalData = json.RawMessage(orbitalData)
	}

	return asteroid, nil
}

// collectAsteroids は結果セットの全天体行を読み取る。
func (r *PostgresAsteroidRepo) collectAsteroids(rows *sql.Rows) ([]model.Asteroid, []string, error) {
	var asteroids []model.Asteroid
	var neoIDs []string
	for rows.Next() {
		asteroid, err := r.scanAsteroid(rows)
		if err != nil {
			return nil, nil, fmt.Errorf("天体行の読み取りに失敗しました: %w", err)
		}
		asteroids = append(asteroids, *asteroid)
		neoIDs = append(neoIDs, asteroid.NeoID)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("天体一覧の走査に失敗しました: %w", err)
	}
	return asteroids, neoIDs, nil
}

// attachApproaches は天体一覧に接近イベントを紐付ける。
func (r *PostgresAsteroidRepo) attachApproaches(ctx context.Context, asteroids []model.Asteroid, neoIDs []string) ([]model.Asteroid, error) {
	if len(asteroids) == 0 {
		return []model.Asteroid{}, nil
	}
	approachesByNeoID, err := r.loadApproaches(ctx, neoIDs)
	if err != nil {
		return nil, err
	}
	for i := range asteroids {
		asteroids[i].CloseApproaches = approachesByNeoID[asteroids[i].NeoID]
	}
	return asteroids, nil
}

// loadApproaches は複数天体の接近イベントをepoch_ms昇順で一括取得する。
func (r *PostgresAsteroidRepo) loadApproaches(ctx context.Context, neoIDs []string) (map[string][]model.CloseApproach, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT neo_id, approach_date, approach_datetime, epoch_ms,
		        velocity_kmh, velocity_kms,
		        miss_distance_km, miss_distance_au, miss_distance_lunar, orbiting_body
		 FROM close_approaches
		 WHERE neo_id = ANY($1)
		 ORDER BY neo_id, epoch_ms ASC`,
		pqStringArray(neoIDs),
	)
	if err != nil {
		return nil, fmt.Errorf("接近イベントの一覧取得に失敗しました: %w", err)
	}
	defer rows.Close()

	result := make(map[string][]model.CloseApproach, len(neoIDs))
	for rows.Next() {
		var neoID string
		var approach model.CloseApproach
		var datetime sql.NullString

		if err := rows.Scan(
			&neoID, &approach.Date, &datetime, &approach.EpochMs,
			&approach.VelocityKmh, &approach.VelocityKms,
			&approach.MissDistanceKm, &approach.MissDistanceAu, &approach.MissDistanceLunar,
			&approach.OrbitingBody,
		); err != nil {
			return nil, fmt.Errorf("接近イベント行の読み取りに失敗しました: %w", err)
		}

		approach.DateTime = nullStringValue(datetime)
		result[neoID] = append(result[neoID], approach)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("接近イベントの走査に失敗しました: %w", err)
	}

	return result, nil
}

// compile-time interface check
var _ AsteroidRepository = (*PostgresAsteroidRepo)(nil)
