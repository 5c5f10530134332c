package store

// schema is applied by Postgres.Migrate. Statements are idempotent.
var schema = []string{
    `CREATE TABLE IF NOT EXISTS zones (
        id BIGSERIAL PRIMARY KEY,
        tenant_id TEXT NOT NULL,
        batch_id TEXT NOT NULL,
        seq INT NOT NULL,
        label TEXT NOT NULL,
        center_lat DOUBLE PRECISION,
        center_lng DOUBLE PRECISION,
        member_stop_ids JSONB NOT NULL,
        member_count INT NOT NULL,
        zoom INT NOT NULL,
        created_at TIMESTAMPTZ NOT NULL DEFAULT now()
    )`,
    `CREATE INDEX IF NOT EXISTS zones_tenant_batch ON zones (tenant_id, batch_id, seq)`,
    `CREATE TABLE IF NOT EXISTS routes (
        id TEXT PRIMARY KEY,
        tenant_id TEXT NOT NULL,
        zone_id TEXT NOT NULL DEFAULT '',
        driver_id TEXT NOT NULL DEFAULT '',
        engine TEXT NOT NULL DEFAULT '',
        total_distance_km DOUBLE PRECISION NOT NULL,
        total_duration_sec BIGINT NOT NULL,
        stops JSONB NOT NULL,
        created_at TIMESTAMPTZ NOT NULL DEFAULT now()
    )`,
    `CREATE INDEX IF NOT EXISTS routes_tenant_created ON routes (tenant_id, created_at DESC, id DESC)`,
    `CREATE INDEX IF NOT EXISTS routes_tenant_slot ON routes (tenant_id, zone_id, driver_id)`,
    `CREATE TABLE IF NOT EXISTS plan_metrics (
        id BIGSERIAL PRIMARY KEY,
        tenant_id TEXT NOT NULL,
        run_date TEXT NOT NULL,
        engine TEXT NOT NULL,
        metrics JSONB NOT NULL,
        created_at TIMESTAMPTZ NOT NULL DEFAULT now()
    )`,
    `CREATE INDEX IF NOT EXISTS plan_metrics_tenant_date ON plan_metrics (tenant_id, run_date, engine)`,
}
