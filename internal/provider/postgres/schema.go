// Package postgres implements the Provider interface on a Postgres table.
package postgres

const schemaDDL = `
CREATE TABLE IF NOT EXISTS ci_stage_state (
    namespace   TEXT NOT NULL,
    stage_key   TEXT NOT NULL,
    run_id      BIGINT,
    completed   BOOLEAN NOT NULL DEFAULT FALSE,
    conclusion  TEXT,
    updated_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    PRIMARY KEY (namespace, stage_key)
);
`
