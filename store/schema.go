package store

// Schema is the complete clipper schema.
const Schema = `
-- Clipper accounts
CREATE TABLE IF NOT EXISTS users (
    id            TEXT PRIMARY KEY,
    username      TEXT NOT NULL UNIQUE,
    password_hash TEXT NOT NULL,
    status        TEXT NOT NULL DEFAULT 'active',
    created_at    INTEGER NOT NULL
);

-- Captured job records
CREATE TABLE IF NOT EXISTS job_records (
    id              TEXT PRIMARY KEY,
    owner_id        TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
    job_title       TEXT NOT NULL DEFAULT '',
    company_name    TEXT NOT NULL DEFAULT '',
    job_url         TEXT NOT NULL DEFAULT '',
    job_description TEXT NOT NULL DEFAULT '',
    created_at      INTEGER NOT NULL,
    updated_at      INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_job_records_owner ON job_records(owner_id, created_at DESC);
`
