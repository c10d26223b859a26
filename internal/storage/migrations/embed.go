package migrations

import "embed"

// PostgresFS embeds the PostgreSQL schema migrations.
//
//go:embed postgres/*.sql
var PostgresFS embed.FS

// ClickhouseFS embeds the ClickHouse transfer archive migrations.
//
//go:embed clickhouse/*.sql
var ClickhouseFS embed.FS
