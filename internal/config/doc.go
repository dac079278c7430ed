// Package config loads tabparse settings from the environment.
//
// An optional .env file is read first; variables already present in the
// environment take precedence. Recognised variables:
//
//	TABPARSE_DB_PATH             database file (default ~/.tabparse/tabparse.db)
//	TABPARSE_LOG_LEVEL           debug, info, warn or error (default info)
//	TABPARSE_LOG_FORMAT          text or json (default text)
//	TABPARSE_WORKERS             ingest workers, 0 for one per CPU
//	TABPARSE_BATCH_SIZE          records per insert batch (default 500)
//	TABPARSE_PATTERN_CACHE_SIZE  compiled patterns kept in memory (default 128)
//	TABPARSE_WATCH_DEBOUNCE      quiet period before re-ingesting (default 500ms)
package config
