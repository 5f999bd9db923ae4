package env

const (
	// Prefix is the env variable prefix for all ratehub settings
	Prefix = "RATEHUB_"

	// DBURLSuffix is the env variable suffix for the Postgres DSN
	DBURLSuffix = "DB_URL"

	// APIKeySuffix is the env variable suffix for the fiat source credential
	APIKeySuffix = "EXCHANGERATE_API_KEY"
)
