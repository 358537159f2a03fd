package config

// EnvPrefix is passed to envconfig; tags carry the full names already.
const EnvPrefix = ""

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	EnvDBDSN  = "COACHLY_DB_DSN"
	EnvDBHost = "COACHLY_DB_HOST"
	EnvDBUser = "COACHLY_DB_USER"
	EnvDBName = "COACHLY_DB_NAME"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
