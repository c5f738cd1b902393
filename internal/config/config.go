package config

import (
	"os"
)

type Config struct {
	AppPort string

	ZitadelDomain       string
	ZitadelPAT          string
	ZitadelClientID     string
	ZitadelClientSecret string
	ZitadelOrgID        string

	// Service user id of the hosted login flow. When set, list-users
	// callbacks triggered by any other actor pass through untouched.
	LoginClientUserID string

	ListUsersSigningKey   string
	SetSessionSigningKey  string
	SetPasswordSigningKey string

	LegacyBackend  string
	LegacySeedFile string

	RedisAddr     string
	RedisPassword string

	DatabaseDSN string
}

func Load() Config {

	cfg := Config{

		AppPort: getenv("APP_PORT", "8080"),

		ZitadelDomain:       os.Getenv("ZITADEL_DOMAIN"),
		ZitadelPAT:          os.Getenv("ZITADEL_PAT"),
		ZitadelClientID:     os.Getenv("ZITADEL_CLIENT_ID"),
		ZitadelClientSecret: os.Getenv("ZITADEL_CLIENT_SECRET"),
		ZitadelOrgID:        os.Getenv("ZITADEL_ORG_ID"),

		LoginClientUserID: os.Getenv("LOGIN_CLIENT_USER_ID"),

		ListUsersSigningKey:   os.Getenv("LIST_USERS_SIGNING_KEY"),
		SetSessionSigningKey:  os.Getenv("SET_SESSION_SIGNING_KEY"),
		SetPasswordSigningKey: os.Getenv("SET_PASSWORD_SIGNING_KEY"),

		LegacyBackend:  getenv("LEGACY_BACKEND", "memory"),
		LegacySeedFile: os.Getenv("LEGACY_SEED_FILE"),

		RedisAddr:     os.Getenv("REDIS_ADDR"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),

		DatabaseDSN: os.Getenv("DATABASE_DSN"),
	}

	return cfg

}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
