package config

import (
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Remote   RemoteConfig   `mapstructure:"remote"`
	Cache    CacheConfig    `mapstructure:"cache"`
	Schema   SchemaConfig   `mapstructure:"schema"`
	Kafka    KafkaConfig    `mapstructure:"kafka"`
	Auth     AuthConfig     `mapstructure:"auth"`
}

type ServerConfig struct {
	Port string `mapstructure:"port"`
	Env  string `mapstructure:"env"`
}

// DatabaseConfig points at the local sqlite store holding customers,
// instances and both cache tables.
type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

// RemoteConfig applies to every per-instance Postgres connection.
type RemoteConfig struct {
	Database       string        `mapstructure:"database"`
	SSLMode        string        `mapstructure:"sslmode"`
	DefaultPort    string        `mapstructure:"default_port"`
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
}

type CacheConfig struct {
	TenantTTL       time.Duration `mapstructure:"tenant_ttl"`
	InternalUserTTL time.Duration `mapstructure:"internal_user_ttl"`
}

// SchemaConfig names every remote table and column the resolver touches.
// It is turned into an immutable schema.Descriptor once at startup.
type SchemaConfig struct {
	TenantTable            string `mapstructure:"tenant_table"`
	TenantIDColumn         string `mapstructure:"tenant_id_column"`
	TenantNameColumn       string `mapstructure:"tenant_name_column"`
	TenantMatchColumn      string `mapstructure:"tenant_match_column"`
	TenantSubscriberColumn string `mapstructure:"tenant_subscriber_column"`

	UserTable              string `mapstructure:"user_table"`
	UserIDColumn           string `mapstructure:"user_id_column"`
	UserTenantColumn       string `mapstructure:"user_tenant_column"`
	UserTenantMatchMode    string `mapstructure:"user_tenant_match_mode"`
	UserSubscriberColumn   string `mapstructure:"user_subscriber_column"`
	UserAccountTypeColumn  string `mapstructure:"user_account_type_column"`
	UserFirstNameColumn    string `mapstructure:"user_first_name_column"`
	UserLastNameColumn     string `mapstructure:"user_last_name_column"`
	UserUsernameColumn     string `mapstructure:"user_username_column"`
	UserEmailColumn        string `mapstructure:"user_email_column"`
	UserPasswordColumn     string `mapstructure:"user_password_column"`
	UserRoleIDsColumn      string `mapstructure:"user_role_ids_column"`
	UserGroupIDsColumn     string `mapstructure:"user_group_ids_column"`
	UserStatusColumn       string `mapstructure:"user_status_column"`
	UserVerificationColumn string `mapstructure:"user_verification_column"`
	UserCreatedByColumn    string `mapstructure:"user_createdby_column"`
	UserUpdatedByColumn    string `mapstructure:"user_updatedby_column"`
	UserEmailSentColumn    string `mapstructure:"user_email_sent_column"`

	AccountTypePrimary string `mapstructure:"account_type_primary"`
	AccountTypeOAuth   string `mapstructure:"account_type_oauth"`

	RoleTable            string `mapstructure:"role_table"`
	RoleIDColumn         string `mapstructure:"role_id_column"`
	RoleNameColumn       string `mapstructure:"role_name_column"`
	RoleTenantColumn     string `mapstructure:"role_tenant_column"`
	RoleTenantMatchMode  string `mapstructure:"role_tenant_match_mode"`
	RoleSubscriberColumn string `mapstructure:"role_subscriber_column"`

	GroupTable            string `mapstructure:"group_table"`
	GroupIDColumn         string `mapstructure:"group_id_column"`
	GroupNameColumn       string `mapstructure:"group_name_column"`
	GroupTenantColumn     string `mapstructure:"group_tenant_column"`
	GroupTenantMatchMode  string `mapstructure:"group_tenant_match_mode"`
	GroupSubscriberColumn string `mapstructure:"group_subscriber_column"`

	DefaultRoleNames  []string `mapstructure:"default_role_names"`
	DefaultGroupNames []string `mapstructure:"default_group_names"`

	DefaultStatus             string `mapstructure:"default_status"`
	DefaultVerificationStatus string `mapstructure:"default_verification_status"`
	DefaultCreatedBy          string `mapstructure:"default_createdby"`
	DefaultUpdatedBy          string `mapstructure:"default_updatedby"`
	DefaultEmailSent          bool   `mapstructure:"default_email_sent"`
}

type KafkaConfig struct {
	Enabled         bool     `mapstructure:"enabled"`
	Brokers         []string `mapstructure:"brokers"`
	ConsumerGroupID string   `mapstructure:"consumer_group_id"`
	Topics          []string `mapstructure:"topics"`
}

type AuthConfig struct {
	// JWTSecret verifies HS256 bearer tokens issued by the portal frontend.
	JWTSecret string `mapstructure:"jwt_secret"`
	// DevBypass skips token verification outside production.
	DevBypass bool `mapstructure:"dev_bypass"`
}

// Load reads configuration from environment variables and config files.
// Environment variables override file values. Prefix: ONBOARDING_
func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("ONBOARDING")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Plain names kept from the portal's original environment.
	for key, env := range envAliases {
		_ = v.BindEnv(key, env)
	}

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	_ = v.ReadInConfig() // Not required

	var cfg Config
	if err := v.Unmarshal(&cfg, viper.DecodeHook(decodeHook())); err != nil {
		return nil, err
	}
	cfg.Schema.DefaultRoleNames = splitCSV(cfg.Schema.DefaultRoleNames)
	cfg.Schema.DefaultGroupNames = splitCSV(cfg.Schema.DefaultGroupNames)
	cfg.Kafka.Brokers = splitCSV(cfg.Kafka.Brokers)
	cfg.Kafka.Topics = splitCSV(cfg.Kafka.Topics)

	return &cfg, nil
}

// Default returns the built-in defaults without reading env or files.
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	var cfg Config
	_ = v.Unmarshal(&cfg, viper.DecodeHook(decodeHook()))
	return &cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8000")
	v.SetDefault("server.env", "development")
	v.SetDefault("database.path", "onboarding.db")

	v.SetDefault("remote.database", "quilr_auth")
	v.SetDefault("remote.sslmode", "prefer")
	v.SetDefault("remote.default_port", "5432")
	v.SetDefault("remote.connect_timeout", 30*time.Second)

	v.SetDefault("cache.tenant_ttl", 900*time.Second)
	v.SetDefault("cache.internal_user_ttl", 300*time.Second)

	v.SetDefault("schema.tenant_table", "public.tenant")
	v.SetDefault("schema.tenant_id_column", "id")
	v.SetDefault("schema.tenant_name_column", "name")
	v.SetDefault("schema.tenant_match_column", "name")
	v.SetDefault("schema.tenant_subscriber_column", "subscriberId")

	v.SetDefault("schema.user_table", "public.user")
	v.SetDefault("schema.user_id_column", "id")
	v.SetDefault("schema.user_tenant_column", "tenantId")
	v.SetDefault("schema.user_tenant_match_mode", "eq")
	v.SetDefault("schema.user_subscriber_column", "subscriberId")
	v.SetDefault("schema.user_account_type_column", "accountType")
	v.SetDefault("schema.user_first_name_column", "firstname")
	v.SetDefault("schema.user_last_name_column", "lastname")
	v.SetDefault("schema.user_username_column", "username")
	v.SetDefault("schema.user_email_column", "email")
	v.SetDefault("schema.user_password_column", "password")
	v.SetDefault("schema.user_role_ids_column", "roleIds")
	v.SetDefault("schema.user_group_ids_column", "groupIds")
	v.SetDefault("schema.user_status_column", "status")
	v.SetDefault("schema.user_verification_column", "verification_status")
	v.SetDefault("schema.user_createdby_column", "createdby")
	v.SetDefault("schema.user_updatedby_column", "updatedby")
	v.SetDefault("schema.user_email_sent_column", "emailSent")
	v.SetDefault("schema.account_type_primary", "credentials")
	v.SetDefault("schema.account_type_oauth", "oauth")

	v.SetDefault("schema.role_table", "public.roles")
	v.SetDefault("schema.role_id_column", "id")
	v.SetDefault("schema.role_name_column", "name")
	v.SetDefault("schema.group_table", "public.group")
	v.SetDefault("schema.group_id_column", "id")
	v.SetDefault("schema.group_name_column", "name")

	v.SetDefault("schema.default_status", "active")
	v.SetDefault("schema.default_verification_status", "unverified")
	v.SetDefault("schema.default_createdby", "OnboardingPortal")
	v.SetDefault("schema.default_updatedby", "OnboardingPortal")
	v.SetDefault("schema.default_email_sent", false)

	v.SetDefault("kafka.enabled", false)
	v.SetDefault("kafka.brokers", []string{"localhost:9092"})
	v.SetDefault("kafka.consumer_group_id", "onboarding-directory-group")
	v.SetDefault("kafka.topics", []string{"instance-events", "internal-user-events"})
}

var envAliases = map[string]string{
	"server.port":                     "PORT",
	"database.path":                   "DATABASE_PATH",
	"remote.database":                 "PG_DATABASE",
	"remote.sslmode":                  "PG_SSLMODE",
	"remote.connect_timeout":          "CONNECTION_TIMEOUT_SECONDS",
	"cache.tenant_ttl":                "TENANT_CACHE_TTL_SECONDS",
	"cache.internal_user_ttl":         "INTERNAL_USER_CACHE_TTL_SECONDS",
	"schema.tenant_table":             "TENANT_TABLE",
	"schema.tenant_id_column":         "TENANT_ID_COLUMN",
	"schema.tenant_name_column":       "TENANT_NAME_COLUMN",
	"schema.tenant_match_column":      "TENANT_MATCH_COLUMN",
	"schema.tenant_subscriber_column": "TENANT_SUBSCRIBER_COLUMN",
	"schema.user_table":               "USER_TABLE",
	"schema.user_tenant_column":       "USER_TENANT_COLUMN",
	"schema.user_tenant_match_mode":   "USER_TENANT_MATCH_MODE",
	"schema.user_subscriber_column":   "USER_SUBSCRIBER_COLUMN",
	"schema.user_account_type_column": "USER_ACCOUNT_TYPE_COLUMN",
	"schema.account_type_primary":     "USER_ACCOUNT_TYPE_VALUE",
	"schema.account_type_oauth":       "USER_ACCOUNT_TYPE_OAUTH_VALUE",
	"schema.role_table":               "ROLE_TABLE",
	"schema.role_tenant_column":       "ROLE_TENANT_COLUMN",
	"schema.role_tenant_match_mode":   "ROLE_TENANT_MATCH_MODE",
	"schema.role_subscriber_column":   "ROLE_SUBSCRIBER_COLUMN",
	"schema.group_table":              "GROUP_TABLE",
	"schema.group_tenant_column":      "GROUP_TENANT_COLUMN",
	"schema.group_tenant_match_mode":  "GROUP_TENANT_MATCH_MODE",
	"schema.group_subscriber_column":  "GROUP_SUBSCRIBER_COLUMN",
	"schema.default_role_names":       "DEFAULT_ROLE_NAMES",
	"schema.default_group_names":      "DEFAULT_GROUP_NAMES",
	"kafka.enabled":                   "KAFKA_ENABLED",
	"kafka.brokers":                   "KAFKA_BROKERS",
	"auth.jwt_secret":                 "AUTH_JWT_SECRET",
	"auth.dev_bypass":                 "DEV_AUTH_BYPASS",
}

// decodeHook keeps viper's default hooks and reads a bare number given for a
// duration as seconds, the unit of the portal's *_SECONDS variables.
func decodeHook() mapstructure.DecodeHookFunc {
	return mapstructure.ComposeDecodeHookFunc(
		secondsToDuration,
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	)
}

var durationType = reflect.TypeOf(time.Duration(0))

func secondsToDuration(from, to reflect.Type, data any) (any, error) {
	if to != durationType || from == durationType {
		return data, nil
	}
	switch v := data.(type) {
	case string:
		n, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return data, nil
		}
		return time.Duration(n * float64(time.Second)), nil
	case int:
		return time.Duration(v) * time.Second, nil
	case int64:
		return time.Duration(v) * time.Second, nil
	case float64:
		return time.Duration(v * float64(time.Second)), nil
	}
	return data, nil
}

// splitCSV flattens env-supplied "a,b" values into separate trimmed items.
func splitCSV(values []string) []string {
	var out []string
	for _, v := range values {
		for _, item := range strings.Split(v, ",") {
			if item = strings.TrimSpace(item); item != "" {
				out = append(out, item)
			}
		}
	}
	return out
}
