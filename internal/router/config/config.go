package config

import "github.com/spf13/viper"

// Config holds the application configuration.
type Config struct {
	ServerAddress  string `mapstructure:"SERVER_ADDRESS"`
	PostgresConn   string `mapstructure:"POSTGRES_CONN"`
	PostgresUser   string `mapstructure:"POSTGRES_USERNAME"`
	PostgresPass   string `mapstructure:"POSTGRES_PASSWORD"`
	PostgresHost   string `mapstructure:"POSTGRES_HOST"`
	PostgresPort   string `mapstructure:"POSTGRES_PORT"`
	PostgresDB     string `mapstructure:"POSTGRES_DATABASE"`
	MigrationURL   string `mapstructure:"MIGRATION_URL"`
	S3Endpoint     string `mapstructure:"S3_ENDPOINT"`
	S3Region       string `mapstructure:"S3_REGION"`
	S3Bucket       string `mapstructure:"S3_BUCKET"`
	S3AccessKey    string `mapstructure:"S3_ACCESS_KEY"`
	S3SecretKey    string `mapstructure:"S3_SECRET_KEY"`
	StandstillDays int    `mapstructure:"STANDSTILL_DAYS"`
}

// LoadConfig loads the configuration from an env file in path.
func LoadConfig(path string) (cfg Config, err error) {
	viper.AddConfigPath(path)
	viper.SetConfigName("app")
	viper.SetConfigType("env")

	err = viper.ReadInConfig()
	if err != nil {
		return
	}
	err = viper.Unmarshal(&cfg)
	return
}
