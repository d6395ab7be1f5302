package config

import "github.com/andrew-solarstorm/go-packages/common"

type StoreConfig struct {
	// DBPath is the bolt file holding token metadata.
	DBPath string
	// PersistenceEnabled turns the token store on.
	PersistenceEnabled bool
}

func (c *StoreConfig) Key() string {
	return STORE_CONFIG_KEY
}

func (c *StoreConfig) Load() error {
	c.DBPath = common.GetEnvOrDefault("TOKEN_DB_PATH", "./data/tokens.db")
	c.PersistenceEnabled = common.GetEnvOrDefault("PERSISTENCE_ENABLED", "true") == "true"
	return nil
}

func (c *StoreConfig) Validate() error {
	return nil
}
