package config

import (
	"github.com/spf13/viper"

	"github.com/storyspoiler/spoilercheck/internal/acceptance"
	"github.com/storyspoiler/spoilercheck/internal/client"
)

// setDefaults registers every key so environment variables are picked up
// by Unmarshal even when no config file mentions them.
func setDefaults(v *viper.Viper) {
	v.SetDefault("base_url", "")
	v.SetDefault("username", "")
	v.SetDefault("password", "")

	v.SetDefault("timeout", client.DefaultTimeout)
	v.SetDefault("rate_limit", 0.0)
	v.SetDefault("rate_burst", 1)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")

	v.SetDefault("suite.removal_checks", false)

	exp := acceptance.DefaultExpectations()
	v.SetDefault("expect.created", exp.Created)
	v.SetDefault("expect.edited", exp.Edited)
	v.SetDefault("expect.deleted", exp.Deleted)
	v.SetDefault("expect.edit_missing", exp.EditMissing)
	v.SetDefault("expect.delete_missing", exp.DeleteMissing)
}
