/*
 * quaddb
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

/*
Package config holds the store's configuration. It follows the same
load-or-create JSON pattern EliasDB uses for its own server configuration.
*/
package config

import (
	"fmt"
	"strconv"

	"github.com/krotik/common/errorutil"
	"github.com/krotik/common/fileutil"
)

/*
DefaultConfigFile is the default config file name used when none is given.
*/
var DefaultConfigFile = "quaddb.config.json"

/*
Known configuration options.
*/
const (
	LocationDatastore   = "LocationDatastore"
	LockFile            = "LockFile"
	LockPollIntervalMs  = "LockPollIntervalMs"
	LockAcquireTimeoutMs = "LockAcquireTimeoutMs"
	PageCacheCapacity   = "PageCacheCapacity"
	EnableNamedGraphs   = "EnableNamedGraphs"
	GraphMode           = "GraphMode"
	EnableReadOnly      = "EnableReadOnly"
	CheckpointEveryN    = "CheckpointEveryN"
)

/*
DefaultConfig is the default configuration.
*/
var DefaultConfig = map[string]interface{}{
	LocationDatastore:    "db",
	LockFile:             "quaddb.lck",
	LockPollIntervalMs:   250,
	LockAcquireTimeoutMs: 5000,
	PageCacheCapacity:    4096,
	EnableNamedGraphs:    true,
	GraphMode:            "unified",
	EnableReadOnly:       false,
	CheckpointEveryN:     1000,
}

/*
Config is the actual configuration in use.
*/
var Config map[string]interface{}

/*
LoadConfigFile loads a given config file. If the config file does not
exist it is created with the default options.
*/
func LoadConfigFile(configfile string) error {
	var err error

	Config, err = fileutil.LoadConfig(configfile, DefaultConfig)

	return err
}

/*
LoadDefaultConfig loads the default configuration without touching disk.
*/
func LoadDefaultConfig() {
	data := make(map[string]interface{})
	for k, v := range DefaultConfig {
		data[k] = v
	}

	Config = data
}

/*
Str reads a config value as a string value.
*/
func Str(key string) string {
	return fmt.Sprint(Config[key])
}

/*
Int reads a config value as an int value.
*/
func Int(key string) int64 {
	ret, err := strconv.ParseInt(fmt.Sprint(Config[key]), 10, 64)

	errorutil.AssertTrue(err == nil,
		fmt.Sprintf("Could not parse config key %v: %v", key, err))

	return ret
}

/*
Bool reads a config value as a boolean value.
*/
func Bool(key string) bool {
	ret, err := strconv.ParseBool(fmt.Sprint(Config[key]))

	errorutil.AssertTrue(err == nil,
		fmt.Sprintf("Could not parse config key %v: %v", key, err))

	return ret
}
