package main

import (
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/fluxcd/artifactory-worker/config"
	"github.com/fluxcd/artifactory-worker/pipeline"
	"github.com/fluxcd/artifactory-worker/registry"
)

// defineConfigFlags defines the flags that can also be set in a
// config file or the environment. Each is bound to the field of
// config.Config with the same mapstructure name.
func defineConfigFlags(fs *pflag.FlagSet, v *viper.Viper, bail func(error)) {

	bind := func(fieldName, flagName string) error {
		configStruct := reflect.TypeOf(config.Config{})
		field, ok := configStruct.FieldByName(fieldName)
		if !ok {
			return fmt.Errorf("attempt to bind a flag to a field not present in config.Config, %q", fieldName)
		}
		mappedName := strings.Split(field.Tag.Get("mapstructure"), ",")[0]
		if mappedName == "" || mappedName == "-" {
			return fmt.Errorf("attempt to bind a flag to a config field without a name, %q", field.Name)
		}
		return v.BindPFlag(mappedName, fs.Lookup(flagName))
	}

	bindOrBail := func(fieldName, flagName string) {
		if err := bind(fieldName, flagName); err != nil {
			bail(err)
		}
	}

	defineString := func(fieldName, flagName, def, desc string) {
		fs.String(flagName, def, desc)
		bindOrBail(fieldName, flagName)
	}

	defineDuration := func(fieldName, flagName string, def time.Duration, desc string) {
		fs.Duration(flagName, def, desc)
		bindOrBail(fieldName, flagName)
	}

	defineString("ListenMetrics", "listen-metrics", ":3031", "listen address for /metrics endpoint; empty to disable")
	defineString("Region", "region", "", "AWS region of the pipeline; when not supplied, it is taken from local AWS config or the EC2 metadata service")

	// the custom action
	defineString("ActionProvider", "action-provider", pipeline.DefaultProvider, "provider name of the custom action to poll jobs for")
	defineString("ActionVersion", "action-version", pipeline.DefaultVersion, "version of the custom action to poll jobs for; may also be given as the only argument")
	defineDuration("PollInterval", "poll-interval", pipeline.DefaultPollInterval, "period at which to poll for jobs when there are none")

	defineString("TempDir", "tmp-dir", "", "directory in which job workspaces are created; the system default if not supplied")

	// publishing
	defineString("NPM", "npm", registry.DefaultNPM, "npm executable")
	defineString("NPMRC", "npmrc", "", "npm config file the registry credential is written to while publishing; default ~/.npmrc")
	defineString("NPMCache", "npm-cache", "", "npm cache directory, emptied after every job; default ~/.npm")
	defineDuration("HTTPTimeout", "http-timeout", registry.DefaultHTTPTimeout, "timeout for Artifactory token requests and generic uploads")
}

// loadConfig reads the config file, if there is one, and overlays
// the environment and flags.
func loadConfig(v *viper.Viper, file string, positional []string) (config.Config, error) {
	v.SetEnvPrefix(config.EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.SetConfigName(config.ConfigName)
		v.SetConfigType(config.ConfigType)
		v.AddConfigPath(config.ConfigPath)
	}
	if err := v.ReadInConfig(); err != nil {
		if _, notFound := err.(viper.ConfigFileNotFoundError); !notFound || file != "" {
			return config.Config{}, err
		}
	}

	var conf config.Config
	if err := v.Unmarshal(&conf); err != nil {
		return conf, err
	}
	// compatibility with running the worker as `worker <version>`
	switch len(positional) {
	case 0:
	case 1:
		conf.ActionVersion = positional[0]
	default:
		return conf, fmt.Errorf("expected at most one argument, the custom action version; got %d", len(positional))
	}
	return conf, conf.Validate()
}
