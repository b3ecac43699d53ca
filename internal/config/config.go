package config

import "github.com/spf13/afero"

const (
	vendorName     = "tacusci"
	appName        = "snapwatch"
	configFileName = "config.json"
	configEnvVar   = "SNAPWATCH_CONFIG"
)

var fs afero.Fs = afero.NewOsFs()
