package version

import (
	"encoding/json"
	"os"

	"github.com/sirupsen/logrus"
)

// Version is set at build time with -ldflags "-X .../version.Version=1.2.3".
var Version = ""

type Info struct {
	Version string `json:"version"`
}

// Load prefers the linked-in version, then version.json in the working
// directory, then "0.0.0".
func Load(log logrus.FieldLogger) Info {
	if Version != "" {
		return Info{Version: Version}
	}
	data, err := os.ReadFile("version.json")
	if err != nil {
		log.WithError(err).Debug("could not read version.json")
		return Info{Version: "0.0.0"}
	}
	var info Info
	if err := json.Unmarshal(data, &info); err != nil || info.Version == "" {
		log.WithError(err).Warn("could not parse version.json")
		return Info{Version: "0.0.0"}
	}
	return info
}
