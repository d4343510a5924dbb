package station

import (
	"os"

	"github.com/denisbrodbeck/machineid"
	"github.com/golang/glog"
)

const appID = "eol-station"

// StationID retrieves the ID identifying this station in persisted
// records. It's derived from the machine ID, or the hostname if that
// isn't available.
func StationID() string {
	id, err := machineid.ProtectedID(appID)
	if err == nil {
		return id
	}
	glog.Warningf("machine ID unavailable: %v", err)
	host, err := os.Hostname()
	if err != nil {
		return "unknown"
	}
	return host
}
