//go:build !sonic

package transport

import (
	"github.com/goccy/go-json"
)

var jsonMarshal = json.Marshal
var jsonUnmarshal = json.Unmarshal

// Marshal and Unmarshal expose the build-selected codec to other packages.
var Marshal = json.Marshal
var Unmarshal = json.Unmarshal
