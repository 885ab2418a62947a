//go:build sonic

package transport

import (
	"github.com/bytedance/sonic"
)

var jsonMarshal = sonic.Marshal
var jsonUnmarshal = sonic.Unmarshal

// Marshal and Unmarshal expose the build-selected codec to other packages.
var Marshal = sonic.Marshal
var Unmarshal = sonic.Unmarshal
