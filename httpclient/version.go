package httpclient

import (
	"fmt"
	"runtime"
	"strings"
)

// Version is the library version reported in the User-Agent header.
const Version = "1.4.0"

// UserAgent returns the client identification string sent with every request,
// e.g. "apiclient/1.4.0 (linux; Go/1.24.6)".
func UserAgent() string {
	return fmt.Sprintf("apiclient/%s (%s; Go/%s)", Version, runtime.GOOS, strings.TrimPrefix(runtime.Version(), "go"))
}
