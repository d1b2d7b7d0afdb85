// internal/agent/determinism.go
package agent

import (
	"strings"

	"github.com/varga-labs/sherpa-cli/api/schemas"
)

// IsDeterministic reports whether a step can be executed directly against
// the DOM or an API, with no model in the loop. Selector params are usable
// in a browser context; explicit coordinates are also accepted. api_call
// steps always execute through their integration connector.
func IsDeterministic(step schemas.Step) bool {
	kind := strings.ReplaceAll(strings.ToLower(step.Action), "_", "")

	if kind == "apicall" {
		return true
	}
	if kind == "navigate" && step.Param("url") != "" {
		return true
	}
	if step.Param("selector") != "" {
		return true
	}
	if step.HasParam("x") && step.HasParam("y") {
		return true
	}
	if kind == "wait" {
		return true
	}
	if kind == "presskey" && step.Param("key") != "" {
		return true
	}
	if kind == "scroll" && step.Param("direction") != "" {
		return true
	}
	if kind == "selectoption" && step.Param("selector") != "" && step.Param("value") != "" {
		return true
	}
	if kind == "hover" && (step.Param("selector") != "" || (step.HasParam("x") && step.HasParam("y"))) {
		return true
	}
	if kind == "waitforelement" && step.Param("selector") != "" {
		return true
	}
	return false
}
