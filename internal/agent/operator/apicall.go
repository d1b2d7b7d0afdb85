// internal/agent/operator/apicall.go
package operator

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/varga-labs/sherpa-cli/api/schemas"
	"github.com/varga-labs/sherpa-cli/internal/integrations"
	"github.com/varga-labs/sherpa-cli/internal/store"
)

// APICaller executes api_call steps by dispatching to the integration
// connector named in the step, using the run owner's stored token.
type APICaller struct {
	registry *integrations.Registry
	runs     store.RunStore
	logger   *zap.Logger
}

func NewAPICaller(registry *integrations.Registry, runs store.RunStore, logger *zap.Logger) *APICaller {
	return &APICaller{registry: registry, runs: runs, logger: logger}
}

// ExecuteStep runs one api_call step. The step params name the service, the
// method, and a free-form args object. A result whose "ok" flag is false is
// an error so the driver's retry policy applies.
func (a *APICaller) ExecuteStep(ctx context.Context, userID string, step schemas.Step) (map[string]any, error) {
	service := step.Param("service")
	method := step.Param("method")
	if service == "" || method == "" {
		return nil, fmt.Errorf("api_call step %s is missing service or method", step.ID)
	}

	connector, ok := a.registry.Get(service)
	if !ok {
		return nil, fmt.Errorf("no connector registered for service %q", service)
	}

	token, err := a.runs.AccessToken(ctx, userID, service)
	if err != nil {
		return nil, fmt.Errorf("load %s token: %w", service, err)
	}
	if token == "" {
		return nil, fmt.Errorf("user has not connected %s", service)
	}

	args, _ := step.Params["args"].(map[string]any)
	if args == nil {
		args = map[string]any{}
	}

	a.logger.Info("Executing API call",
		zap.String("service", service),
		zap.String("method", method),
		zap.String("step_id", step.ID))

	result, err := connector.Execute(ctx, method, args, token)
	if err != nil {
		return nil, fmt.Errorf("%s.%s: %w", service, method, err)
	}
	if okFlag, _ := result["ok"].(bool); !okFlag {
		detail, _ := result["error"].(string)
		if detail == "" {
			detail = "service reported failure"
		}
		return result, fmt.Errorf("%s.%s failed: %s", service, method, detail)
	}
	return result, nil
}
