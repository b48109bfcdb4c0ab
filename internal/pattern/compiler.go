package pattern

import (
	"os"
	"regexp"

	"github.com/intentest/intentest/internal/model"
	interrors "github.com/intentest/intentest/pkg/errors"
)

var bindingRef = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// Compiler turns raw step text into CompiledSteps using the registry.
type Compiler struct {
	registry *Registry
}

// NewCompiler creates a compiler over the given registry.
func NewCompiler(registry *Registry) *Compiler {
	return &Compiler{registry: registry}
}

// Compile matches the raw text against the registry and finalizes
// parameter values: ${name} references are substituted from the supplied
// bindings (values saved by earlier steps), falling back to process
// environment variables. A reference with no binding in either place
// fails with ParameterBindingError. The parameter named "element" becomes
// the step's target descriptor and is lifted out of the parameter list.
func (c *Compiler) Compile(raw string, bindings map[string]string) (model.CompiledStep, error) {
	action, params, err := c.registry.Match(raw)
	if err != nil {
		return model.CompiledStep{}, err
	}

	step := model.CompiledStep{Raw: raw, Action: action}
	for _, p := range params {
		value, err := substituteBindings(p.Value, bindings, raw)
		if err != nil {
			return model.CompiledStep{}, err
		}
		if p.Name == "element" {
			step.Target = value
			continue
		}
		if value == "" {
			continue
		}
		step.Params = append(step.Params, model.Param{Name: p.Name, Value: value})
	}

	return step, nil
}

func substituteBindings(value string, bindings map[string]string, raw string) (string, error) {
	var missing string
	out := bindingRef.ReplaceAllStringFunc(value, func(ref string) string {
		name := bindingRef.FindStringSubmatch(ref)[1]
		if bound, ok := bindings[name]; ok {
			return bound
		}
		if env, ok := os.LookupEnv(name); ok {
			return env
		}
		if missing == "" {
			missing = name
		}
		return ref
	})

	if missing != "" {
		return "", interrors.NewParameterBindingError(missing, raw)
	}
	return out, nil
}
