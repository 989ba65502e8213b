package compose

import (
	"github.com/kballard/go-shellquote"

	"devctl/internal/probe"
)

// Delivery decides how resolved variables reach the child process.
type Delivery interface {
	// Deliver returns inline NAME=value prefix tokens and child environment
	// entries for env, in resolution order.
	Deliver(env Env) (prefix []string, environ []string)
	Name() string
}

// inlineDelivery renders variables as a POSIX shell assignment prefix.
type inlineDelivery struct{}

func (inlineDelivery) Name() string { return "inline" }

func (inlineDelivery) Deliver(env Env) ([]string, []string) {
	prefix := make([]string, 0, env.Len())
	for _, v := range env.Vars() {
		prefix = append(prefix, v.Name+"="+shellquote.Join(v.Value))
	}
	return prefix, nil
}

// processDelivery writes every variable into the child's environment.
// cmd.exe has no inline assignment syntax.
type processDelivery struct{}

func (processDelivery) Name() string { return "environment" }

func (processDelivery) Deliver(env Env) ([]string, []string) {
	environ := make([]string, 0, env.Len())
	for _, v := range env.Vars() {
		environ = append(environ, v.String())
	}
	return nil, environ
}

// DeliveryFor selects the delivery strategy for a platform.
func DeliveryFor(p probe.Platform) Delivery {
	if p.IsWindows() {
		return processDelivery{}
	}
	return inlineDelivery{}
}
