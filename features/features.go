// Package features holds the chat command handlers and the sinks deriving state from the event stream.
package features

import (
	"stream-lab/contract"
	"stream-lab/domain"
	"strings"
)

// Route is a set of command names served by one handler at one minimum role.
type Route struct {
	Handler contract.CommandHandler
	MinRole domain.Role
	Names   []string
}

// Registrar is satisfied by the command router.
type Registrar interface {
	Register(h contract.CommandHandler, minRole domain.Role, names ...string) error
}

// RegisterAll binds every route, stopping at the first refused one.
func RegisterAll(r Registrar, routes ...Route) error {
	for _, rt := range routes {
		if err := r.Register(rt.Handler, rt.MinRole, rt.Names...); err != nil {
			return err
		}
	}
	return nil
}

type nameSet map[string]struct{}

func newNameSet(routes ...[]string) nameSet {
	set := make(nameSet)
	for _, names := range routes {
		for _, n := range names {
			set[n] = struct{}{}
		}
	}
	return set
}

func (s nameSet) has(name string) bool {
	_, ok := s[name]
	return ok
}

func containsFold(text string, keywords []string) (string, bool) {
	lower := strings.ToLower(text)
	for _, k := range keywords {
		if k != "" && strings.Contains(lower, strings.ToLower(k)) {
			return k, true
		}
	}
	return "", false
}
