package session

import (
	"errors"
	"os"
	"sort"
	"strings"
)

var errInvalidName = errors.New("invalid environment variable name")

// Env is an environment table keyed by variable name.
type Env map[string]string

// EnvFromList builds an Env from KEY=VALUE pairs; later pairs win.
func EnvFromList(list []string) Env {
	env := make(Env, len(list))
	for _, kv := range list {
		k, v, ok := strings.Cut(kv, "=")
		if !ok || k == "" {
			continue
		}
		env[k] = v
	}
	return env
}

// Clone returns an independent copy of e.
func (e Env) Clone() Env {
	out := make(Env, len(e))
	for k, v := range e {
		out[k] = v
	}
	return out
}

// Environ returns e as sorted KEY=VALUE pairs.
func (e Env) Environ() []string {
	out := make([]string, 0, len(e))
	for k, v := range e {
		out = append(out, k+"="+v)
	}
	sort.Strings(out)
	return out
}

// checkAssign rejects what setenv(3) rejects.
func checkAssign(name, value string) error {
	if name == "" || strings.ContainsAny(name, "=\x00") || strings.ContainsRune(value, 0) {
		return &os.SyscallError{Syscall: "setenv", Err: errInvalidName}
	}
	return nil
}
