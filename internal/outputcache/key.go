package outputcache

import (
	"crypto/sha512"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"

	"github.com/cargorun/cargorun/internal/env"
	"github.com/cargorun/cargorun/internal/types"
)

// Key identifies one cached output set, a hex-encoded sha512 digest.
type Key string

// ComputeKey hashes together everything that should invalidate a cached
// output set for one step: its resolved environment, its command/script
// text, its declared output globs, and the hashes of the steps it depends
// on. Env values enter the hash through ToSecretHashable so a key never
// embeds raw values that may hold credentials.
func ComputeKey(taskName string, task *types.Task, resolvedEnv env.VariableMap, dependencyHashes []string) Key {
	h := sha512.New()

	fmt.Fprintf(h, "task=%s\n", taskName)

	for _, pair := range resolvedEnv.ToSecretHashable() {
		fmt.Fprintf(h, "env:%s\n", pair)
	}

	switch {
	case task.Command != nil:
		fmt.Fprintf(h, "command=%s %s\n", *task.Command, strings.Join(task.Args, " "))
	case task.Script != nil:
		for _, line := range flattenScript(task.Script) {
			fmt.Fprintf(h, "script=%s\n", line)
		}
	}

	outputs := append([]string(nil), task.CacheOutputs...)
	sort.Strings(outputs)
	for _, g := range outputs {
		fmt.Fprintf(h, "output-glob=%s\n", g)
	}

	for _, dep := range dependencyHashes {
		fmt.Fprintf(h, "dep=%s\n", dep)
	}

	return Key(hex.EncodeToString(h.Sum(nil)))
}

func flattenScript(s *types.ScriptValue) []string {
	switch {
	case s.PreMainPost != nil:
		var lines []string
		lines = append(lines, s.PreMainPost.Pre...)
		lines = append(lines, s.PreMainPost.Main...)
		lines = append(lines, s.PreMainPost.Post...)
		return lines
	case s.File != nil:
		return []string{"file:" + s.File.Path}
	default:
		return s.Lines
	}
}
