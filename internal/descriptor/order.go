package descriptor

import "regexp"

// Task and env declarations in this descriptor format always appear as
// their own `[tasks.name]` / top-level `key = value` lines (the convention
// every example descriptor in the domain follows), so declaration order
// can be recovered by scanning the source text directly rather than
// walking a full TOML AST — go-toml/v2's interface{} decode target does
// not preserve table key order, and both the task and env tables must keep
// declaration order.
var (
	taskHeaderPattern = regexp.MustCompile(`(?m)^\s*\[tasks\.([A-Za-z0-9_.\-:]+)\]\s*$`)
	envKeyPattern     = regexp.MustCompile(`(?m)^\s*([A-Za-z_][A-Za-z0-9_]*)\s*=`)
	sectionPattern    = regexp.MustCompile(`(?m)^\s*\[([A-Za-z0-9_.\-:]+)\]\s*$`)
	inlineEnvPattern  = regexp.MustCompile(`(?m)^\s*env\s*=\s*\{(.*)\}`)
	inlineKeyPattern  = regexp.MustCompile(`([A-Za-z_][A-Za-z0-9_]*)\s*=`)
)

// taskDeclarationOrder returns task names in the order their [tasks.NAME]
// headers appear in the source text.
func taskDeclarationOrder(src []byte) []string {
	matches := taskHeaderPattern.FindAllSubmatch(src, -1)
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		out = append(out, string(m[1]))
	}
	return out
}

// envDeclarationOrder returns the key = value names declared directly
// inside the top-level [env] table, in source order, stopping at the next
// section header.
func envDeclarationOrder(src []byte) []string {
	section := extractSection(src, "env")
	if section == nil {
		return nil
	}
	matches := envKeyPattern.FindAllSubmatch(section, -1)
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		out = append(out, string(m[1]))
	}
	return out
}

// envProfileDeclarationOrder returns the order that `[env.PROFILE]`
// sub-table headers appear in, and for each profile the order of its own
// key = value lines.
func envProfileDeclarationOrder(src []byte) ([]string, map[string][]string) {
	profiles := []string{}
	keys := map[string][]string{}

	secStarts := sectionPattern.FindAllSubmatchIndex(src, -1)
	for i, m := range secStarts {
		name := string(src[m[2]:m[3]])
		if !hasPrefix(name, "env.") || hasPrefix(name, "env.") && countDots(name) != 1 {
			continue
		}
		profile := name[len("env."):]
		start := m[1]
		end := len(src)
		if i+1 < len(secStarts) {
			end = secStarts[i+1][0]
		}
		body := src[start:end]
		profiles = append(profiles, profile)
		ks := envKeyPattern.FindAllSubmatch(body, -1)
		for _, k := range ks {
			keys[profile] = append(keys[profile], string(k[1]))
		}
	}
	return profiles, keys
}

func extractSection(src []byte, name string) []byte {
	secStarts := sectionPattern.FindAllSubmatchIndex(src, -1)
	for i, m := range secStarts {
		sectionName := string(src[m[2]:m[3]])
		if sectionName != name {
			continue
		}
		start := m[1]
		end := len(src)
		if i+1 < len(secStarts) {
			end = secStarts[i+1][0]
		}
		return src[start:end]
	}
	// no explicit [env] header: env keys may be written as bare top-level
	// assignments before any section header.
	if name == "env" {
		if len(secStarts) == 0 {
			return src
		}
		return src[:secStarts[0][0]]
	}
	return nil
}

func hasPrefix(s, prefix string) bool {
	return len(s) >= len(prefix) && s[:len(prefix)] == prefix
}

func countDots(s string) int {
	n := 0
	for _, c := range s {
		if c == '.' {
			n++
		}
	}
	return n
}

// envTableOrders recovers the key declaration order of every env table
// other than the top-level [env]: dotted `[… .env]` section headers
// (e.g. [tasks.build.env], [tasks.build.linux.env]) and inline
// `env = { … }` assignments inside any section. Both forms are keyed by
// the owning table path ending in ".env", which is how decodeTask asks
// for them.
func envTableOrders(src []byte) map[string][]string {
	orders := map[string][]string{}

	secStarts := sectionPattern.FindAllSubmatchIndex(src, -1)
	for i, m := range secStarts {
		name := string(src[m[2]:m[3]])
		start := m[1]
		end := len(src)
		if i+1 < len(secStarts) {
			end = secStarts[i+1][0]
		}
		body := src[start:end]

		if name != "env" && hasSuffix(name, ".env") {
			for _, k := range envKeyPattern.FindAllSubmatch(body, -1) {
				orders[name] = append(orders[name], string(k[1]))
			}
			continue
		}
		if im := inlineEnvPattern.FindSubmatch(body); im != nil {
			for _, k := range inlineKeyPattern.FindAllSubmatch(im[1], -1) {
				orders[name+".env"] = append(orders[name+".env"], string(k[1]))
			}
		}
	}
	return orders
}

func hasSuffix(s, suffix string) bool {
	return len(s) >= len(suffix) && s[len(s)-len(suffix):] == suffix
}

