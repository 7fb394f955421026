package env

import (
	"bufio"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/cargorun/cargorun/internal/types"
	"github.com/yosuke-furukawa/json5/encoding/json5"
	"gopkg.in/yaml.v3"
)

// LoadEnvFile parses an env_files entry into an ordered env table. The
// format is selected by extension: ".json5" parses as a JSON5 object,
// ".yml"/".yaml" as a YAML mapping, anything else as KEY=VALUE lines with
// "#" comments. Value text is ${VAR}-expanded at load time against the
// already-materialized process environment.
func LoadEnvFile(path string) (*types.OrderedEnv, error) {
	switch {
	case strings.HasSuffix(path, ".json5"):
		return loadJSON5EnvFile(path)
	case strings.HasSuffix(path, ".yml"), strings.HasSuffix(path, ".yaml"):
		return loadYAMLEnvFile(path)
	default:
		return loadFlatEnvFile(path)
	}
}

func loadFlatEnvFile(path string) (*types.OrderedEnv, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening env file %q: %w", path, err)
	}
	defer f.Close()

	result := types.NewOrderedEnv()
	scanner := bufio.NewScanner(f)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		eq := strings.Index(line, "=")
		if eq < 0 {
			return nil, fmt.Errorf("%s:%d: malformed env file line %q, expected KEY=VALUE", path, lineNo, line)
		}
		key := strings.TrimSpace(line[:eq])
		value := Expand(line[eq+1:], os.LookupEnv)
		result.Set(key, types.EnvValue{Kind: types.EnvValueLiteral, Literal: value})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading env file %q: %w", path, err)
	}
	return result, nil
}

// loadJSON5EnvFile accepts a JSON5 object of scalar values. JSON object
// keys carry no declaration order through the decoder, so entries are
// added in sorted-key order for determinism.
func loadJSON5EnvFile(path string) (*types.OrderedEnv, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("opening env file %q: %w", path, err)
	}
	var doc map[string]interface{}
	if err := json5.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing env file %q: %w", path, err)
	}

	keys := make([]string, 0, len(doc))
	for k := range doc {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	result := types.NewOrderedEnv()
	for _, k := range keys {
		text, err := scalarToString(doc[k])
		if err != nil {
			return nil, fmt.Errorf("%s: key %q: %w", path, k, err)
		}
		result.Set(k, types.EnvValue{Kind: types.EnvValueLiteral, Literal: Expand(text, os.LookupEnv)})
	}
	return result, nil
}

// loadYAMLEnvFile accepts a YAML mapping of scalar values, decoded through
// yaml.Node so the mapping's declaration order survives.
func loadYAMLEnvFile(path string) (*types.OrderedEnv, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("opening env file %q: %w", path, err)
	}
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("parsing env file %q: %w", path, err)
	}

	result := types.NewOrderedEnv()
	if len(root.Content) == 0 {
		return result, nil
	}
	doc := root.Content[0]
	if doc.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("%s: env file must be a mapping of KEY: VALUE", path)
	}
	for i := 0; i+1 < len(doc.Content); i += 2 {
		key := doc.Content[i].Value
		valNode := doc.Content[i+1]
		if valNode.Kind != yaml.ScalarNode {
			return nil, fmt.Errorf("%s: key %q: value must be a scalar", path, key)
		}
		result.Set(key, types.EnvValue{Kind: types.EnvValueLiteral, Literal: Expand(valNode.Value, os.LookupEnv)})
	}
	return result, nil
}

func scalarToString(v interface{}) (string, error) {
	switch val := v.(type) {
	case string:
		return val, nil
	case bool:
		return strconv.FormatBool(val), nil
	case float64:
		if val == float64(int64(val)) {
			return strconv.FormatInt(int64(val), 10), nil
		}
		return strconv.FormatFloat(val, 'f', -1, 64), nil
	case nil:
		return "", nil
	default:
		return "", fmt.Errorf("value must be a scalar, got %T", v)
	}
}
