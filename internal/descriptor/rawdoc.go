package descriptor

// rawDoc is a TOML document decoded generically (go-toml/v2 into
// interface{}), used because Task's fields are untagged polymorphic
// variants that a single tagged struct cannot unmarshal directly. Each
// variant's shape-matching lives in variants.go, trying candidate shapes in
// declared order: the first matching shape wins.
type rawDoc = map[string]interface{}

func asMap(v interface{}) rawDoc {
	if m, ok := v.(rawDoc); ok {
		return m
	}
	return nil
}

func asSlice(v interface{}) []interface{} {
	if s, ok := v.([]interface{}); ok {
		return s
	}
	return nil
}

func asString(v interface{}) (string, bool) {
	s, ok := v.(string)
	return s, ok
}

func asBool(v interface{}) (bool, bool) {
	b, ok := v.(bool)
	return b, ok
}

func asInt(v interface{}) (int64, bool) {
	switch n := v.(type) {
	case int64:
		return n, true
	case int:
		return int64(n), true
	}
	return 0, false
}

func getString(doc rawDoc, key string) string {
	s, _ := asString(doc[key])
	return s
}

func getStringPtr(doc rawDoc, key string) *string {
	if v, ok := doc[key]; ok {
		if s, ok := asString(v); ok {
			return &s
		}
	}
	return nil
}

func getBoolPtr(doc rawDoc, key string) *bool {
	if v, ok := doc[key]; ok {
		if b, ok := asBool(v); ok {
			return &b
		}
	}
	return nil
}

func getStringSlice(doc rawDoc, key string) []string {
	items := asSlice(doc[key])
	if items == nil {
		return nil
	}
	out := make([]string, 0, len(items))
	for _, it := range items {
		if s, ok := asString(it); ok {
			out = append(out, s)
		}
	}
	return out
}

func getMap(doc rawDoc, key string) rawDoc {
	return asMap(doc[key])
}

func getStringMap(doc rawDoc, key string) map[string]string {
	m := asMap(doc[key])
	if m == nil {
		return nil
	}
	out := map[string]string{}
	for k, v := range m {
		if s, ok := asString(v); ok {
			out[k] = s
		}
	}
	return out
}

func orderedKeys(doc rawDoc, declared []string) []string {
	// go-toml/v2 does not preserve table key order when decoding into
	// interface{}, so tables needing declaration order (env, tasks) get
	// their key order from the scan of the source text in order.go; this
	// helper is kept for the common case where the caller already has the
	// ordered key list from that scan.
	return declared
}
