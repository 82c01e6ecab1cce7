// test_helper.go holds helpers for pulling ids out of decoded JSON list
// envelopes in handler tests.
package restapi

type testingFatalf interface {
	Fatalf(format string, args ...any)
}

// fieldOf returns list[i][key], failing t when the item is not an object or
// lacks the key.
func fieldOf(t testingFatalf, list []any, i int, key string) any {
	object, ok := list[i].(map[string]any)
	if !ok {
		t.Fatalf("item %d is not a map[string]interface{}", i)
	}
	value, ok := object[key]
	if !ok {
		t.Fatalf("item %d missing key %q", i, key)
	}
	return value
}

// collectAllIdsFromObjects reads one string field from every object in list,
// e.g. the id of each line tile.
func collectAllIdsFromObjects(t testingFatalf, list []any, key string) []string {
	ids := make([]string, 0, len(list))
	for i := range list {
		value := fieldOf(t, list, i, key)
		id, ok := value.(string)
		if !ok {
			t.Fatalf("item %d key %q is not a string: %T", i, key, value)
		}
		ids = append(ids, id)
	}
	return ids
}

// collectAllNestedIdsFromObjects flattens a string array field across every
// object in list, e.g. the modes of each station tile.
func collectAllNestedIdsFromObjects(t testingFatalf, list []any, key string) []string {
	var ids []string
	for i := range list {
		value := fieldOf(t, list, i, key)
		nested, ok := value.([]any)
		if !ok {
			t.Fatalf("item %d key %q is not a []interface{}: %T", i, key, value)
		}
		for j, v := range nested {
			id, ok := v.(string)
			if !ok {
				t.Fatalf("item %d key %q index %d is not a string: %T", i, key, j, v)
			}
			ids = append(ids, id)
		}
	}
	return ids
}
