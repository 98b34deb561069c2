package checks

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"time"

	"go.starlark.net/starlark"
	"go.starlark.net/starlarkstruct"
)

// toStarlarkValue converts a descriptor value tree to a Starlark value.
// Dict keys are inserted in sorted order so iteration is deterministic.
func toStarlarkValue(v interface{}) (starlark.Value, error) {
	if v == nil {
		return starlark.None, nil
	}

	switch val := v.(type) {
	case bool:
		return starlark.Bool(val), nil
	case int:
		return starlark.MakeInt(val), nil
	case int8:
		return starlark.MakeInt64(int64(val)), nil
	case int16:
		return starlark.MakeInt64(int64(val)), nil
	case int32:
		return starlark.MakeInt64(int64(val)), nil
	case int64:
		return starlark.MakeInt64(val), nil
	case uint:
		return starlark.MakeUint(val), nil
	case uint8:
		return starlark.MakeUint64(uint64(val)), nil
	case uint16:
		return starlark.MakeUint64(uint64(val)), nil
	case uint32:
		return starlark.MakeUint64(uint64(val)), nil
	case uint64:
		return starlark.MakeUint64(val), nil
	case float32:
		return starlark.Float(val), nil
	case float64:
		if val == math.Trunc(val) && math.Abs(val) < 1<<53 {
			return starlark.MakeInt64(int64(val)), nil
		}
		return starlark.Float(val), nil
	case json.Number:
		if i, err := val.Int64(); err == nil {
			return starlark.MakeInt64(i), nil
		}
		f, err := val.Float64()
		if err != nil {
			return nil, fmt.Errorf("invalid number %q", val)
		}
		return starlark.Float(f), nil
	case string:
		return starlark.String(val), nil
	case time.Time:
		return starlark.String(val.Format(time.RFC3339)), nil
	case []interface{}:
		list := make([]starlark.Value, len(val))
		for i, item := range val {
			starlarkItem, err := toStarlarkValue(item)
			if err != nil {
				return nil, err
			}
			list[i] = starlarkItem
		}
		return starlark.NewList(list), nil
	case map[string]interface{}:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		dict := starlark.NewDict(len(val))
		for _, k := range keys {
			starlarkVal, err := toStarlarkValue(val[k])
			if err != nil {
				return nil, err
			}
			if err := dict.SetKey(starlark.String(k), starlarkVal); err != nil {
				return nil, err
			}
		}
		return dict, nil
	case map[interface{}]interface{}:
		m := make(map[string]interface{}, len(val))
		for k, item := range val {
			key, ok := k.(string)
			if !ok {
				return nil, fmt.Errorf("unsupported map key type: %T", k)
			}
			m[key] = item
		}
		return toStarlarkValue(m)
	default:
		return nil, fmt.Errorf("unsupported type: %T", v)
	}
}

// fromStarlarkValue converts a Starlark value returned by a check to a Go value.
func fromStarlarkValue(v starlark.Value) (interface{}, error) {
	switch val := v.(type) {
	case starlark.NoneType:
		return nil, nil
	case starlark.Bool:
		return bool(val), nil
	case starlark.Int:
		i, ok := val.Int64()
		if !ok {
			return nil, fmt.Errorf("integer too large")
		}
		return i, nil
	case starlark.Float:
		return float64(val), nil
	case starlark.String:
		return string(val), nil
	case *starlark.List:
		list := make([]interface{}, val.Len())
		for i := 0; i < val.Len(); i++ {
			item, err := fromStarlarkValue(val.Index(i))
			if err != nil {
				return nil, err
			}
			list[i] = item
		}
		return list, nil
	case starlark.Tuple:
		list := make([]interface{}, len(val))
		for i, elem := range val {
			item, err := fromStarlarkValue(elem)
			if err != nil {
				return nil, err
			}
			list[i] = item
		}
		return list, nil
	case *starlark.Dict:
		dict := make(map[string]interface{})
		for _, item := range val.Items() {
			key, ok := item[0].(starlark.String)
			if !ok {
				return nil, fmt.Errorf("dict key must be string")
			}
			value, err := fromStarlarkValue(item[1])
			if err != nil {
				return nil, err
			}
			dict[string(key)] = value
		}
		return dict, nil
	case *starlarkstruct.Struct:
		dict := make(map[string]interface{})
		for _, name := range val.AttrNames() {
			attr, err := val.Attr(name)
			if err != nil {
				continue
			}
			value, err := fromStarlarkValue(attr)
			if err != nil {
				return nil, err
			}
			dict[name] = value
		}
		return dict, nil
	default:
		return nil, fmt.Errorf("unsupported starlark type: %s", v.Type())
	}
}
