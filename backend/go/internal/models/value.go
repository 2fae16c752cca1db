package models

import (
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"sort"
	"strconv"
)

// ValueKind 标识 Value 中保存的数据类型。
type ValueKind int

const (
	NullValue ValueKind = iota
	BoolValue
	NumberValue
	StringValue
	ListValue
	MapValue
)

func (k ValueKind) String() string {
	switch k {
	case NullValue:
		return "null"
	case BoolValue:
		return "bool"
	case NumberValue:
		return "number"
	case StringValue:
		return "string"
	case ListValue:
		return "list"
	case MapValue:
		return "map"
	default:
		return "unknown"
	}
}

// Value 是任务载荷使用的带标签联合类型 (null/bool/number/string/list/map)。
// 零值为 Null。Value 创建后不应被修改。
type Value struct {
	kind ValueKind
	b    bool
	n    float64
	s    string
	list []Value
	m    map[string]Value
}

func Null() Value { return Value{} }
func Bool(b bool) Value { return Value{kind: BoolValue, b: b} }
func Number(n float64) Value { return Value{kind: NumberValue, n: n} }
func String(s string) Value { return Value{kind: StringValue, s: s} }
func List(items ...Value) Value { return Value{kind: ListValue, list: items} }
func Map(m map[string]Value) Value {
	if m == nil {
		m = map[string]Value{}
	}
	return Value{kind: MapValue, m: m}
}

func (v Value) Kind() ValueKind { return v.kind }
func (v Value) IsNull() bool { return v.kind == NullValue }

func (v Value) AsBool() (bool, bool) { return v.b, v.kind == BoolValue }
func (v Value) AsNumber() (float64, bool) { return v.n, v.kind == NumberValue }
func (v Value) AsString() (string, bool) { return v.s, v.kind == StringValue }
func (v Value) AsList() ([]Value, bool) { return v.list, v.kind == ListValue }

func (v Value) AsMap() (map[string]Value, bool) { return v.m, v.kind == MapValue }

// Numeric 接受数字，或能解析为有限数字的字符串。
func (v Value) Numeric() (float64, bool) {
	switch v.kind {
	case NumberValue:
		return v.n, true
	case StringValue:
		f, err := strconv.ParseFloat(v.s, 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

// Interface 将 Value 转换回普通的 Go 数据，便于 JSON/BSON 序列化。
func (v Value) Interface() interface{} {
	switch v.kind {
	case BoolValue:
		return v.b
	case NumberValue:
		return v.n
	case StringValue:
		return v.s
	case ListValue:
		out := make([]interface{}, len(v.list))
		for i, item := range v.list {
			out[i] = item.Interface()
		}
		return out
	case MapValue:
		return MapInterface(v.m)
	default:
		return nil
	}
}

// MapInterface 将 map[string]Value 转换为 map[string]interface{}。
func MapInterface(m map[string]Value) map[string]interface{} {
	out := make(map[string]interface{}, len(m))
	for k, item := range m {
		out[k] = item.Interface()
	}
	return out
}

func (v Value) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.Interface())
}

func (v *Value) UnmarshalJSON(data []byte) error {
	var raw interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*v = ValueOf(raw)
	return nil
}

// Equal 进行深度比较。
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case NullValue:
		return true
	case BoolValue:
		return v.b == o.b
	case NumberValue:
		return v.n == o.n
	case StringValue:
		return v.s == o.s
	case ListValue:
		if len(v.list) != len(o.list) {
			return false
		}
		for i := range v.list {
			if !v.list[i].Equal(o.list[i]) {
				return false
			}
		}
		return true
	case MapValue:
		if len(v.m) != len(o.m) {
			return false
		}
		for k, a := range v.m {
			b, ok := o.m[k]
			if !ok || !a.Equal(b) {
				return false
			}
		}
		return true
	}
	return false
}

// SortedKeys 返回 map 的键，按字典序排列。
func SortedKeys(m map[string]Value) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// ValueOf 将来自网络或进程间调用的无类型数据转换为 Value。
// 这里只做结构转换，不施加长度或深度限制；无法识别的叶子值会被字符串化。
func ValueOf(raw interface{}) Value {
	switch x := raw.(type) {
	case nil:
		return Null()
	case Value:
		return x
	case bool:
		return Bool(x)
	case string:
		return String(x)
	case float64:
		return Number(x)
	case float32:
		return Number(float64(x))
	case int:
		return Number(float64(x))
	case int32:
		return Number(float64(x))
	case int64:
		return Number(float64(x))
	case json.Number:
		if f, err := x.Float64(); err == nil {
			return Number(f)
		}
		return String(x.String())
	case []interface{}:
		items := make([]Value, len(x))
		for i, item := range x {
			items[i] = ValueOf(item)
		}
		return List(items...)
	case map[string]interface{}:
		m := make(map[string]Value, len(x))
		for k, item := range x {
			m[k] = ValueOf(item)
		}
		return Map(m)
	case map[string]Value:
		return Map(x)
	}

	rv := reflect.ValueOf(raw)
	switch rv.Kind() {
	case reflect.Int8, reflect.Int16, reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return Number(toFloat(rv))
	case reflect.Slice, reflect.Array:
		if rv.Kind() == reflect.Slice && rv.IsNil() {
			return List()
		}
		items := make([]Value, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			items[i] = ValueOf(rv.Index(i).Interface())
		}
		return List(items...)
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return String(fmt.Sprint(raw))
		}
		m := make(map[string]Value, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			m[iter.Key().String()] = ValueOf(iter.Value().Interface())
		}
		return Map(m)
	case reflect.Ptr:
		if rv.IsNil() {
			return Null()
		}
		return ValueOf(rv.Elem().Interface())
	}
	return String(fmt.Sprint(raw))
}

func toFloat(rv reflect.Value) float64 {
	switch rv.Kind() {
	case reflect.Int8, reflect.Int16:
		return float64(rv.Int())
	default:
		return float64(rv.Uint())
	}
}

// MapOf 将无类型的 map 转换为 map[string]Value。
func MapOf(raw map[string]interface{}) map[string]Value {
	out := make(map[string]Value, len(raw))
	for k, item := range raw {
		out[k] = ValueOf(item)
	}
	return out
}
