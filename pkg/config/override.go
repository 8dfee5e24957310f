package config

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
)

// Set overrides a single experiment value by its serialized key path, e.g.
//
//	exp.Set("trainer.optimizer.lr", "3e-5")
//	exp.Set("dataset_reader.add_history", "false")
//	exp.Set("dataset_reader.token_indexers.bert.max_pieces", "256")
//
// Paths follow the json tags of the schema. Only scalar leaves can be set.
func (e *Experiment) Set(keyPath, value string) error {
	segments := strings.Split(keyPath, ".")
	if err := setPath(reflect.ValueOf(e).Elem(), segments, value); err != nil {
		return fmt.Errorf("cannot set %s: %w", keyPath, err)
	}
	return nil
}

func setPath(v reflect.Value, segments []string, value string) error {
	if len(segments) == 0 {
		return setScalar(v, value)
	}

	seg := segments[0]

	switch v.Kind() {
	case reflect.Struct:
		field, ok := fieldByTag(v, seg)
		if !ok {
			return fmt.Errorf("unknown key %q", seg)
		}
		return setPath(field, segments[1:], value)

	case reflect.Map:
		key := reflect.ValueOf(seg)
		elem := v.MapIndex(key)
		if !elem.IsValid() {
			return fmt.Errorf("unknown key %q", seg)
		}
		// Map elements are not addressable: mutate a copy and store it back.
		copied := reflect.New(elem.Type()).Elem()
		copied.Set(elem)
		if err := setPath(copied, segments[1:], value); err != nil {
			return err
		}
		v.SetMapIndex(key, copied)
		return nil

	case reflect.Ptr:
		if v.IsNil() {
			v.Set(reflect.New(v.Type().Elem()))
		}
		return setPath(v.Elem(), segments, value)

	default:
		return fmt.Errorf("key %q is not a record", seg)
	}
}

func fieldByTag(v reflect.Value, name string) (reflect.Value, bool) {
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		tag := t.Field(i).Tag.Get("json")
		if idx := strings.Index(tag, ","); idx >= 0 {
			tag = tag[:idx]
		}
		if tag == "" {
			tag = strings.ToLower(t.Field(i).Name)
		}
		if tag == name {
			return v.Field(i), true
		}
	}
	return reflect.Value{}, false
}

func setScalar(v reflect.Value, value string) error {
	if v.Kind() == reflect.Ptr {
		if v.IsNil() {
			v.Set(reflect.New(v.Type().Elem()))
		}
		v = v.Elem()
	}

	switch v.Kind() {
	case reflect.String:
		v.SetString(value)
	case reflect.Int, reflect.Int64:
		n, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return fmt.Errorf("expected an integer, got %q", value)
		}
		v.SetInt(n)
	case reflect.Float64:
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("expected a number, got %q", value)
		}
		v.SetFloat(f)
	case reflect.Bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("expected a boolean, got %q", value)
		}
		v.SetBool(b)
	default:
		return fmt.Errorf("value is not a scalar")
	}

	return nil
}

// Get resolves a key path to its current value, for the inspect command.
func (e *Experiment) Get(keyPath string) (interface{}, error) {
	v := reflect.ValueOf(e).Elem()
	for _, seg := range strings.Split(keyPath, ".") {
		for v.Kind() == reflect.Ptr {
			if v.IsNil() {
				return nil, fmt.Errorf("key %q is unset", keyPath)
			}
			v = v.Elem()
		}

		switch v.Kind() {
		case reflect.Struct:
			field, ok := fieldByTag(v, seg)
			if !ok {
				return nil, fmt.Errorf("unknown key %q in %s", seg, keyPath)
			}
			v = field
		case reflect.Map:
			elem := v.MapIndex(reflect.ValueOf(seg))
			if !elem.IsValid() {
				return nil, fmt.Errorf("unknown key %q in %s", seg, keyPath)
			}
			v = elem
		default:
			return nil, fmt.Errorf("key %q in %s is not a record", seg, keyPath)
		}
	}

	for v.Kind() == reflect.Ptr {
		if v.IsNil() {
			return nil, fmt.Errorf("key %q is unset", keyPath)
		}
		v = v.Elem()
	}

	return v.Interface(), nil
}
