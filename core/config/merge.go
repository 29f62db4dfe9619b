package config

import (
	"errors"
	"reflect"
)

// ErrMergeTarget indicates DeepMerge was given something other than two
// pointers to the same type.
var ErrMergeTarget = errors.New("merge requires two pointers of the same type")

// DeepMerge copies the non-zero values of src onto dst. Structs merge
// field by field, maps key by key, and a non-empty slice replaces the
// destination slice.
func DeepMerge(dst, src any) error {
	dstVal := reflect.ValueOf(dst)
	srcVal := reflect.ValueOf(src)

	if dstVal.Kind() != reflect.Pointer || srcVal.Kind() != reflect.Pointer ||
		dstVal.Type() != srcVal.Type() || dstVal.IsNil() {
		return ErrMergeTarget
	}
	if srcVal.IsNil() {
		return nil
	}

	mergeValues(dstVal.Elem(), srcVal.Elem())
	return nil
}

func mergeValues(dst, src reflect.Value) {
	if !dst.CanSet() || !src.IsValid() {
		return
	}

	switch dst.Kind() {
	case reflect.Struct:
		mergeStruct(dst, src)
	case reflect.Map:
		mergeMap(dst, src)
	case reflect.Slice:
		mergeSlice(dst, src)
	case reflect.Pointer:
		mergePointer(dst, src)
	default:
		mergeScalar(dst, src)
	}
}

func mergeStruct(dst, src reflect.Value) {
	for i := 0; i < dst.NumField(); i++ {
		mergeValues(dst.Field(i), src.Field(i))
	}
}

func mergePointer(dst, src reflect.Value) {
	if src.IsNil() {
		return
	}
	if dst.IsNil() || dst.Elem().Kind() != reflect.Struct {
		dst.Set(src)
		return
	}
	merged := reflect.New(dst.Elem().Type())
	merged.Elem().Set(dst.Elem())
	mergeValues(merged.Elem(), src.Elem())
	dst.Set(merged)
}

func mergeMap(dst, src reflect.Value) {
	if src.IsNil() {
		return
	}

	merged := reflect.MakeMapWithSize(dst.Type(), dst.Len()+src.Len())
	for _, key := range dst.MapKeys() {
		merged.SetMapIndex(key, dst.MapIndex(key))
	}

	for _, key := range src.MapKeys() {
		srcVal := src.MapIndex(key)
		dstVal := merged.MapIndex(key)

		if dstVal.IsValid() && srcVal.Kind() == reflect.Struct {
			next := reflect.New(dstVal.Type()).Elem()
			next.Set(dstVal)
			mergeValues(next, srcVal)
			merged.SetMapIndex(key, next)
			continue
		}
		merged.SetMapIndex(key, srcVal)
	}
	dst.Set(merged)
}

func mergeSlice(dst, src reflect.Value) {
	if src.Len() > 0 {
		dst.Set(reflect.AppendSlice(reflect.MakeSlice(src.Type(), 0, src.Len()), src))
	}
}

func mergeScalar(dst, src reflect.Value) {
	if !src.IsZero() {
		dst.Set(src)
	}
}
