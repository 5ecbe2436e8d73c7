// Package options parses the generic "-o key=value" backend options given
// on the command line and applies them onto a backend's typed Config
// struct via the "option" struct tag.
package options

import (
	"reflect"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/jLantxa/mapache-sub000/internal/errors"
)

// Options holds raw, lower-cased key/value pairs parsed from "-o" flags.
type Options map[string]string

// Parse turns a list of "key=value" (or bare "key") strings into Options.
// Keys are lower-cased and trimmed; values are trimmed only on the right
// so leading spaces in a value are preserved. Duplicate keys are an error.
func Parse(in []string) (Options, error) {
	opts := make(Options)

	for _, item := range in {
		key, value, _ := strings.Cut(item, "=")
		key = strings.ToLower(strings.TrimSpace(key))
		value = strings.TrimRight(value, " ")

		if key == "" {
			return nil, errors.Fatal("empty key is not a valid option")
		}

		if _, ok := opts[key]; ok {
			return nil, errors.Fatalf("key %q present more than once", key)
		}

		opts[key] = value
	}

	return opts, nil
}

// Extract returns the options for the "ns.key" namespace, with the prefix
// stripped, plus any unnamespaced options are left out.
func (o Options) Extract(ns string) Options {
	ns = ns + "."
	out := make(Options)
	for k, v := range o {
		if rest, ok := strings.CutPrefix(k, ns); ok {
			out[rest] = v
		}
	}
	return out
}

// Apply sets fields on dst (a pointer to a struct) from o, matching each
// option key against that field's "option" tag. namespace is used only
// for the error message, identifying which backend's options failed.
func (o Options) Apply(namespace string, dst interface{}) error {
	v := reflect.ValueOf(dst).Elem()
	t := v.Type()

	fieldByTag := make(map[string]int)
	for i := 0; i < t.NumField(); i++ {
		if tag := t.Field(i).Tag.Get("option"); tag != "" {
			fieldByTag[tag] = i
		}
	}

	for key, value := range o {
		idx, ok := fieldByTag[key]
		if !ok {
			name := key
			if namespace != "" {
				name = namespace + "." + key
			}
			return errors.Fatalf("option %s is not known", name)
		}

		field := v.Field(idx)
		switch field.Kind() {
		case reflect.String:
			field.SetString(value)
		case reflect.Bool:
			b, err := strconv.ParseBool(value)
			if err != nil {
				return err
			}
			field.SetBool(b)
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
			if field.Type() == reflect.TypeOf(time.Duration(0)) {
				d, err := time.ParseDuration(value)
				if err != nil {
					return err
				}
				field.SetInt(int64(d))
				continue
			}
			n, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				return err
			}
			field.SetInt(n)
		case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
			n, err := strconv.ParseUint(value, 10, 64)
			if err != nil {
				return err
			}
			field.SetUint(n)
		default:
			return errors.Fatalf("option %s has unsupported type %s", key, field.Kind())
		}
	}

	return nil
}

// Help describes one backend config option for a --help listing.
type Help struct {
	Namespace string
	Name      string
	Text      string
}

// listOptions returns the Help entries for every "option"-tagged field of
// cfg, in struct declaration order.
func listOptions(cfg interface{}) []Help {
	t := reflect.TypeOf(cfg)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}

	var help []Help
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		name := f.Tag.Get("option")
		if name == "" {
			continue
		}
		help = append(help, Help{Name: name, Text: f.Tag.Get("help")})
	}
	return help
}

// appendAllOptions appends cfg's Help entries, tagged with namespace ns,
// to opts and returns the extended slice.
func appendAllOptions(opts []Help, ns string, cfg interface{}) []Help {
	for _, h := range listOptions(cfg) {
		h.Namespace = ns
		opts = append(opts, h)
	}
	return opts
}

var registered = make(map[string]interface{})

// Register records a backend's Config value under name so AllHelp can
// list its options. Intended to be called from a backend package's init.
func Register(name string, cfg interface{}) {
	registered[name] = cfg
}

// AllHelp returns every registered backend's options, sorted by
// namespace then name.
func AllHelp() []Help {
	var opts []Help
	for ns, cfg := range registered {
		opts = appendAllOptions(opts, ns, cfg)
	}
	sort.Slice(opts, func(i, j int) bool {
		if opts[i].Namespace != opts[j].Namespace {
			return opts[i].Namespace < opts[j].Namespace
		}
		return opts[i].Name < opts[j].Name
	})
	return opts
}
