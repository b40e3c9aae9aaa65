package data

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"go.uber.org/zap"
)

// Reconcile loads the user copy at userPath and brings its key set in line
// with schema: keys only the schema has are copied in with their bundled value,
// keys only the user copy has are deleted. Values under shared keys are never
// touched. The file is rewritten, atomically, only when something changed.
//
// A missing user copy yields a clone of the schema and no write; extraction of
// defaults is ExtractDefault's job. A malformed user copy returns an error
// wrapping ErrMalformedDocument and leaves the file untouched.
func Reconcile(schema *Document, userPath string, log *zap.Logger) (*Document, bool, error) {
	raw, err := os.ReadFile(userPath)
	if errors.Is(err, fs.ErrNotExist) {
		log.Debug("user config missing, using bundled defaults", zap.String("path", userPath))
		return schema.Clone(), false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("read %s: %w", userPath, err)
	}

	user, err := Parse(raw)
	if err != nil {
		return nil, false, fmt.Errorf("%s: %w", userPath, err)
	}

	if !Merge(schema, user) {
		return user, false, nil
	}

	out, err := user.Marshal()
	if err != nil {
		return nil, false, fmt.Errorf("%s: %w", userPath, err)
	}
	if err := WriteFileAtomic(userPath, out, 0o644); err != nil {
		return nil, false, fmt.Errorf("save %s: %w", userPath, err)
	}
	log.Info("config reconciled", zap.String("path", userPath))
	return user, true, nil
}

// Merge applies the key-set symmetric difference between schema and user to
// user in place and reports whether user was mutated.
func Merge(schema, user *Document) bool {
	schemaKeys := schema.Keys()
	if sameKeys(schemaKeys, user.Keys()) {
		return false
	}

	changed := false
	for _, k := range schemaKeys {
		// Has is re-evaluated per key: copying a section brings its children along.
		if !user.Has(k) {
			user.copyFrom(schema, k)
			changed = true
		}
	}

	inSchema := make(map[string]struct{}, len(schemaKeys))
	for _, k := range schemaKeys {
		inSchema[k] = struct{}{}
	}
	for _, k := range user.Keys() {
		if _, ok := inSchema[k]; ok {
			continue
		}
		if user.Delete(k) {
			changed = true
		}
	}
	return changed
}

func sameKeys(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	set := make(map[string]struct{}, len(a))
	for _, k := range a {
		set[k] = struct{}{}
	}
	for _, k := range b {
		if _, ok := set[k]; !ok {
			return false
		}
	}
	return true
}
