package core

import (
	"context"
	"fmt"
	"strings"

	"github.com/JonMunkholm/crmsync/internal/crm"
	"github.com/JonMunkholm/crmsync/internal/records"
)

// DescribeSchema fetches the field names known for objectType. It is called
// once per run, before any row is read.
func DescribeSchema(ctx context.Context, remote Remote, sess *crm.Session, objectType string) (crm.SchemaDescriptor, error) {
	desc, err := remote.Describe(ctx, sess, objectType)
	if err != nil {
		return crm.SchemaDescriptor{}, fmt.Errorf("schema for %s: %w", objectType, err)
	}
	return desc, nil
}

// CheckHeader applies the column rules that depend on the object type:
//
//   - the wire argument name "key" may not be used as a column
//   - delete mode needs the <type>_KEY column
//   - columns other than <type>_KEY should be schema fields
//
// Unknown columns are returned for the caller to log; with StrictSchema they
// are an error instead.
func CheckHeader(path string, header []string, opts Options, schema crm.SchemaDescriptor) ([]string, error) {
	keyField := opts.KeyField()

	var unknown []string
	hasKey := false
	for _, name := range header {
		switch name {
		case wireKey:
			return nil, &records.InputFormatError{Path: path, Kind: records.KindColumns,
				Msg: fmt.Sprintf("column %q is reserved; put the primary key in %q", wireKey, keyField)}
		case keyField:
			hasKey = true
			continue
		}
		if !schema.Has(name) {
			unknown = append(unknown, name)
		}
	}

	if opts.Mode == ModeDelete && !hasKey {
		return nil, &records.InputFormatError{Path: path, Kind: records.KindColumns,
			Msg: fmt.Sprintf("delete needs a %q column", keyField)}
	}
	if opts.StrictSchema && len(unknown) > 0 {
		return nil, &records.InputFormatError{Path: path, Kind: records.KindColumns,
			Msg: fmt.Sprintf("fields not available for %s: %s", opts.ObjectType, strings.Join(unknown, ", "))}
	}
	return unknown, nil
}
