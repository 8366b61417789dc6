// Package record provides the generic row type shared by every list page.
//
// A Record is an opaque mapping of field name to decoded JSON value. The
// backend owns the source of truth; a Record held by this process is only a
// cached copy of one row of a remote collection.
//
// Values are decoded with json.Number so numeric fields keep their textual
// form until something asks for a number. Coercion helpers (Text, Number,
// Time) convert lazily and report whether the conversion succeeded, which
// lets the filter and sort layers fail closed on unparsable data.
//
// Field paths may address nested objects with dots ("user.email").
package record
