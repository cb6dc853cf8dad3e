// Package detect wraps the personal-data detection backends behind one narrow
// contract. A backend either returns candidate spans or fails with
// ErrUnavailable; it never reports a failure as an empty finding list.
package detect
