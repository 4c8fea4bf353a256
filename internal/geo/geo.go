// Package geo adapts a MaxMind-format database to the country_code(ip)
// lookup the core classifier needs, per spec §4.2 and §6.
package geo

import (
	"net"

	"github.com/oschwald/maxminddb-golang"
	"github.com/pkg/errors"
)

// Reader is a process-wide, read-only handle opened once at startup (spec
// §3: "GeoReader. Process-wide, shared read-only; opened once at startup;
// no mutation after construction").
type Reader struct {
	db *maxminddb.Reader
}

// Open memory-maps the .mmdb file at path.
func Open(path string) (*Reader, error) {
	db, err := maxminddb.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "opening geo database")
	}
	return &Reader{db: db}, nil
}

// Close releases the underlying mapping.
func (r *Reader) Close() error {
	return r.db.Close()
}

type countryRecord struct {
	Country struct {
		ISOCode string `maxminddb:"iso_code"`
	} `maxminddb:"country"`
}

// CountryCode looks up ip and returns its ISO country code, or "" if the
// address isn't present in the database. An empty string never equals "CN",
// so a failed lookup safely classifies as "not domestic" (SPEC_FULL §4.8).
func (r *Reader) CountryCode(ip net.IP) string {
	var rec countryRecord
	if err := r.db.Lookup(ip, &rec); err != nil {
		return ""
	}
	return rec.Country.ISOCode
}
